package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	minKeyLength = 32
	leeway       = 30 * time.Second
)

// Claims are the registered claims of a session token. Subject is the user id.
type Claims struct {
	gojwt.RegisteredClaims
}

// Service issues and parses session tokens.
type Service struct {
	key    []byte
	ttl    time.Duration
	issuer string
	parser *gojwt.Parser
	now    func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithNow overrides the clock used for issued-at and expiry.
func WithNow(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New creates a token service. The secret must be at least 32 bytes.
func New(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.Secret) < minKeyLength {
		return nil, ErrMissingSigningKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	s := &Service{
		key:    []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Name}),
		gojwt.WithLeeway(leeway),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, gojwt.WithIssuer(cfg.Issuer))
	}
	s.parser = gojwt.NewParser(parserOpts...)
	return s, nil
}

// Issue signs a token for userID and returns it with its expiry.
func (s *Service) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{RegisteredClaims: gojwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(expires),
	}}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns its claims.
// Any verification failure matches ErrInvalidToken.
func (s *Service) Parse(token string) (*Claims, error) {
	var claims Claims
	t, err := s.parser.ParseWithClaims(token, &claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !t.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
