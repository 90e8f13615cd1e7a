package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Service is the grid and tube API of a family.
// Every call takes the resolved Actor of the request.
type Service interface {
	CreateGrid(ctx context.Context, actor *delegation.Actor, p GridParams) (*Grid, error)
	GetGrid(ctx context.Context, actor *delegation.Actor, id string) (*Grid, error)
	ListGrids(ctx context.Context, actor *delegation.Actor) ([]*Grid, error)
	DeleteGrid(ctx context.Context, actor *delegation.Actor, id string) error
	EmptyGrid(ctx context.Context, actor *delegation.Actor, id string) (int, error)

	CreateTube(ctx context.Context, actor *delegation.Actor, gridID string, p TubeParams) (*Tube, error)
	ListTubes(ctx context.Context, actor *delegation.Actor, gridID string) ([]*Tube, error)
	DeleteTube(ctx context.Context, actor *delegation.Actor, id string) error
}

// Members lists the secondary users of a family.
type Members interface {
	ListSecondaries(ctx context.Context, mainID string) ([]*entitlement.Account, error)
}

// Option configures the inventory service.
type Option func(*service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMembers widens the read scope to rows owned by current secondary users
// whose FamilyID predates their membership.
func WithMembers(m Members) Option {
	return func(s *service) {
		s.members = m
	}
}

// WithIDGenerator overrides the grid and tube id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNow overrides the clock used for CreatedAt.
func WithNow(fn func() time.Time) Option {
	return func(s *service) {
		if fn != nil {
			s.now = fn
		}
	}
}

type service struct {
	store   Store
	auditor *delegation.Auditor
	members Members
	log     *slog.Logger
	newID   func() string
	now     func() time.Time
}

var tracer = otel.Tracer("github.com/dmitrymomot/labgrid/svc/inventory")

// NewService creates the inventory service. Panics if store or auditor is nil.
func NewService(store Store, auditor *delegation.Auditor, opts ...Option) Service {
	if store == nil || auditor == nil {
		panic("inventory: Store and Auditor are required")
	}
	s := &service{
		store:   store,
		auditor: auditor,
		log:     slog.Default(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("inventory"))
	return s
}

func (s *service) scope(ctx context.Context, actor *delegation.Actor) (Scope, error) {
	if actor == nil {
		return Scope{}, delegation.ErrNoActor
	}
	sc := Scope{FamilyID: actor.MainID(), MemberIDs: []string{actor.MainID()}}
	if s.members == nil {
		return sc, nil
	}
	secondaries, err := s.members.ListSecondaries(ctx, actor.MainID())
	if err != nil {
		return Scope{}, err
	}
	for _, m := range secondaries {
		sc.MemberIDs = append(sc.MemberIDs, m.ID)
	}
	return sc, nil
}

func (s *service) audit(ctx context.Context, actor *delegation.Actor, action audit.Action, entityType, id string, fields map[string]any) {
	// The mutation stands. The auditor has already retried and logged.
	if err := s.auditor.Record(ctx, actor, action, entityType, id, fields); err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.AddEvent("audit record not written")
	}
}

func (s *service) CreateGrid(ctx context.Context, actor *delegation.Actor, p GridParams) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "CreateGrid", trace.WithAttributes(attribute.String("family_id", sc.FamilyID)))
	defer span.End()

	n, err := s.store.CountGrids(ctx, sc)
	if err != nil {
		return nil, err
	}
	if !actor.Main.Limits().AllowsGrids(n) {
		return nil, ErrGridLimit
	}

	g := &Grid{
		ID:        s.newID(),
		UserID:    actor.Active.ID,
		FamilyID:  sc.FamilyID,
		Name:      p.Name,
		Rows:      p.Rows,
		Columns:   p.Columns,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateGrid(ctx, g); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, audit.ActionCreateGrid, audit.EntityGrid, g.ID, map[string]any{
		"name":    g.Name,
		"rows":    g.Rows,
		"columns": g.Columns,
	})
	return g, nil
}

func (s *service) GetGrid(ctx context.Context, actor *delegation.Actor, id string) (*Grid, error) {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.GetGrid(ctx, sc, id)
}

func (s *service) ListGrids(ctx context.Context, actor *delegation.Actor) ([]*Grid, error) {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListGrids(ctx, sc)
}

func (s *service) DeleteGrid(ctx context.Context, actor *delegation.Actor, id string) error {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return err
	}
	g, err := s.store.GetGrid(ctx, sc, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGrid(ctx, sc, id); err != nil {
		return err
	}
	s.audit(ctx, actor, audit.ActionDeleteGrid, audit.EntityGrid, id, map[string]any{"name": g.Name})
	return nil
}

func (s *service) EmptyGrid(ctx context.Context, actor *delegation.Actor, id string) (int, error) {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return 0, err
	}
	g, err := s.store.GetGrid(ctx, sc, id)
	if err != nil {
		return 0, err
	}
	n, err := s.store.EmptyGrid(ctx, g.ID)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, actor, audit.ActionEmptyGrid, audit.EntityGrid, g.ID, map[string]any{
		"name":    g.Name,
		"removed": n,
	})
	return n, nil
}

func (s *service) CreateTube(ctx context.Context, actor *delegation.Actor, gridID string, p TubeParams) (*Tube, error) {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "CreateTube", trace.WithAttributes(
		attribute.String("family_id", sc.FamilyID),
		attribute.String("grid_id", gridID),
	))
	defer span.End()

	g, err := s.store.GetGrid(ctx, sc, gridID)
	if err != nil {
		return nil, err
	}
	pos, err := ParsePosition(p.Position, g.Rows, g.Columns)
	if err != nil {
		return nil, err
	}

	n, err := s.store.CountTubes(ctx, sc)
	if err != nil {
		return nil, err
	}
	if !actor.Main.Limits().AllowsTubes(n) {
		return nil, ErrTubeLimit
	}

	fields := p.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	t := &Tube{
		ID:        s.newID(),
		GridID:    g.ID,
		UserID:    actor.Active.ID,
		FamilyID:  sc.FamilyID,
		Position:  pos.String(),
		Fields:    fields,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateTube(ctx, t); err != nil {
		if errors.Is(err, ErrPositionTaken) {
			s.log.InfoContext(ctx, "position already taken",
				logger.UserID(sc.FamilyID),
				slog.String("grid_id", g.ID),
				slog.String("position", t.Position),
			)
		}
		return nil, err
	}
	s.audit(ctx, actor, audit.ActionCreateTube, audit.EntityTube, t.ID, map[string]any{
		"gridId":   g.ID,
		"position": t.Position,
	})
	return t, nil
}

func (s *service) ListTubes(ctx context.Context, actor *delegation.Actor, gridID string) ([]*Tube, error) {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetGrid(ctx, sc, gridID); err != nil {
		return nil, err
	}
	return s.store.ListTubes(ctx, sc, gridID)
}

func (s *service) DeleteTube(ctx context.Context, actor *delegation.Actor, id string) error {
	sc, err := s.scope(ctx, actor)
	if err != nil {
		return err
	}
	t, err := s.store.GetTube(ctx, sc, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTube(ctx, sc, id); err != nil {
		return err
	}
	s.audit(ctx, actor, audit.ActionDeleteTube, audit.EntityTube, id, map[string]any{
		"gridId":   t.GridID,
		"position": t.Position,
	})
	return nil
}
