package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrNilPointer    = errors.New("config: nil destination")
)

var (
	mu    sync.Mutex
	cache = make(map[reflect.Type]any)

	dotenvOnce  sync.Once
	dotenvFiles = []string{".env"}
)

// SetDotenvFiles changes the files read before the first Load.
// Must be called before any Load; later calls have no effect.
func SetDotenvFiles(files ...string) {
	mu.Lock()
	defer mu.Unlock()
	if len(files) > 0 {
		dotenvFiles = files
	}
}

// Load parses environment variables into v using its `env` struct tags.
// Each configuration type is parsed once; later calls copy the cached value.
//
//	type StripeConfig struct {
//		SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
//		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg StripeConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		mu.Lock()
		files := dotenvFiles
		mu.Unlock()
		// Missing .env files are fine outside of development.
		_ = godotenv.Load(files...)
	})

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration %T: %v", *v, err))
	}
}

// Reset drops every cached configuration. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}
