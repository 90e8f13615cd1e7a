package ratelimit

import "time"

// Config sets the refill rate and burst size of every bucket.
type Config struct {
	RPS     float64       `env:"RATELIMIT_RPS" envDefault:"5"`
	Burst   int           `env:"RATELIMIT_BURST" envDefault:"20"`
	IdleTTL time.Duration `env:"RATELIMIT_IDLE_TTL" envDefault:"10m"`
}
