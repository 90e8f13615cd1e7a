// Package config loads typed configuration from environment variables.
//
// Every package that needs settings declares a Config struct with
// github.com/caarlos0/env/v11 tags; the binary loads each of them with Load or
// MustLoad. A .env file is read once through github.com/joho/godotenv before
// the first parse, and each configuration type is cached after its first
// successful load.
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
package config
