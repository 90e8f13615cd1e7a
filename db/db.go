// Package db embeds the PostgreSQL schema migrations.
package db

import "embed"

// Migrations holds the goose migrations under the "migrations" directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
