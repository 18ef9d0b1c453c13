package database

import "errors"

var (
	// ErrNoPath is returned when Open is called without a database path.
	ErrNoPath = errors.New("database: path is required")

	// ErrMigrationNotFound is returned when an applied migration has no
	// matching file to roll back.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration is returned when a migration has no down SQL.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
