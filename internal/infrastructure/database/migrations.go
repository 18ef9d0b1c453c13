package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the migration files. The migrations package registers
// its embedded files here; tests may substitute an fstest.MapFS.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
var MigrationsDir = "."

// Migration files are named VERSION_name.up.sql and VERSION_name.down.sql,
// where VERSION is YYYYMMDD_HHMMSS. The down file is optional.
const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	versionLen = len("20060102_150405")
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
)`

// Migration is one schema change read from MigrationsFS.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

// MigrationStatus lists applied migrations (oldest first) and the
// migrations still to run, in the order Migrate would run them.
type MigrationStatus struct {
	Applied []AppliedMigration
	Pending []Migration
}

// Current returns the newest applied version, or "" on an empty schema.
func (s MigrationStatus) Current() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

// Migrate applies every pending migration, oldest first.
//
// Each migration runs in its own transaction together with its
// schema_migrations row. When one fails it is rolled back, earlier ones stay
// committed and later ones are not attempted, so a re-run resumes at the
// failed migration.
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration using its down SQL.
//
// Returns:
//   - *Migration: the migration rolled back, nil if none was applied
//   - error: ErrMigrationNotFound when the applied version has no file,
//     ErrNoDownMigration when the file has no down SQL, or a SQL failure
func (db *DB) Rollback(ctx context.Context) (*Migration, error) {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return nil, err
	}
	version := status.Current()
	if version == "" {
		return nil, nil
	}

	all, err := readMigrations()
	if err != nil {
		return nil, err
	}
	idx := sort.Search(len(all), func(i int) bool { return all[i].Version >= version })
	if idx == len(all) || all[idx].Version != version {
		return nil, fmt.Errorf("%w: %s", ErrMigrationNotFound, version)
	}
	m := all[idx]
	if m.DownSQL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDownMigration, version)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back migration %s (%s): %w", m.Version, m.Name, err)
	}
	return &m, nil
}

// MigrationStatus reports applied and pending migrations. It creates the
// schema_migrations table on first use.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	all, err := readMigrations()
	if err != nil {
		return MigrationStatus{}, err
	}

	done := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		done[a.Version] = struct{}{}
	}
	status := MigrationStatus{Applied: applied}
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			a  AppliedMigration
			at string
		)
		if err := rows.Scan(&a.Version, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		// Rows are only written by Migrate, in RFC 3339.
		a.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // format is ours
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

// readMigrations reads MigrationsFS in one pass and returns the migrations
// sorted by version. Files that do not follow the naming scheme are ignored;
// a down file without an up file is an error.
func readMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil //nolint:nilerr // a missing directory means no migrations
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if up {
			m.Name = name
			m.UpSQL = string(data)
		} else {
			m.DownSQL = string(data)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for version, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFilename splits "20260301_120000_climate_history.up.sql"
// into its version, name and direction. The name falls back to the version
// when the file has none.
func parseMigrationFilename(file string) (version, name string, up, ok bool) {
	var base string
	switch {
	case strings.HasSuffix(file, upSuffix):
		base, up = strings.TrimSuffix(file, upSuffix), true
	case strings.HasSuffix(file, downSuffix):
		base = strings.TrimSuffix(file, downSuffix)
	default:
		return "", "", false, false
	}

	if len(base) < versionLen || base[8] != '_' {
		return "", "", false, false
	}
	version = base[:versionLen]
	if _, err := time.Parse("20060102_150405", version); err != nil {
		return "", "", false, false
	}

	switch rest := base[versionLen:]; {
	case rest == "":
		name = version
	case rest[0] == '_' && len(rest) > 1:
		name = rest[1:]
	default:
		return "", "", false, false
	}
	return version, name, up, true
}
