package framedb

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// withMigrate builds a migrate instance over the already-open database and
// hands it to fn. The instance is never closed: closing it would also close
// the shared *sql.DB, which the rest of the process is still using.
func (db *DB) withMigrate(migrationsDir string, fn func(*migrate.Migrate) error) error {
	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("load migrations from %s: %w", abs, err)
	}
	m.Log = migrateLogger{}

	return fn(m)
}

// MigrateUp applies every migration not yet recorded in schema_migrations.
// A database already at the newest version is left alone without error.
func (db *DB) MigrateUp(migrationsDir string) error {
	return db.withMigrate(migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the most recently applied migration, one step.
// Rolling back when nothing has been applied is an error.
func (db *DB) MigrateDown(migrationsDir string) error {
	return db.withMigrate(migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("roll back migration: %w", err)
		}
		return nil
	})
}

// MigrateTo brings the schema to exactly the given version, applying or
// rolling back migrations as needed.
func (db *DB) MigrateTo(migrationsDir string, version uint) error {
	return db.withMigrate(migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate to version %d: %w", version, err)
		}
		return nil
	})
}

// MigrateForce rewrites the recorded schema version without running any SQL.
// It exists to recover from a dirty state: repair the schema by hand, then
// force the version the schema actually matches.
func (db *DB) MigrateForce(migrationsDir string, version int) error {
	return db.withMigrate(migrationsDir, func(m *migrate.Migrate) error {
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version %d: %w", version, err)
		}
		return nil
	})
}

// MigrateVersion reports the version recorded in schema_migrations and
// whether the last migration died partway through. A database with no
// recorded version reports 0.
func (db *DB) MigrateVersion(migrationsDir string) (version uint, dirty bool, err error) {
	err = db.withMigrate(migrationsDir, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return verr
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

// migrateLogger feeds golang-migrate's progress lines into the standard
// logger so they land in the same stream as the daemon's own output.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// MigrationStatus describes where the schema stands relative to the
// migration files on disk.
type MigrationStatus struct {
	Version uint // version recorded in schema_migrations
	Latest  uint // newest version present in the migrations directory
	Dirty   bool // the last migration stopped partway through
	Tracked bool // the schema_migrations table exists
}

// MigrationState gathers the schema version, dirty flag, and on-disk latest
// version into one report. Tracked is checked before anything else touches
// the database, because building the migrate machinery creates the
// schema_migrations table as a side effect. A missing or empty migrations
// directory leaves Latest at zero rather than failing.
func (db *DB) MigrationState(migrationsDir string) (MigrationStatus, error) {
	var st MigrationStatus

	var tables int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&tables)
	if err != nil {
		return st, fmt.Errorf("check schema_migrations table: %w", err)
	}
	st.Tracked = tables > 0

	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		return st, fmt.Errorf("read schema version: %w", err)
	}
	st.Version = version
	st.Dirty = dirty

	if latest, err := LatestMigrationVersion(migrationsDir); err == nil {
		st.Latest = latest
	}

	return st, nil
}

// LatestMigrationVersion scans migrationsDir for files named like
// 000002_add_index.up.sql and returns the highest numeric prefix.
func LatestMigrationVersion(migrationsDir string) (uint, error) {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", migrationsDir, err)
	}

	var latest uint64
	for _, match := range matches {
		prefix, _, ok := strings.Cut(filepath.Base(match), "_")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("no migration files in %s", migrationsDir)
	}

	return uint(latest), nil
}

// CheckAndPromptMigrations verifies the schema matches the newest migration
// on disk before the daemon starts serving. It never applies anything; when
// the schema is behind it logs the commands the operator should run and
// returns shouldExit=true along with the reason.
func (db *DB) CheckAndPromptMigrations(migrationsDir string) (shouldExit bool, err error) {
	current, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		return false, fmt.Errorf("read schema version: %w", err)
	}

	latest, err := LatestMigrationVersion(migrationsDir)
	if err != nil {
		return false, fmt.Errorf("scan migrations: %w", err)
	}

	switch {
	case dirty:
		return true, fmt.Errorf("schema is dirty at version %d; inspect it with 'uartmon migrate status'", current)
	case current > latest:
		return true, fmt.Errorf("schema version %d is newer than the bundled migrations (max %d)", current, latest)
	case current == latest:
		return false, nil
	}

	log.Printf("Schema is %d migration(s) behind: have version %d, want %d", latest-current, current, latest)
	log.Printf("Apply them with:")
	log.Printf("    uartmon migrate up")
	log.Printf("Or review the state first with:")
	log.Printf("    uartmon migrate status")

	return true, fmt.Errorf("schema out of date: version %d, want %d", current, latest)
}
