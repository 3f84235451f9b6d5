// Package migrations exposes the hawkauth_records schema for Postgres and
// SQLite and hands each dialect's tree to a persistence client.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	hawkauth "github.com/goliatone/go-hawkauth"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel      = "go-hawkauth"
	RecordsMigration = "00001_hawkauth_records"

	migrationsDir = "data/sql/migrations"
)

// Source is one dialect's migration tree.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, source Source) error

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "postgres", "pg", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: no migrations for driver %q", driver)
	}
}

// Sources resolves the Postgres and SQLite trees from root, or from the
// embedded migrations when root is nil. Every tree must carry the records
// migration and a down file for each up file.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = hawkauth.GetMigrationsFS()
	}
	base, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: base},
		{Dialect: DialectSQLite, Path: migrationsDir + "/sqlite", FS: sqliteFS},
	}
	for _, source := range sources {
		if err := checkPairs(source); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// Register passes the embedded tree of each requested dialect to registerFn.
// With no dialects, both are registered.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	sources, err := Sources(nil)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, dialect := range dialects {
		normalized := strings.ToLower(strings.TrimSpace(dialect))
		if normalized != DialectPostgres && normalized != DialectSQLite {
			return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
		wanted[normalized] = true
	}

	registered := make([]Source, 0, len(sources))
	for _, source := range sources {
		if len(wanted) > 0 && !wanted[source.Dialect] {
			continue
		}
		if err := registerFn(ctx, source); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

func checkPairs(source Source) error {
	ups, err := fs.Glob(source.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", source.Path, err)
	}
	hasRecords := false
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if name == RecordsMigration {
			hasRecords = true
		}
		if _, err := fs.Stat(source.FS, name+".down.sql"); err != nil {
			return fmt.Errorf("migrations: %s %s has no down migration", source.Dialect, name)
		}
	}
	if !hasRecords {
		return fmt.Errorf("migrations: %s tree %q is missing %s", source.Dialect, source.Path, RecordsMigration)
	}
	return nil
}
