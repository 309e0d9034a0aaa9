package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	accounts "github.com/goliatone/go-accounts"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsDir = "data/sql/migrations"
)

// FS returns the embedded migrations for dialect. Postgres files live at the
// migrations root and SQLite files in its sqlite directory.
func FS(dialect string) (fs.FS, error) {
	return dialectFS(accounts.GetMigrationsFS(), dialect)
}

func dialectFS(root fs.FS, dialect string) (fs.FS, error) {
	base, err := fs.Sub(root, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}

	var fsys fs.FS
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
		fsys = base
	case DialectSQLite:
		if fsys, err = fs.Sub(base, DialectSQLite); err != nil {
			return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
		}
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dialect, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s filesystem has no *.up.sql files", dialect)
	}
	return fsys, nil
}
