package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backend is implemented by every version store.
type Backend interface {
	AppendVersion(ctx context.Context, v NewVersion) (Version, error)
	RecentVersions(ctx context.Context, limit int) ([]Version, error)
	GetVersion(ctx context.Context, id string) (Version, error)
	AppliedMigrations(ctx context.Context) ([]int, error)
	Close() error
}

// Open picks a backend from dsn: postgres:// and postgresql:// URLs go to
// PostgreSQL, anything else is treated as a SQLite data directory (or
// ":memory:").
func Open(ctx context.Context, dsn string) (Backend, error) {
	if isPostgresDSN(dsn) {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(dsn)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// newRecord stamps a NewVersion with a time-ordered ID and the write time.
func newRecord(v NewVersion, now time.Time) (Version, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Version{}, fmt.Errorf("generating version id: %w", err)
	}
	return Version{
		ID:          id.String(),
		Prompt:      v.Prompt,
		Plan:        v.Plan,
		Code:        v.Code,
		Explanation: v.Explanation,
		Timestamp:   now.UTC(),
	}, nil
}

type migration struct {
	version int
	name    string
	sql     string
}

// loadMigrations reads *.sql files from dir in fsys, ordered by the numeric
// prefix of their filename.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: version, name: entry.Name(), sql: string(content)})
	}
	return out, nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}
