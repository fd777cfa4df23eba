package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql
var postgresMigrationsFS embed.FS

// PostgresStore keeps versions in PostgreSQL through a shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects to dsn and runs pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	migrations, err := loadMigrations(postgresMigrationsFS, "migrations/postgres")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists int
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = $1", m.version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.version, err)
		}
		if exists > 0 {
			continue
		}

		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return fmt.Errorf("applying migration %d: %w", m.version, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", m.version); err != nil {
				return fmt.Errorf("recording migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *PostgresStore) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, "SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// AppendVersion stores a new version stamped with the current time.
func (s *PostgresStore) AppendVersion(ctx context.Context, nv NewVersion) (Version, error) {
	// Postgres keeps microseconds; truncate so the returned record matches
	// what a later read sees.
	v, err := newRecord(nv, s.now().Truncate(time.Microsecond))
	if err != nil {
		return Version{}, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO versions (id, created_at, prompt, plan, code, explanation)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.Timestamp, v.Prompt, v.Plan, v.Code, v.Explanation,
	)
	if err != nil {
		return Version{}, fmt.Errorf("inserting version: %w", err)
	}
	return v, nil
}

// GetVersion returns a single version by ID.
func (s *PostgresStore) GetVersion(ctx context.Context, id string) (Version, error) {
	var v Version
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at, prompt, plan, code, explanation
		FROM versions WHERE id = $1`, id,
	).Scan(&v.ID, &v.Timestamp, &v.Prompt, &v.Plan, &v.Code, &v.Explanation)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, err
	}
	v.Timestamp = v.Timestamp.UTC()
	return v, nil
}

// RecentVersions returns up to limit versions, newest first.
func (s *PostgresStore) RecentVersions(ctx context.Context, limit int) ([]Version, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, prompt, plan, code, explanation
		FROM versions ORDER BY created_at DESC, id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Version{}
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.Timestamp, &v.Prompt, &v.Plan, &v.Code, &v.Explanation); err != nil {
			return nil, err
		}
		v.Timestamp = v.Timestamp.UTC()
		results = append(results, v)
	}
	return results, rows.Err()
}
