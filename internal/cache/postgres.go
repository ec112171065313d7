package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// PostgresBackend stores one row per barcode in the nutrition_cache table.
// Call EnsureSchema before using it.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend wraps an existing pool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the nutrition_cache table if it is missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS nutrition_cache (
  barcode TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  calories DOUBLE PRECISION NOT NULL DEFAULT 0,
  fat DOUBLE PRECISION NOT NULL DEFAULT 0,
  carbs DOUBLE PRECISION NOT NULL DEFAULT 0,
  protein DOUBLE PRECISION NOT NULL DEFAULT 0,
  sugar DOUBLE PRECISION NOT NULL DEFAULT 0,
  fiber DOUBLE PRECISION NOT NULL DEFAULT 0
);`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create nutrition_cache table: %w", err)
	}
	return nil
}

// NewDB opens a pgx pool and verifies the connection.
func NewDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// One writer per process; a small pool is plenty.
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

var cacheColumns = []string{"barcode", "name", "calories", "fat", "carbs", "protein", "sugar", "fiber"}

// Load reads every row of the table.
func (p *PostgresBackend) Load(ctx context.Context) (map[string]nutrition.Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT barcode, name, calories, fat, carbs, protein, sugar, fiber FROM nutrition_cache`)
	if err != nil {
		return nil, fmt.Errorf("%w: select: %w", ErrLoadFailed, err)
	}
	defer rows.Close()

	records := make(map[string]nutrition.Record)
	for rows.Next() {
		var code string
		var r nutrition.Record
		if err := rows.Scan(&code, &r.Name, &r.Calories, &r.Fat, &r.Carbs, &r.Protein, &r.Sugar, &r.Fiber); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrLoadFailed, err)
		}
		records[code] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", ErrLoadFailed, err)
	}
	return records, nil
}

// Save replaces the table contents with records in a single transaction.
func (p *PostgresBackend) Save(ctx context.Context, records map[string]nutrition.Record) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrSaveFailed, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM nutrition_cache`); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrSaveFailed, err)
	}

	rows := make([][]any, 0, len(records))
	for code, r := range records {
		rows = append(rows, []any{code, r.Name, r.Calories, r.Fat, r.Carbs, r.Protein, r.Sugar, r.Fiber})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"nutrition_cache"}, cacheColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("%w: copy: %w", ErrSaveFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrSaveFailed, err)
	}
	return nil
}

// Close releases the pool.
func (p *PostgresBackend) Close() {
	p.pool.Close()
}
