package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists entries in one table keyed by (topic, key).
// Table names carry an environment prefix (dev_, test_, prod_) so several
// deployments can share a database.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a pgx connection pool, verifies connectivity
// and ensures the entries table exists.
func NewPostgresStore(ctx context.Context, databaseURL, tablePrefix string, logger *slog.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	config.MaxConns = 25
	config.MinConns = 5

	// Transaction poolers (port 6543) reject prepared statements;
	// cache_describe keeps the extended protocol without preparing.
	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		logger.Debug("auto-configured cache_describe mode for pooler compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, table: tablePrefix + "kv_entries"}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres store ready", "table", s.table)
	return s, nil
}

// ensureSchema creates the entries table if missing. The prefix is
// interpolated before the SQL reaches the database, so each environment
// gets its own statements.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			topic      TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (topic, key)
		)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, opts Options) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (topic, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (topic, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, s.table)
	_, err := s.pool.Exec(ctx, query, opts.Topic, key, value)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string, opts Options) (string, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE topic = $1 AND key = $2`, s.table)
	var value string
	err := s.pool.QueryRow(ctx, query, opts.Topic, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) List(ctx context.Context, topic string) ([]string, error) {
	query := fmt.Sprintf(`SELECT key FROM %s WHERE topic = $1 ORDER BY updated_at DESC`, s.table)
	rows, err := s.pool.Query(ctx, query, topic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, key, topic string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE topic = $1 AND key = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, topic, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
