package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctf-scoreboard/internal/config"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the repository translates into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool             *pgxpool.Pool
	logger           *slog.Logger
	statementTimeout time.Duration
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return NewRepositoryFromPool(pool, cfg.StatementTimeout, logger), nil
}

// NewRepositoryFromPool wraps an existing pool. A zero timeout leaves the
// caller's context deadline untouched.
func NewRepositoryFromPool(pool *pgxpool.Pool, statementTimeout time.Duration, logger *slog.Logger) *Repository {
	return &Repository{
		pool:             pool,
		logger:           logger,
		statementTimeout: statementTimeout,
	}
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

// withTimeout bounds a storage call so that a stuck database surfaces as an
// error instead of a hung request.
func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.statementTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.statementTimeout)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			num_flags INT NOT NULL DEFAULT 0,
			last_accepted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			flag_token TEXT NOT NULL,
			points BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, flag_token)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_ranking ON users(score DESC, last_accepted_at ASC NULLS LAST, id ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id, id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// pgErrorCode returns the SQLSTATE of err, or "" if err is not a server error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
