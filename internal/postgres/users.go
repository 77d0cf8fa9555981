package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctf-scoreboard/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password_hash, score, num_flags, created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Score,
		&user.NumFlags,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user with an empty score ledger
func (r *Repository) CreateUser(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (name, email, password_hash, score, num_flags)
		VALUES ($1, $2, $3, 0, 0)
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, name, email, passwordHash))
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email. The match is case-sensitive.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// rankingOrder is the single source of the scoreboard order: score first,
// then whoever reached that score earliest, then earliest registration.
const rankingOrder = `score DESC, last_accepted_at ASC NULLS LAST, id ASC`

// GetRankedUsers returns every user in scoreboard order
func (r *Repository) GetRankedUsers(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, score, num_flags, last_accepted_at,
			   ROW_NUMBER() OVER (ORDER BY ` + rankingOrder + `) AS rank
		FROM users
		ORDER BY ` + rankingOrder

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting ranked users: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var entry domain.LeaderboardEntry
		err := rows.Scan(
			&entry.UserID,
			&entry.Name,
			&entry.Score,
			&entry.NumFlags,
			&entry.LastAcceptedAt,
			&entry.Rank,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ranked users: %w", err)
	}
	return entries, nil
}

// GetUserRank retrieves a single user's scoreboard row
func (r *Repository) GetUserRank(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		WITH ranked AS (
			SELECT id, name, score, num_flags, last_accepted_at,
				   ROW_NUMBER() OVER (ORDER BY ` + rankingOrder + `) AS rank
			FROM users
		)
		SELECT id, name, score, num_flags, last_accepted_at, rank
		FROM ranked
		WHERE id = $1
	`
	var entry domain.LeaderboardEntry
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&entry.UserID,
		&entry.Name,
		&entry.Score,
		&entry.NumFlags,
		&entry.LastAcceptedAt,
		&entry.Rank,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user rank: %w", err)
	}
	return &entry, nil
}
