package postgres

import (
	"context"
	"fmt"

	"github.com/ctf-scoreboard/internal/domain"
	"github.com/jackc/pgx/v5"
)

// HasSubmitted reports whether the user has already been credited for token.
// It is advisory only; the unique constraint on submissions is authoritative.
func (r *Repository) HasSubmitted(ctx context.Context, userID domain.UserID, token string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT EXISTS(SELECT 1 FROM submissions WHERE user_id = $1 AND flag_token = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, token).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking submission existence: %w", err)
	}
	return exists, nil
}

// ListSubmissions returns a user's submissions in creation order
func (r *Repository) ListSubmissions(ctx context.Context, userID domain.UserID) ([]domain.Submission, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, flag_token, points, created_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	submissions := []domain.Submission{}
	for rows.Next() {
		var s domain.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.FlagToken, &s.Points, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}
	return submissions, nil
}

// WithinTx runs fn inside one read-committed transaction. The transaction
// commits only if fn returns nil; any error, including a failed commit,
// rolls back every write made through the LedgerTx. fn receives the bounded
// context so the statements inside the transaction share its deadline.
func (r *Repository) WithinTx(ctx context.Context, fn domain.LedgerTxFunc) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

// ledgerTx implements domain.LedgerTx on top of a pgx transaction
type ledgerTx struct {
	tx pgx.Tx
}

// RecordSubmission inserts the submission row
func (l *ledgerTx) RecordSubmission(ctx context.Context, userID domain.UserID, token string, points int64) (domain.SubmissionID, error) {
	query := `
		INSERT INTO submissions (user_id, flag_token, points)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id domain.SubmissionID
	err := l.tx.QueryRow(ctx, query, userID, token, points).Scan(&id)
	if err != nil {
		switch pgErrorCode(err) {
		case codeUniqueViolation:
			return 0, domain.ErrDuplicateSubmission
		case codeForeignKeyViolation:
			return 0, domain.ErrUnknownUser
		}
		return 0, fmt.Errorf("recording submission: %w", err)
	}
	return id, nil
}

// ApplyDelta increments the score ledger in a single statement
func (l *ledgerTx) ApplyDelta(ctx context.Context, userID domain.UserID, points int64) error {
	query := `
		UPDATE users
		SET score = score + $1, num_flags = num_flags + 1, last_accepted_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`
	result, err := l.tx.Exec(ctx, query, points, userID)
	if err != nil {
		return fmt.Errorf("applying score delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

// FindLedgerDrift returns users whose cached score or flag count disagrees
// with their submission rows
func (r *Repository) FindLedgerDrift(ctx context.Context) ([]domain.LedgerDrift, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT u.id, u.score, u.num_flags,
			   COALESCE(SUM(s.points), 0)::BIGINT AS submission_points,
			   COUNT(s.id) AS submission_count
		FROM users u
		LEFT JOIN submissions s ON s.user_id = u.id
		GROUP BY u.id, u.score, u.num_flags
		HAVING u.score <> COALESCE(SUM(s.points), 0) OR u.num_flags <> COUNT(s.id)
		ORDER BY u.id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("finding ledger drift: %w", err)
	}
	defer rows.Close()

	var drifts []domain.LedgerDrift
	for rows.Next() {
		var d domain.LedgerDrift
		if err := rows.Scan(&d.UserID, &d.Score, &d.NumFlags, &d.SubmissionPoints, &d.SubmissionCount); err != nil {
			return nil, fmt.Errorf("scanning drift: %w", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drift: %w", err)
	}
	return drifts, nil
}
