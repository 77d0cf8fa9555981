package domain

import "context"

// LedgerTxFunc runs inside a storage transaction. ctx carries the store's
// statement deadline and must be used for every call made through tx.
type LedgerTxFunc func(ctx context.Context, tx LedgerTx) error

// LedgerTx is the write side of the submission and score ledgers, bound to a
// single storage transaction. Everything done through one LedgerTx commits or
// rolls back together.
type LedgerTx interface {
	// RecordSubmission inserts a submission row. It fails with
	// ErrDuplicateSubmission when the (user, token) pair already exists and
	// with ErrUnknownUser when the user does not exist.
	RecordSubmission(ctx context.Context, userID UserID, token string, points int64) (SubmissionID, error)

	// ApplyDelta adds points to the user's score and increments num_flags in
	// one statement. It fails with ErrUnknownUser when no row was updated.
	ApplyDelta(ctx context.Context, userID UserID, points int64) error
}
