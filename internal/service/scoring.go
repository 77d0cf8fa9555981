package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ctf-scoreboard/internal/competition"
	"github.com/ctf-scoreboard/internal/domain"
)

// SubmissionStore is the storage the scoring engine writes through
type SubmissionStore interface {
	HasSubmitted(ctx context.Context, userID domain.UserID, token string) (bool, error)
	WithinTx(ctx context.Context, fn domain.LedgerTxFunc) error
}

// SolvePublisher is notified after a submission has been committed
type SolvePublisher interface {
	PublishSolve(ctx context.Context, event domain.SolveEvent) error
}

// ScoringEngine validates flag submissions and credits them exactly once.
// It keeps no mutable state of its own; concurrent Submit calls are safe and
// rely on the store's transaction and uniqueness guarantees.
type ScoringEngine struct {
	store     SubmissionStore
	catalog   *competition.Catalog
	clock     competition.Clock
	publisher SolvePublisher
	logger    *slog.Logger
}

// NewScoringEngine creates a new scoring engine
func NewScoringEngine(
	store SubmissionStore,
	catalog *competition.Catalog,
	clock competition.Clock,
	logger *slog.Logger,
) *ScoringEngine {
	return &ScoringEngine{
		store:   store,
		catalog: catalog,
		clock:   clock,
		logger:  logger,
	}
}

// SetPublisher sets the publisher that receives accepted solves
func (e *ScoringEngine) SetPublisher(publisher SolvePublisher) {
	e.publisher = publisher
}

// IsOpen reports whether scoring is still permitted at now
func (e *ScoringEngine) IsOpen(now time.Time) bool {
	return e.clock.IsOpen(now)
}

// Submit credits rawInput to userID if the competition is open, the flag is
// known and the user has not been credited for it before. Rejections are
// reported through the outcome; the error is non-nil only together with
// StatusInternalError.
func (e *ScoringEngine) Submit(ctx context.Context, userID domain.UserID, rawInput string, now time.Time) (domain.SubmissionOutcome, error) {
	if !e.clock.IsOpen(now) {
		return domain.SubmissionOutcome{Status: domain.StatusCompetitionClosed}, nil
	}

	if !e.catalog.IsValid(rawInput) {
		e.logger.Debug("invalid flag submitted", "user_id", userID)
		return domain.SubmissionOutcome{Status: domain.StatusInvalidFlag}, nil
	}

	// Fast path only. The insert below is what actually prevents double credit.
	submitted, err := e.store.HasSubmitted(ctx, userID, rawInput)
	if err != nil {
		e.logger.Warn("advisory duplicate check failed", "user_id", userID, "error", err)
	} else if submitted {
		return domain.SubmissionOutcome{Status: domain.StatusAlreadySubmitted}, nil
	}

	points := e.catalog.ValueOf(rawInput)

	var id domain.SubmissionID
	err = e.store.WithinTx(ctx, func(txCtx context.Context, tx domain.LedgerTx) error {
		var err error
		id, err = tx.RecordSubmission(txCtx, userID, rawInput, points)
		if err != nil {
			return err
		}
		return tx.ApplyDelta(txCtx, userID, points)
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateSubmission):
		e.logger.Debug("duplicate flag submission", "user_id", userID)
		return domain.SubmissionOutcome{Status: domain.StatusAlreadySubmitted}, nil
	case errors.Is(err, domain.ErrUnknownUser):
		e.logger.Warn("submission for unknown user", "user_id", userID)
		return domain.SubmissionOutcome{Status: domain.StatusUnknownUser}, nil
	default:
		e.logger.Error("failed to record submission", "user_id", userID, "error", err)
		return domain.SubmissionOutcome{Status: domain.StatusInternalError}, err
	}

	e.logger.Info("flag accepted", "user_id", userID, "submission_id", id, "points", points)

	if e.publisher != nil {
		event := domain.SolveEvent{
			SubmissionID: id,
			UserID:       userID,
			Points:       points,
			Timestamp:    now,
		}
		if err := e.publisher.PublishSolve(ctx, event); err != nil {
			// The solve is committed; a lost notification is not a scoring failure.
			e.logger.Warn("failed to publish solve", "submission_id", id, "error", err)
		}
	}

	return domain.SubmissionOutcome{
		Status:       domain.StatusAccepted,
		Points:       points,
		SubmissionID: id,
	}, nil
}

// SubmitFlag submits at the current wall-clock time
func (e *ScoringEngine) SubmitFlag(ctx context.Context, submission domain.FlagSubmission) (domain.SubmissionOutcome, error) {
	return e.Submit(ctx, submission.UserID, submission.Flag, time.Now())
}
