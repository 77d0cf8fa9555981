package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ctf-scoreboard/internal/config"
	"github.com/ctf-scoreboard/internal/domain"
)

// LedgerAuditor reports users whose score ledger disagrees with their
// submission rows
type LedgerAuditor interface {
	FindLedgerDrift(ctx context.Context) ([]domain.LedgerDrift, error)
}

// AuditWorker periodically checks that every user's score equals the sum of
// their submissions. It only reports; it never rewrites the ledger.
type AuditWorker struct {
	store   LedgerAuditor
	config  *config.AuditConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(store LedgerAuditor, cfg *config.AuditConfig, logger *slog.Logger) *AuditWorker {
	return &AuditWorker{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Start begins the background audit loop. A stopped worker may be started
// again.
func (w *AuditWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("audit worker started", "interval", w.config.Interval)

	go w.run(ctx, stopCh, doneCh)
	return nil
}

// Stop stops the background audit loop and waits for it to exit
func (w *AuditWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.logger.Info("audit worker stopped")
	return nil
}

// run is the main worker loop
func (w *AuditWorker) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("ledger audit failed", "error", err)
			}
		}
	}
}

// RunOnce runs a single audit cycle and returns the drifted users
func (w *AuditWorker) RunOnce(ctx context.Context) ([]domain.LedgerDrift, error) {
	startTime := time.Now()

	drifts, err := w.store.FindLedgerDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("auditing ledger: %w", err)
	}

	for _, d := range drifts {
		w.logger.Error("score ledger drift detected",
			"user_id", d.UserID,
			"score", d.Score,
			"submission_points", d.SubmissionPoints,
			"num_flags", d.NumFlags,
			"submission_count", d.SubmissionCount,
		)
	}

	w.logger.Info("ledger audit completed",
		"duration", time.Since(startTime),
		"drifted_users", len(drifts),
	)
	return drifts, nil
}

// IsRunning returns whether the worker is currently running
func (w *AuditWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
