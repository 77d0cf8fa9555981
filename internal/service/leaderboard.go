package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctf-scoreboard/internal/competition"
	"github.com/ctf-scoreboard/internal/domain"
)

// RankingStore reads the score ledger in scoreboard order
type RankingStore interface {
	GetRankedUsers(ctx context.Context) ([]domain.LeaderboardEntry, error)
	GetUserRank(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error)
}

// LeaderboardService assembles the scoreboard. Nothing is cached; every call
// reads the ledger again.
type LeaderboardService struct {
	store   RankingStore
	catalog *competition.Catalog
	clock   competition.Clock
	info    domain.CompetitionInfo
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	store RankingStore,
	catalog *competition.Catalog,
	clock competition.Clock,
	name, logoURL string,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		store:   store,
		catalog: catalog,
		clock:   clock,
		info: domain.CompetitionInfo{
			Name:    name,
			LogoURL: logoURL,
			EndTime: clock.EndsAt(),
		},
		logger: logger,
	}
}

// Rank returns all users ordered by score descending. Equal scores are
// ordered by who reached the score first, then by registration order.
func (s *LeaderboardService) Rank(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.store.GetRankedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking users: %w", err)
	}
	return entries, nil
}

// Standing returns a single user's scoreboard row
func (s *LeaderboardService) Standing(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error) {
	return s.store.GetUserRank(ctx, id)
}

// CompetitionInfo describes the competition as of now
func (s *LeaderboardService) CompetitionInfo(now time.Time) domain.CompetitionInfo {
	info := s.info
	info.Open = s.clock.IsOpen(now)
	info.TotalFlags = s.catalog.Total()
	info.TotalAvailable = s.catalog.TotalPoints()
	return info
}
