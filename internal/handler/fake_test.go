package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ctf-scoreboard/internal/domain"
)

type fakeScorer struct {
	mu      sync.Mutex
	open    bool
	calls   []domain.FlagSubmission
	outcome domain.SubmissionOutcome
	err     error
}

func (s *fakeScorer) Submit(ctx context.Context, userID domain.UserID, rawInput string, now time.Time) (domain.SubmissionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, domain.FlagSubmission{UserID: userID, Flag: rawInput})
	return s.outcome, s.err
}

func (s *fakeScorer) IsOpen(now time.Time) bool {
	return s.open
}

type fakeBoard struct {
	entries []domain.LeaderboardEntry
	err     error
	info    domain.CompetitionInfo
}

func (b *fakeBoard) Rank(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return b.entries, b.err
}

func (b *fakeBoard) Standing(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, e := range b.entries {
		if e.UserID == id {
			return &e, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (b *fakeBoard) CompetitionInfo(now time.Time) domain.CompetitionInfo {
	return b.info
}

type fakeAccounts struct {
	users       map[domain.UserID]*domain.User
	passwords   map[string]string
	submissions []domain.Submission

	RegisterFunc func(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		users:     make(map[domain.UserID]*domain.User),
		passwords: make(map[string]string),
	}
}

func (a *fakeAccounts) add(id domain.UserID, name, email, password string) *domain.User {
	u := &domain.User{ID: id, Name: name, Email: email}
	a.users[id] = u
	a.passwords[email] = password
	return u
}

func (a *fakeAccounts) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if a.RegisterFunc != nil {
		return a.RegisterFunc(ctx, req)
	}
	if _, ok := a.passwords[req.Email]; ok {
		return nil, domain.ErrEmailTaken
	}
	return a.add(domain.UserID(len(a.users)+1), req.Name, req.Email, req.Password), nil
}

func (a *fakeAccounts) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if pw, ok := a.passwords[email]; !ok || pw != password {
		return nil, domain.ErrInvalidCredentials
	}
	for _, u := range a.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (a *fakeAccounts) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (a *fakeAccounts) Submissions(ctx context.Context, id domain.UserID) ([]domain.Submission, error) {
	return a.submissions, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.UserID
	next     int
	err      error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]domain.UserID)}
}

func (s *fakeSessions) Create(ctx context.Context, userID domain.UserID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.next++
	id := fmt.Sprintf("session-%d", s.next)
	s.sessions[id] = userID
	return id, nil
}

func (s *fakeSessions) Get(ctx context.Context, sessionID string) (domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	id, ok := s.sessions[sessionID]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	return id, nil
}

func (s *fakeSessions) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type fakeLimiter struct {
	allowed int
	err     error
}

func (l *fakeLimiter) Allow(ctx context.Context, userID domain.UserID) error {
	if l.err != nil {
		return l.err
	}
	if l.allowed <= 0 {
		return domain.ErrRateLimited
	}
	l.allowed--
	return nil
}

var errBoom = errors.New("boom")
