package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ctf-scoreboard/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type submissionKey struct {
	userID domain.UserID
	token  string
}

type fakeUser struct {
	user           domain.User
	lastAcceptedAt *time.Time
}

// FakeStore is an in-memory store with the same guarantees the scoring engine
// expects from Postgres: a transaction's writes become visible together on
// commit, the (user, token) pair is unique, and the user must exist.
// Transactions are serialized, which is stricter than read committed but
// yields the same observable outcomes for these operations.
type FakeStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	trace       []string
	users       map[domain.UserID]*fakeUser
	submissions map[submissionKey]domain.Submission
	nextUserID  domain.UserID
	nextSubID   domain.SubmissionID

	HasSubmittedFunc     func(ctx context.Context, userID domain.UserID, token string) (bool, error)
	RecordSubmissionFunc func(ctx context.Context, userID domain.UserID, token string, points int64) error
	ApplyDeltaFunc       func(ctx context.Context, userID domain.UserID, points int64) error
	CommitFunc           func() error

	// TxTimeout bounds the context handed to WithinTx callbacks when set.
	TxTimeout time.Duration
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		users:       make(map[domain.UserID]*fakeUser),
		submissions: make(map[submissionKey]domain.Submission),
	}
}

func (f *FakeStore) record(step string) {
	f.mu.Lock()
	f.trace = append(f.trace, step)
	f.mu.Unlock()
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// AddUser seeds a user with a zero ledger and returns its id.
func (f *FakeStore) AddUser(name string) domain.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUserID++
	id := f.nextUserID
	f.users[id] = &fakeUser{user: domain.User{ID: id, Name: name, Email: name + "@example.com"}}
	return id
}

// SetScore overwrites a user's ledger directly.
func (f *FakeStore) SetScore(id domain.UserID, score int64, lastAcceptedAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].user.Score = score
	f.users[id].lastAcceptedAt = lastAcceptedAt
}

func (f *FakeStore) User(id domain.UserID) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].user
}

func (f *FakeStore) SubmissionsFor(id domain.UserID) []domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Submission
	for k, s := range f.submissions {
		if k.userID == id {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeStore) SubmissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}

// --- SubmissionStore ---

func (f *FakeStore) HasSubmitted(ctx context.Context, userID domain.UserID, token string) (bool, error) {
	f.record("HasSubmitted")
	if f.HasSubmittedFunc != nil {
		return f.HasSubmittedFunc(ctx, userID, token)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.submissions[submissionKey{userID, token}]
	return ok, nil
}

func (f *FakeStore) WithinTx(ctx context.Context, fn domain.LedgerTxFunc) error {
	f.record("WithinTx")
	f.txMu.Lock()
	defer f.txMu.Unlock()

	if f.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.TxTimeout)
		defer cancel()
	}

	tx := &fakeTx{store: f, deltas: map[domain.UserID]int64{}, counts: map[domain.UserID]int{}}
	if err := fn(ctx, tx); err != nil {
		f.record("Rollback")
		return err
	}
	if f.CommitFunc != nil {
		if err := f.CommitFunc(); err != nil {
			f.record("Rollback")
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range tx.inserted {
		f.submissions[submissionKey{s.UserID, s.FlagToken}] = s
	}
	for id, delta := range tx.deltas {
		u := f.users[id]
		u.user.Score += delta
		u.user.NumFlags += tx.counts[id]
		u.lastAcceptedAt = &now
	}
	f.trace = append(f.trace, "Commit")
	return nil
}

type fakeTx struct {
	store    *FakeStore
	inserted []domain.Submission
	deltas   map[domain.UserID]int64
	counts   map[domain.UserID]int
}

func (t *fakeTx) RecordSubmission(ctx context.Context, userID domain.UserID, token string, points int64) (domain.SubmissionID, error) {
	f := t.store
	f.record("RecordSubmission")
	if f.RecordSubmissionFunc != nil {
		if err := f.RecordSubmissionFunc(ctx, userID, token, points); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return 0, domain.ErrUnknownUser
	}
	if _, ok := f.submissions[submissionKey{userID, token}]; ok {
		return 0, domain.ErrDuplicateSubmission
	}
	for _, s := range t.inserted {
		if s.UserID == userID && s.FlagToken == token {
			return 0, domain.ErrDuplicateSubmission
		}
	}
	f.nextSubID++
	s := domain.Submission{ID: f.nextSubID, UserID: userID, FlagToken: token, Points: points, CreatedAt: time.Now()}
	t.inserted = append(t.inserted, s)
	return s.ID, nil
}

func (t *fakeTx) ApplyDelta(ctx context.Context, userID domain.UserID, points int64) error {
	f := t.store
	f.record("ApplyDelta")
	if f.ApplyDeltaFunc != nil {
		if err := f.ApplyDeltaFunc(ctx, userID, points); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return domain.ErrUnknownUser
	}
	t.deltas[userID] += points
	t.counts[userID]++
	return nil
}

// --- RankingStore ---

func (f *FakeStore) GetRankedUsers(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	f.record("GetRankedUsers")
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]*fakeUser, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.user.Score != b.user.Score {
			return a.user.Score > b.user.Score
		}
		switch {
		case a.lastAcceptedAt != nil && b.lastAcceptedAt != nil && !a.lastAcceptedAt.Equal(*b.lastAcceptedAt):
			return a.lastAcceptedAt.Before(*b.lastAcceptedAt)
		case a.lastAcceptedAt != nil && b.lastAcceptedAt == nil:
			return true
		case a.lastAcceptedAt == nil && b.lastAcceptedAt != nil:
			return false
		}
		return a.user.ID < b.user.ID
	})

	entries := make([]domain.LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = domain.LeaderboardEntry{
			Rank:           int64(i + 1),
			UserID:         u.user.ID,
			Name:           u.user.Name,
			Score:          u.user.Score,
			NumFlags:       u.user.NumFlags,
			LastAcceptedAt: u.lastAcceptedAt,
		}
	}
	return entries, nil
}

func (f *FakeStore) GetUserRank(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error) {
	entries, err := f.GetRankedUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.UserID == id {
			return &e, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// --- SolvePublisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.SolveEvent
	err    error
}

func (p *fakePublisher) PublishSolve(ctx context.Context, event domain.SolveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// --- UserStore ---

type fakeUserStore struct {
	mu     sync.Mutex
	nextID domain.UserID
	users  map[string]*domain.User

	CreateUserFunc      func(ctx context.Context, name, email, hash string) (*domain.User, error)
	ListSubmissionsFunc func(ctx context.Context, userID domain.UserID) ([]domain.Submission, error)
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User)}
}

func (s *fakeUserStore) CreateUser(ctx context.Context, name, email, hash string) (*domain.User, error) {
	if s.CreateUserFunc != nil {
		return s.CreateUserFunc(ctx, name, email, hash)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, domain.ErrEmailTaken
	}
	s.nextID++
	u := &domain.User{ID: s.nextID, Name: name, Email: email, PasswordHash: hash}
	s.users[email] = u
	return u, nil
}

func (s *fakeUserStore) GetUserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) ListSubmissions(ctx context.Context, userID domain.UserID) ([]domain.Submission, error) {
	if s.ListSubmissionsFunc != nil {
		return s.ListSubmissionsFunc(ctx, userID)
	}
	return []domain.Submission{}, nil
}

// Ensure the fakes satisfy the interfaces
var (
	_ SubmissionStore = (*FakeStore)(nil)
	_ RankingStore    = (*FakeStore)(nil)
	_ SolvePublisher  = (*fakePublisher)(nil)
	_ UserStore       = (*fakeUserStore)(nil)
)
