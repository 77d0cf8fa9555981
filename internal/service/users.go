package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ctf-scoreboard/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// UserStore holds user identities and their submission history
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*domain.User, error)
	GetUserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListSubmissions(ctx context.Context, userID domain.UserID) ([]domain.Submission, error)
}

// UserService handles registration, credential checks and per-user history
type UserService struct {
	store    UserStore
	hashCost int
	logger   *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(store UserStore, logger *slog.Logger) *UserService {
	return &UserService{
		store:    store,
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
	}
}

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// Register creates a user. Emails are unique and compared case-sensitively.
func (s *UserService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Password == "" || !strings.Contains(req.Email, "@") {
		return nil, domain.ErrInvalidRequest
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidRequest, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, req.Name, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords yield the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// Submissions returns the user's accepted submissions in creation order
func (s *UserService) Submissions(ctx context.Context, id domain.UserID) ([]domain.Submission, error) {
	submissions, err := s.store.ListSubmissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return submissions, nil
}
