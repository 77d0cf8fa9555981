package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownUser         = errors.New("unknown user")
	ErrDuplicateSubmission = errors.New("flag already submitted by user")
	ErrEmailTaken          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnauthorized        = errors.New("authentication required")
	ErrCompetitionClosed   = errors.New("the competition has ended")
	ErrInvalidConfig       = errors.New("invalid competition configuration")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUnknownUser)
}
