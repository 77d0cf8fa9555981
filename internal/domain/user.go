package domain

import "time"

// UserID identifies a registered competitor.
type UserID int64

// SubmissionID is the storage-assigned id of an accepted submission; ids grow
// in creation order.
type SubmissionID int64

// User represents a registered competitor together with its score ledger.
type User struct {
	ID           UserID    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Score        int64     `json:"score"`
	NumFlags     int       `json:"num_flags"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submission is the persisted record of one user being credited for one flag.
type Submission struct {
	ID        SubmissionID `json:"id"`
	UserID    UserID       `json:"user_id"`
	FlagToken string       `json:"-"`
	Points    int64        `json:"points"`
	CreatedAt time.Time    `json:"created_at"`
}

// RegisterRequest represents a request to create a new user
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a request to open a session
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FlagSubmission is a request to credit a flag to a user. It is the payload of
// both the HTTP submit route (where UserID comes from the session) and the
// Kafka submission topic.
type FlagSubmission struct {
	UserID UserID `json:"user_id"`
	Flag   string `json:"flag"`
}

// LedgerDrift describes a user whose cached score ledger disagrees with the
// sum of their submissions.
type LedgerDrift struct {
	UserID           UserID `json:"user_id"`
	Score            int64  `json:"score"`
	NumFlags         int    `json:"num_flags"`
	SubmissionPoints int64  `json:"submission_points"`
	SubmissionCount  int    `json:"submission_count"`
}
