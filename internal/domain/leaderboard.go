package domain

import (
	"time"
)

// SubmissionStatus is the terminal state of a flag submission.
type SubmissionStatus string

const (
	StatusAccepted          SubmissionStatus = "accepted"
	StatusCompetitionClosed SubmissionStatus = "competition_closed"
	StatusInvalidFlag       SubmissionStatus = "invalid_flag"
	StatusAlreadySubmitted  SubmissionStatus = "already_submitted"
	StatusUnknownUser       SubmissionStatus = "unknown_user"
	StatusInternalError     SubmissionStatus = "internal_error"
)

// SubmissionOutcome is the result of a submit call. Points is only set for
// accepted submissions.
type SubmissionOutcome struct {
	Status       SubmissionStatus `json:"status"`
	Points       int64            `json:"points,omitempty"`
	SubmissionID SubmissionID     `json:"submission_id,omitempty"`
}

// Accepted reports whether the flag was credited.
func (o SubmissionOutcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// Message returns the user-facing text for the outcome.
func (o SubmissionOutcome) Message() string {
	switch o.Status {
	case StatusAccepted:
		return "Flag submitted successfully!"
	case StatusCompetitionClosed:
		return "The competition has ended."
	case StatusInvalidFlag:
		return "Invalid flag."
	case StatusAlreadySubmitted:
		return "Flag already submitted."
	case StatusUnknownUser:
		return "Unknown user."
	default:
		return "Internal server error."
	}
}

// LeaderboardEntry represents a single row of the scoreboard
type LeaderboardEntry struct {
	Rank           int64      `json:"rank"`
	UserID         UserID     `json:"user_id"`
	Name           string     `json:"name"`
	Score          int64      `json:"score"`
	NumFlags       int        `json:"num_flags"`
	LastAcceptedAt *time.Time `json:"last_accepted_at,omitempty"`
}

// CompetitionInfo is the public description of the running competition
type CompetitionInfo struct {
	Name           string    `json:"name"`
	LogoURL        string    `json:"logo_url,omitempty"`
	EndTime        time.Time `json:"end_time"`
	Open           bool      `json:"open"`
	TotalFlags     int       `json:"total_flags"`
	TotalAvailable int64     `json:"total_available_points"`
}

// SolveEvent is published after a submission has been accepted
type SolveEvent struct {
	SubmissionID SubmissionID `json:"submission_id"`
	UserID       UserID       `json:"user_id"`
	Points       int64        `json:"points"`
	Timestamp    time.Time    `json:"timestamp"`
}
