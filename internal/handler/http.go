package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctf-scoreboard/internal/config"
	"github.com/ctf-scoreboard/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Scorer credits flag submissions
type Scorer interface {
	Submit(ctx context.Context, userID domain.UserID, rawInput string, now time.Time) (domain.SubmissionOutcome, error)
	IsOpen(now time.Time) bool
}

// Scoreboard reads rankings and competition details
type Scoreboard interface {
	Rank(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Standing(ctx context.Context, id domain.UserID) (*domain.LeaderboardEntry, error)
	CompetitionInfo(now time.Time) domain.CompetitionInfo
}

// Accounts manages user identities
type Accounts interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	Submissions(ctx context.Context, id domain.UserID) ([]domain.Submission, error)
}

// Sessions maps session ids to users
type Sessions interface {
	Create(ctx context.Context, userID domain.UserID) (string, error)
	Get(ctx context.Context, sessionID string) (domain.UserID, error)
	Delete(ctx context.Context, sessionID string) error
}

// RateLimiter bounds how often a user may submit
type RateLimiter interface {
	Allow(ctx context.Context, userID domain.UserID) error
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the scoreboard API
type Handler struct {
	scorer   Scorer
	board    Scoreboard
	accounts Accounts
	sessions Sessions
	limiter  RateLimiter
	checks   map[string]ReadinessCheck
	session  config.SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(
	scorer Scorer,
	board Scoreboard,
	accounts Accounts,
	sessions Sessions,
	sessionCfg config.SessionConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		scorer:   scorer,
		board:    board,
		accounts: accounts,
		sessions: sessions,
		checks:   make(map[string]ReadinessCheck),
		session:  sessionCfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetRateLimiter enables per-user submission rate limiting
func (h *Handler) SetRateLimiter(limiter RateLimiter) {
	h.limiter = limiter
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/competition", h.GetCompetition)
		r.Get("/scoreboard", h.GetScoreboard)

		r.With(h.competitionOpen).Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.With(h.competitionOpen).Post("/submit", h.SubmitFlag)
			r.Get("/me", h.GetMe)
			r.Get("/me/submissions", h.GetMySubmissions)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// competitionOpen rejects mutations once the competition has ended and
// shows the final scoreboard instead
func (h *Handler) competitionOpen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.scorer.IsOpen(h.now()) {
			next.ServeHTTP(w, r)
			return
		}

		resp := APIResponse{
			Success: false,
			Error:   domain.SubmissionOutcome{Status: domain.StatusCompetitionClosed}.Message(),
		}
		entries, err := h.board.Rank(r.Context())
		if err != nil {
			h.logger.Error("failed to rank users for closed competition", "error", err)
		} else {
			resp.Data = entries
		}
		h.writeJSON(w, http.StatusForbidden, resp)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck probes every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    status,
			Error:   "not ready",
		})
		return
	}
	status["status"] = "ready"
	h.writeSuccess(w, status)
}
