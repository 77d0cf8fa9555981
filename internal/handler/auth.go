package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ctf-scoreboard/internal/domain"
)

type contextKey struct{}

// userFromContext returns the user resolved by requireSession
func userFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextKey{}).(*domain.User)
	return user
}

// requireSession resolves the session cookie to an existing user
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(h.session.CookieName)
		if err != nil || cookie.Value == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		userID, err := h.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				h.clearCookie(w)
				h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
				return
			}
			h.logger.Error("failed to resolve session", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}

		user, err := h.accounts.GetUser(r.Context(), userID)
		if err != nil {
			if domain.IsNotFoundError(err) {
				if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
					h.logger.Warn("failed to delete stale session", "error", err)
				}
				h.clearCookie(w)
				h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
				return
			}
			h.logger.Error("failed to load session user", "user_id", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// startSession opens a session for user and sets the cookie
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *domain.User) bool {
	sessionID, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create session", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return false
	}
	h.setSessionCookie(w, sessionID)
	return true
}

// Register creates a user and logs them in
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrEmailTaken):
			h.writeError(w, http.StatusConflict, err)
		default:
			h.logger.Error("failed to register user", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    user,
	})
}

// Login checks credentials and opens a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.logger.Error("failed to authenticate", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.writeSuccess(w, user)
}

// Logout ends the current session, if any
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.session.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Error("failed to delete session", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
			return
		}
	}
	h.clearCookie(w)
	h.writeSuccess(w, map[string]string{"status": "logged out"})
}

// GetMe returns the session user together with their scoreboard row
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	standing, err := h.board.Standing(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to get standing", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"user":     user,
		"standing": standing,
	})
}

// GetMySubmissions lists the session user's accepted submissions
func (h *Handler) GetMySubmissions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	submissions, err := h.accounts.Submissions(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list submissions", "user_id", user.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, submissions)
}
