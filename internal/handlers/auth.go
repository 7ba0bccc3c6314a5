package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alextreichler/qrmenu/internal/auth"
	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
)

const (
	sessionName   = "qrmenu-session"
	sessionUserID = "user_id"
)

type contextKey int

const userKey contextKey = iota

// UserFromContext returns the user attached by Protect, or nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

type AuthHandler struct {
	Auth         *auth.Service
	SessionStore sessions.Store
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	user, err := h.Auth.Register(r.Context(), c.Name, c.Email, c.Password)
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if !h.startSession(w, r, user) {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	user, err := h.Auth.Authenticate(r.Context(), c.Email, c.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Info("Login failed", "ip", clientIP(r))
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if !h.startSession(w, r, user) {
		return
	}
	slog.Info("Login successful", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, sessionName)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1 // Expire immediately
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
	}
	writeJSON(w, http.StatusOK, errorBody{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

// CSRFToken hands the token to script clients, which echo it back in the
// X-CSRF-Token header.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": csrf.Token(r)})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	session, _ := h.SessionStore.Get(r, sessionName)
	session.Values[sessionUserID] = user.ID
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return false
	}
	return true
}

// Protect rejects requests without a valid session and attaches the
// session user to the request context.
func (h *AuthHandler) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.SessionStore.Get(r, sessionName)
		id, ok := session.Values[sessionUserID].(string)
		if !ok || id == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized, no session")
			return
		}
		user, err := h.Auth.User(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Not authorized, user no longer exists")
			return
		}
		if err != nil {
			writeServiceError(w, r, err, "")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

// Admin is Protect plus a role check.
func (h *AuthHandler) Admin(next http.HandlerFunc) http.HandlerFunc {
	return h.Protect(func(w http.ResponseWriter, r *http.Request) {
		if user := UserFromContext(r.Context()); !user.IsAdmin() {
			slog.Warn("Admin route refused", "user_id", user.ID, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "Not authorized as an admin")
			return
		}
		next(w, r)
	})
}
