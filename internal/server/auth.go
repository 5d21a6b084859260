package server

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"laju/internal/identity"
	"laju/internal/logger"
	"laju/internal/session"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResponse struct {
	SessionID string           `json:"session_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  session.Operator `json:"operator"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Users.FindUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeErrorJSON(w, http.StatusUnauthorized, "unauthorized", "username or password is wrong")
			return
		}
		s.writeError(w, r, err)
		return
	}

	op := session.Operator{Username: u.Username, Name: u.Name, Branch: u.Branch, Role: u.Role}
	sess := session.New(op, s.Now(), s.SessionTTL)
	if err := s.Sessions.Create(r.Context(), sess); err != nil {
		s.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context(), s.Logger).Info("operator logged in",
		zap.String("username", op.Username), zap.String("branch", op.Branch))

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt, Operator: op})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.Sessions.Delete(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
