package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/RobinCoderZhao/hopeshot/internal/user"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() || s.users == nil {
			respondError(w, http.StatusServiceUnavailable, "authentication is not configured")
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		op, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
		if errors.Is(err, user.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if err != nil {
			s.logger.Error("operator lookup failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		token, err := s.generateToken(op.ID, op.Role)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate token")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "token",
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		respondJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"message":     "Login successful",
			"operator_id": op.ID,
			"role":        op.Role,
			"token":       token,
		})
	}
}

func (s *Server) handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"operator_id": getOperatorID(r),
		})
	}
}
