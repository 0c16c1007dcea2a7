package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const operatorContextKey = contextKey("operatorID")

var errMissingToken = errors.New("missing authentication token")

// Claims represents the JWT payload.
type Claims struct {
	OperatorID int64  `json:"operator_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// authEnabled reports whether a signing secret is configured.
func (s *Server) authEnabled() bool { return len(s.jwtSecret) > 0 }

// generateToken creates a new JWT for an operator.
func (s *Server) generateToken(operatorID int64, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// authenticate extracts and verifies the bearer token or the token cookie.
func (s *Server) authenticate(r *http.Request) (*Claims, error) {
	var tokenString string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenString = strings.TrimPrefix(h, "Bearer ")
	}
	if tokenString == "" {
		if cookie, err := r.Cookie("token"); err == nil {
			tokenString = cookie.Value
		}
	}
	if tokenString == "" {
		return nil, errMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid authentication token")
	}
	return claims, nil
}

// requireAuthHandler rejects requests without a valid operator token.
func (s *Server) requireAuthHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			respondError(w, http.StatusServiceUnavailable, "authentication is not configured")
			return
		}
		claims, err := s.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), operatorContextKey, claims.OperatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getOperatorID extracts the operator ID from the request context.
func getOperatorID(r *http.Request) int64 {
	if val, ok := r.Context().Value(operatorContextKey).(int64); ok {
		return val
	}
	return 0
}
