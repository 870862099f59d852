// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware consumes the Supabase-issued JWT on incoming requests.
// It verifies the HS256 signature and copies the subject into X-User-ID,
// which is where the API handlers read the acting user from. Requests
// carrying a forged X-User-ID get it overwritten or rejected here.
//
// With an empty secret the middleware passes requests through untouched,
// which is only for local development.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates the JWT middleware
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// skipAuth lists paths served without a token
func skipAuth(path string) bool {
	return path == "/health" || path == "/metrics"
}

// Handler wraps next with token verification
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 || skipAuth(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, `{"error":"Unauthorized","message":"Missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(auth, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, `{"error":"Unauthorized","message":"Invalid token"}`, http.StatusUnauthorized)
			return
		}

		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			http.Error(w, `{"error":"Unauthorized","message":"Token missing subject"}`, http.StatusUnauthorized)
			return
		}

		// The token subject is the only trusted user identity.
		r.Header.Set("X-User-ID", subject)
		next.ServeHTTP(w, r)
	})
}
