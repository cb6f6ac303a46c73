package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware verifies the session token and stores the user id in the
// request context. Browsers cannot set headers on a websocket handshake, so
// upgrade requests may pass the token as the "token" query parameter.
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" && websocket.IsWebSocketUpgrade(r) {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			sendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := h.Sessions.Verify(tokenString)
		if errors.Is(err, auth.ErrExpiredToken) {
			sendError(w, "Token expired", http.StatusUnauthorized)
			return
		}
		if err != nil {
			sendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			sendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
