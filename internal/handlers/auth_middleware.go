package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/shared"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type contextKey string

const actorKey contextKey = "actor"

/*
AuthMiddleware verifies the HS256 bearer token and stores the acting user
in the request context. Browsers cannot set headers on a websocket
handshake, so a "token" query parameter is accepted as well.
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return h.JWTSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			shared.SendError(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}
		name, _ := claims["name"].(string)

		ctx := context.WithValue(r.Context(), actorKey, board.Actor{ID: sub, Name: name})
		next(w, r.WithContext(ctx))
	}
}

func actorFrom(ctx context.Context) (board.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(board.Actor)
	return actor, ok && actor.ID != ""
}

func (h *Handler) generateJWTToken(userID, name string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  now.Add(tokenTTL).Unix(),
		"iat":  now.Unix(),
	})
	signed, err := token.SignedString(h.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}
