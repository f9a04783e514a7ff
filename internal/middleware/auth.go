// internal/middleware/auth.go
package middleware

import (
	"bytes"
	"crypto/ed25519"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/lobbybot/internal/discord"
	"github.com/jason-s-yu/lobbybot/internal/tasks"
	"github.com/sirupsen/logrus"
)

// maxBody bounds how much of a webhook body is read.
const maxBody = 1 << 20

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	AuthenticateJWT(token string) (string, error)
}

// VerifyInteraction rejects webhook calls whose Ed25519 signature does not
// match. The body is restored for the next handler.
func VerifyInteraction(key ed25519.PublicKey, logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
			if err != nil {
				http.Error(w, "unreadable body", http.StatusBadRequest)
				return
			}
			sig := r.Header.Get(discord.HeaderSignature)
			ts := r.Header.Get(discord.HeaderTimestamp)
			if !discord.VerifySignature(key, sig, ts, body) {
				logger.WithFields(logrus.Fields{
					"request_id": RequestID(r.Context()),
					"remote":     r.RemoteAddr,
				}).Warn("rejected interaction with bad signature")
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTaskToken admits only delayed-task callbacks signed by the
// dispatcher. The token subject must equal the X-Task-ID header.
func RequireTaskToken(v TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			sub, err := v.AuthenticateJWT(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusForbidden)
				return
			}
			if sub != r.Header.Get(tasks.HeaderTaskID) {
				http.Error(w, "token does not match task", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
