package httptransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKeyActor struct{}

// Actor returns the authenticated user's email, or "" outside an
// authenticated request.
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(contextKeyActor{}).(string)
	return actor
}

func withActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKeyActor{}, email)
}

// TokenVerifier validates a bearer token and extracts the actor email.
type TokenVerifier interface {
	Verify(token string) (email string, err error)
}

// HMACVerifier validates HS256-signed tokens. The actor email is taken from
// the "email" claim, falling back to "sub".
type HMACVerifier struct {
	key []byte
}

func NewHMACVerifier(key []byte) *HMACVerifier {
	return &HMACVerifier{key: key}
}

func (v *HMACVerifier) Verify(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		return email, nil
	}
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("token carries no email or sub claim")
}

// RequireAuth rejects requests without a valid bearer token and stores the
// actor email on the request context.
func RequireAuth(verifier TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			email, err := verifier.Verify(token)
			if err != nil {
				log.WarnContext(r.Context(), "rejected token", "error", err)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), email)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
