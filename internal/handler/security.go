package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kalamart/storefront/internal/domain/auth"
)

// userIDKey is the context key for the authenticated customer id.
type userIDKey struct{}

// UserIDFromContext extracts the authenticated customer id from the context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// withUserID returns a context carrying the authenticated customer id. Used
// by tests to bypass token parsing.
func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// CustomerAuth returns a middleware that authenticates customers via a JWT
// bearer token. The token must be HMAC-signed with the shared secret and
// carry a non-empty "sub" claim identifying the customer.
func CustomerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), sub)))
		})
	}
}

// APIKeyAuth returns a middleware that authenticates admin requests by
// computing the HMAC-SHA256 of the provided API key, looking it up in the
// repository, and performing a constant-time comparison to prevent timing
// attacks.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "api key required")
				return
			}

			hexHash := auth.HashKey(pepper, key)
			info, err := apikeys.FindByHash(r.Context(), hexHash)
			if err != nil {
				zctx.From(r.Context()).Warn("API key rejected", zap.String("remote", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// The stored hash can differ from the computed one when the
			// repository returns a stale row.
			computed, err := hex.DecodeString(hexHash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare(computed, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
