package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/erp-pos/internal/domain/auth"
	"github.com/xenking/erp-pos/pkg/httpmiddleware"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "api_key"

type keyInfoKey struct{}

// KeyFromContext returns the API key that authenticated the request.
func KeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// Authenticator authenticates API requests via HMAC-SHA256 hashed API keys.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key
// repository and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{apikeys: apikeys, pepper: pepper}
}

// Authenticate hashes key, looks it up and compares the stored hash in
// constant time.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, bool) {
	if key == "" {
		return nil, false
	}
	hexHash := auth.HashKey(a.pepper, key)

	info, err := a.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, false
	}

	// The repository may return a row that does not belong to this key.
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, false
	}
	computed, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, false
	}
	return info, true
}

// Require rejects requests without a valid key with 401 and keys lacking
// scope with 403. An empty scope only requires authentication.
func (a *Authenticator) Require(scope string) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, ok := a.Authenticate(ctx, r.Header.Get(APIKeyHeader))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if scope != "" && !info.Allows(scope) {
				zctx.From(ctx).Info("API key lacks scope",
					zap.String("key", info.Name),
					zap.String("scope", scope),
				)
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx = context.WithValue(ctx, keyInfoKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
