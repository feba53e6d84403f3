package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/catalogo/internal/config"
	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/JonMunkholm/catalogo/internal/logging"
)

// APIKeyHeader carries the caller's key.
const APIKeyHeader = "X-API-Key"

// AnonymousActor is recorded as importadoPor when auth is disabled.
const AnonymousActor = "sistema"

// APIKeyAuth returns middleware that validates X-API-Key against the
// configured owner:key pairs and records the key's owner as the request
// actor. If RequireAPIKey is false, every request passes as AnonymousActor.
// If RequireAPIKey is true but no keys are configured, all requests are
// rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([]apiKey, 0, len(cfg.APIKeys))
	for key, owner := range cfg.Owners() {
		keys = append(keys, apiKey{key: []byte(key), owner: owner})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, withActor(r, AnonymousActor))
				return
			}

			logger := logging.FromContext(r.Context())

			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				logger.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method)
				writeAuthError(w, http.StatusUnauthorized, core.CategoryUnauthorized, "No autenticado")
				return
			}

			owner, ok := matchAPIKey(presented, keys)
			if !ok {
				logger.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method)
				writeAuthError(w, http.StatusForbidden, core.CategoryForbidden, "Clave de API no válida")
				return
			}

			next.ServeHTTP(w, withActor(r, owner))
		})
	}
}

type apiKey struct {
	key   []byte
	owner string
}

// matchAPIKey compares against every key in constant time, so the
// comparison time does not depend on which key matches.
func matchAPIKey(presented string, keys []apiKey) (string, bool) {
	var owner string
	found := 0
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(presented), k.key) == 1 {
			owner = k.owner
			found = 1
		}
	}
	return owner, found == 1
}

func withActor(r *http.Request, actor string) *http.Request {
	ctx := core.ContextWithActor(r.Context(), actor)
	ctx = logging.ContextWith(ctx, "actor", actor)
	return r.WithContext(ctx)
}

func writeAuthError(w http.ResponseWriter, status int, category core.Category, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    string(category),
			"message": message,
		},
	})
}
