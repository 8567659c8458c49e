package http

import (
	"net/http"
)

// APIKeyMiddleware guards mutating config endpoints with the static keys
// from the environment.
type APIKeyMiddleware struct {
	keys map[string]bool
}

func NewAPIKeyMiddleware(validKeys []string) *APIKeyMiddleware {
	keys := make(map[string]bool, len(validKeys))
	for _, k := range validKeys {
		if k != "" {
			keys[k] = true
		}
	}
	return &APIKeyMiddleware{keys: keys}
}

func (m *APIKeyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing X-API-Key header"}`))
			return
		}

		if !m.keys[apiKey] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
