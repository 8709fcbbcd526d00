package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// APIKeyHeader carries operator API keys. The legacy "api_key" header is
// accepted as well.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests without a valid API key granted scope. The
// key name is added to the request logger.
func (h *Handler) RequireAPIKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				key = r.Header.Get("api_key")
			}

			info, err := h.keys.Authenticate(r.Context(), key, scope)
			if err != nil {
				fail(w, r, err)
				return
			}
			ctx := zctx.With(r.Context(), zap.String("api_key", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
