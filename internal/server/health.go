package server

import (
	"context"
	"net/http"

	"github.com/go-sod/weld/internal/httputil"
)

// HandleHealth reports ok until ctx is done.
func HandleHealth(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx.Err() != nil {
			httputil.RespJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
			return
		}
		httputil.RespJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
