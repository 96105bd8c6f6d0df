package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger records every admin API call. Stack operations are what an
// operator greps for, so those log at info with the operation name; health
// polls and metrics scrapes stay at debug to keep the rotated log readable.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if quietEndpoint(r.URL.Path) {
			level = slog.LevelDebug
		}
		slog.Log(r.Context(), level, "admin request",
			"op", operationName(r.Method, r.URL.Path),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func quietEndpoint(path string) bool {
	return path == "/health" || path == "/metrics"
}

// operationName maps a request to the bridge operation it drives, so log
// lines read as stack activity rather than raw routes.
func operationName(method, path string) string {
	switch {
	case path == "/api/v1/pages" && method == http.MethodGet:
		return "listPages"
	case path == "/api/v1/pages" && method == http.MethodPost:
		return "push"
	case path == "/api/v1/pages/pop":
		return "pop"
	case path == "/api/v1/pages/root":
		return "popToRoot"
	case path == "/api/v1/messages":
		return "postMessage"
	case path == "/api/v1/stats":
		return "stats"
	case strings.HasPrefix(path, "/bridge/ws"):
		return "bindChannel"
	default:
		return "other"
	}
}
