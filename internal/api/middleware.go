package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/noisestream/internal/logging"
)

// HTTPLoggingMiddleware logs Huma requests with a level chosen by status code.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)
	logRequest(ctx.Context(), ctx.Method(), ctx.URL().Path, ctx.URL().RawQuery,
		ctx.RemoteAddr(), ctx.Header("User-Agent"), ctx.Status(), time.Since(start))
}

// statusRecorder captures the status written by a plain handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestLogging logs requests served outside Huma.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logRequest(r.Context(), r.Method, r.URL.Path, r.URL.RawQuery,
			r.RemoteAddr, r.UserAgent(), rec.status, time.Since(start))
	})
}

func logRequest(ctx context.Context, method, path, query, remoteAddr, userAgent string, status int, duration time.Duration) {
	logAttrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", remoteAddr),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	}
	if query != "" {
		logAttrs = append(logAttrs, slog.String("query", query))
	}
	if userAgent != "" {
		logAttrs = append(logAttrs, slog.String("user_agent", userAgent))
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == http.MethodOptions, strings.HasPrefix(path, "/hls/"):
		// players poll playlists and segments every few seconds
		level = slog.LevelDebug
	}
	logging.GetLogger("http").LogAttrs(ctx, level, "HTTP request completed", logAttrs...)
}
