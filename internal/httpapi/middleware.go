package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"msgcache/internal/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument logs every matched request and counts API calls by route
// template, so path parameters never explode the metric cardinality.
// It must be installed with Router.Use; mux.CurrentRoute only resolves
// inside the router.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
		slog.Info("http request",
			"method", r.Method,
			"endpoint", endpoint,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
