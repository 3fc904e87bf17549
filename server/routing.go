package server

import (
	"net/http"
	"slices"
)

// routes builds the server's mux. A dedicated mux per server keeps tests
// independent of http.DefaultServeMux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/api/metrics/stream", s.corsMiddleware(s.HandleMetricsStream))
	mux.HandleFunc("/api/metrics", s.corsMiddleware(s.HandleLatestMetrics))
	mux.HandleFunc("/api/snapshots", s.corsMiddleware(s.HandleSnapshots))
	mux.HandleFunc("/api/config", s.corsMiddleware(s.HandleConfig))
	mux.Handle("/metrics", s.telemetry.Handler())

	if s.logHub != nil {
		mux.HandleFunc("/ws/logs", s.logHub.ServeWS)
	}

	return mux
}

// corsMiddleware sets CORS headers for origins the config allows and
// answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.Server.AllowedOrigins
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
