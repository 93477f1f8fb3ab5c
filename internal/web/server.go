package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"guildstats/internal/database"
	"guildstats/internal/tracker"
)

var (
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guildstats",
		Subsystem: "http",
		Name:      "request_latency_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildstats",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route",
	}, []string{"route", "method", "code"})
)

// Server exposes the stats dashboard API over HTTP.
type Server struct {
	log        *zap.Logger
	reader     *tracker.Reader
	aggregator *tracker.Aggregator
	store      database.Store
	coverDir   string
	router     *mux.Router
}

func NewServer(log *zap.Logger, reader *tracker.Reader, aggregator *tracker.Aggregator, store database.Store, coverDir string) *Server {
	srv := &Server{
		log:        log,
		reader:     reader,
		aggregator: aggregator,
		store:      store,
		coverDir:   coverDir,
	}
	srv.buildRouter()
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	api.HandleFunc("/games", s.handleGames).Methods(http.MethodGet)
	api.HandleFunc("/games/{name}", s.handleGame).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.handleUser).Methods(http.MethodGet)
	api.HandleFunc("/servers", s.handleServers).Methods(http.MethodGet)
	api.HandleFunc("/aggregate", s.handleAggregate).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/images/").Handler(
		http.StripPrefix("/static/images/", http.FileServer(http.Dir(s.coverDir))))

	s.router = r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		routeName := "unknown"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		labels := prometheus.Labels{
			"route":  routeName,
			"method": r.Method,
			"code":   strconv.Itoa(rw.status),
		}
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
		httpRequests.With(labels).Inc()
	})
}

// responseWriter captures HTTP status codes for logging/metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
