// Package httpapi exposes the flight board over HTTP: the FlightManagement
// JSON endpoints, the /flightHub push channel, health and metrics.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flightboard-service/pkg/logger"
)

// Options configures the router
type Options struct {
	AllowedOrigin string
	Gatherer      prometheus.Gatherer
	WriteTimeout  time.Duration
	PingInterval  time.Duration
}

// NewRouter wires the handlers into a chi router
func NewRouter(board FlightBoard, subscriber Subscriber, opts Options, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		// one policy for the JSON endpoints and the hub upgrade
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return originAllowed(opts.AllowedOrigin, origin)
		},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials:     true,
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Healthy"))
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := NewHandler(board, log)
	r.Route("/api/FlightManagement", func(r chi.Router) {
		r.Post("/getflights", h.GetFlights)
		r.Post("/getairports", h.GetAirports)
		r.Post("/saveflight", h.SaveFlight)
		r.Get("/flighthistory/{flightNumber}", h.FlightHistory)
	})

	r.Handle("/flightHub", NewHub(subscriber, HubOptions{
		AllowedOrigin: opts.AllowedOrigin,
		WriteTimeout:  opts.WriteTimeout,
		PingInterval:  opts.PingInterval,
	}, log))

	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()))
		})
	}
}

// originAllowed reports whether origin may call the board. "*" allows any origin.
func originAllowed(allowed, origin string) bool {
	return allowed == "*" || (allowed != "" && allowed == origin)
}
