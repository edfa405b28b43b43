// Package gateway exposes accounts, payments and assets over HTTP.
//
// The gateway is stateless: every request is validated for presence of its required
// fields, delegated to the account manager or payment workflow, and answered with JSON.
// Missing fields are the only client errors (400); every other failure is a 500 whose
// body carries the error message, its code and, for rejected transactions, the ledger's
// result codes.
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/marwen-abid/stellar-payments-go/account"
	"github.com/marwen-abid/stellar-payments-go/observer"
	"github.com/marwen-abid/stellar-payments-go/payment"
)

// StreamSource returns an observer for one account's payments. Each stream request
// gets its own observer.
type StreamSource func(publicKey string) observer.Observer

// Server serves the payment API.
type Server struct {
	accounts *account.Manager
	payments *payment.Workflow
	streams  StreamSource
	log      *logrus.Entry
	validate *validator.Validate
	registry *prometheus.Registry
	metrics  *metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithStreams enables GET /api/account/{publicKey}/stream.
func WithStreams(streams StreamSource) Option {
	return func(s *Server) {
		s.streams = streams
	}
}

// WithRegistry registers the server's metrics on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// NewServer creates a Server.
func NewServer(accounts *account.Manager, payments *payment.Workflow, opts ...Option) *Server {
	s := &Server{
		accounts: accounts,
		payments: payments,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.registry)
	s.log = s.log.WithField("component", "gateway")
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(requestID)
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.log))
	router.Use(s.metrics.middleware)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	router.Route("/api", func(r chi.Router) {
		r.Route("/account", func(r chi.Router) {
			r.Post("/create", s.handleCreateAccount)
			r.Post("/import", s.handleImportAccount)
			r.Post("/fund", s.handleFundAccount)
			r.Get("/{publicKey}", s.handleGetAccount)
			r.Get("/{publicKey}/stream", s.handleStream)
		})

		r.Post("/payment", s.handlePayment)

		r.Route("/asset", func(r chi.Router) {
			r.Post("/create", s.handleCreateAsset)
			r.Post("/trust", s.handleTrustAsset)
			r.Post("/issue", s.handleIssueAsset)
		})
	})

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
