package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vocdoni/electiond/auth"
	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/results"
	stg "github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/types"
	"github.com/vocdoni/electiond/voting"
)

// DefaultRequestTimeout bounds a request, including the wait for the vote
// transaction to be confirmed.
const DefaultRequestTimeout = 150 * time.Second

// VoteCaster casts ballots.
type VoteCaster interface {
	Cast(ctx context.Context, req *voting.CastRequest) (*voting.Receipt, error)
}

// ResultsReader computes election results.
type ResultsReader interface {
	Results(ctx context.Context, election *types.Election, now time.Time) (*results.Results, error)
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Storage        *stg.Storage
	Voting         VoteCaster
	Results        ResultsReader
	Auth           auth.Authenticator
	Eligibility    *eligibility.Gate
	Metrics        prometheus.Gatherer // Optional: defaults to the prometheus default gatherer
	RequestTimeout time.Duration       // Optional: defaults to DefaultRequestTimeout
}

// API type represents the API HTTP server with bearer token authentication.
type API struct {
	router      *chi.Mux
	storage     *stg.Storage
	voting      VoteCaster
	results     ResultsReader
	auth        auth.Authenticator
	eligibility *eligibility.Gate
	metrics     prometheus.Gatherer
	timeout     time.Duration
	now         func() time.Time
}

// New creates a new API instance with the given configuration and
// initializes its router. Serving it is up to the caller.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Voting == nil || conf.Results == nil {
		return nil, fmt.Errorf("missing voting or results service")
	}
	if conf.Auth == nil {
		return nil, fmt.Errorf("missing authenticator")
	}
	a := &API{
		storage:     conf.Storage,
		voting:      conf.Voting,
		results:     conf.Results,
		auth:        conf.Auth,
		eligibility: conf.Eligibility,
		metrics:     conf.Metrics,
		timeout:     conf.RequestTimeout,
		now:         time.Now,
	}
	if a.eligibility == nil {
		a.eligibility = eligibility.New(conf.Storage)
	}
	if a.metrics == nil {
		a.metrics = prometheus.DefaultGatherer
	}
	if a.timeout <= 0 {
		a.timeout = DefaultRequestTimeout
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", VoteEndpoint, "method", "POST")
	a.router.Post(VoteEndpoint, a.vote)
	log.Infow("register handler", "endpoint", ElectionResultsEndpoint, "method", "GET")
	a.router.Get(ElectionResultsEndpoint, a.electionResults)
	log.Infow("register handler", "endpoint", ElectionEligibilityEndpoint, "method", "GET")
	a.router.Get(ElectionEligibilityEndpoint, a.electionEligibility)
	log.Infow("register handler", "endpoint", ElectionVotedEndpoint, "method", "GET")
	a.router.Get(ElectionVotedEndpoint, a.electionVoted)
	log.Infow("register handler", "endpoint", MetricsEndpoint, "method", "GET")
	a.router.Method(http.MethodGet, MetricsEndpoint, promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(a.timeout))

	a.registerHandlers()
}
