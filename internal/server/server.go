// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package server exposes the query API over HTTP: fuzzy search, record
// lookup by id, episode browsing, a streaming search endpoint, and an
// admin rebuild trigger, with authentication, RBAC, rate limiting and
// Prometheus instrumentation layered via chi middleware.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gobreaker "github.com/sony/gobreaker/v2"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nwalsh/imdbsearch/internal/auth"
	"github.com/nwalsh/imdbsearch/internal/authz"
	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/config"
	"github.com/nwalsh/imdbsearch/internal/index"
	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/metrics"
	"github.com/nwalsh/imdbsearch/internal/record"
	"github.com/nwalsh/imdbsearch/internal/scored"
	"github.com/nwalsh/imdbsearch/internal/search"
)

// Server serves the HTTP query facade over one open index. The index
// handle is swapped atomically after an admin-triggered rebuild, so
// in-flight queries keep the handle they started with.
type Server struct {
	cfg      config.Config
	idx      atomic.Pointer[index.Index]
	authn    auth.Authenticator
	authz    *authz.Enforcer
	keyRates *keyRateLimiters
	// bus carries build-phase events out of admin-triggered rebuilds.
	bus *buildstate.Bus

	// rebuildMu serializes admin rebuilds; a second request while one
	// runs gets 409.
	rebuildMu  sync.Mutex
	rebuilding atomic.Bool

	// breaker guards the exhaustive-scan path, whose cost scales with
	// the corpus rather than the result set.
	breaker *gobreaker.CircuitBreaker[*scored.Results[record.MediaEntity]]
}

// New assembles a server from configuration and an open index. For
// auth_mode oidc, issuer discovery runs against ctx. bus, when
// non-nil, receives build-phase events from admin-triggered rebuilds.
func New(ctx context.Context, cfg config.Config, idx *index.Index, bus *buildstate.Bus) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		keyRates: newKeyRateLimiters(cfg.Server.KeyRatePerSec, cfg.Server.KeyRateBurst),
		bus:      bus,
	}
	s.idx.Store(idx)

	var err error
	switch cfg.Server.AuthMode {
	case "apikey":
		s.authn = auth.NewAPIKey(cfg.Server.APIKeyHash, nil)
	case "jwt":
		s.authn = auth.NewJWT(cfg.Server.JWTSecret)
	case "oidc":
		s.authn, err = auth.NewOIDC(ctx, cfg.Server.OIDC.IssuerURL, cfg.Server.OIDC.ClientID, cfg.Server.OIDC.RolesClaim)
		if err != nil {
			return nil, err
		}
	default:
		s.authn = auth.AllowAll{}
	}
	if s.authz, err = authz.NewEnforcer(cfg.Server.Casbin.ModelPath, cfg.Server.Casbin.PolicyPath); err != nil {
		return nil, err
	}

	bcfg := cfg.Server.Breaker
	s.breaker = gobreaker.NewCircuitBreaker[*scored.Results[record.MediaEntity]](gobreaker.Settings{
		Name:    "exhaustive-scan",
		Timeout: bcfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bcfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.BreakerState.Set(breakerStateValue(to))
		},
	})
	return s, nil
}

func breakerStateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Index returns the currently open index handle.
func (s *Server) Index() *index.Index {
	return s.idx.Load()
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.cfg.Server.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
	}))
	r.Use(httprate.LimitByIP(s.cfg.Server.RateLimitReqs, s.cfg.Server.RateLimitWindow))

	// Unauthenticated operational endpoints.
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.perKeyRateLimit)

		r.Group(func(r chi.Router) {
			r.Use(s.authorize(authz.ObjectSearch, authz.ActionRead))
			r.Get("/search", s.handleSearch)
			r.Get("/search/stream", s.handleSearchStream)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.authorize(authz.ObjectTitles, authz.ActionRead))
			r.Get("/titles/{id}", s.handleTitle)
			r.Get("/titles/{id}/akas", s.handleAKAs)
			r.Get("/titles/{id}/rating", s.handleRating)
			r.Get("/tvshows/{id}/episodes", s.handleSeasons)
			r.Get("/tvshows/{id}/seasons/{season}", s.handleEpisodes)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.authorize(authz.ObjectAdmin, authz.ActionWrite))
			r.Post("/admin/rebuild", s.handleRebuild)
		})
	})
	return r
}

// searcher builds a per-request searcher over the current index
// handle. Searchers are stateless and cheap; building one per request
// keeps rebuild swaps race-free.
func (s *Server) searcher() *search.Searcher {
	return search.NewSearcher(s.idx.Load())
}

// runQuery routes a parsed query to the right execution path,
// instrumented and (for exhaustive scans) breaker-guarded.
func (s *Server) runQuery(ctx context.Context, q search.Query) (*scored.Results[record.MediaEntity], error) {
	start := time.Now()
	path := "name"
	var results *scored.Results[record.MediaEntity]
	var err error
	switch {
	case q.Name != "" && q.NameScorer != nil:
		results, err = s.searcher().Search(ctx, q)
	case q.TVShowID != "":
		path = "tvshow"
		results, err = s.searcher().Search(ctx, q)
	default:
		path = "exhaustive"
		results, err = s.breaker.Execute(func() (*scored.Results[record.MediaEntity], error) {
			scanCtx := ctx
			if t := s.cfg.Server.Breaker.ScanTimeout; t > 0 {
				var cancel context.CancelFunc
				scanCtx, cancel = context.WithTimeout(ctx, t)
				defer cancel()
			}
			return s.searcher().Search(scanCtx, q)
		})
	}
	n := 0
	if results != nil {
		n = results.Len()
	}
	metrics.ObserveQuery(path, start, n, err)
	return results, err
}
