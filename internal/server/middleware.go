// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package server

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nwalsh/imdbsearch/internal/auth"
	"github.com/nwalsh/imdbsearch/internal/logging"
)

// requestID stamps every request with a request id, propagated through
// the context into all log lines and echoed in the X-Request-ID
// response header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		var ctx = r.Context()
		if id == "" {
			ctx = logging.ContextWithNewRequestID(ctx)
			id = logging.RequestIDFromContext(ctx)
		} else {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate resolves the request's credentials into a subject and
// attaches it to the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.authn.Authenticate(r)
		if err != nil {
			logging.CtxDebug(r.Context()).Err(err).Msg("authentication failed")
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSubject(r.Context(), sub)))
	})
}

// authorize gates a route group on a Casbin grant.
func (s *Server) authorize(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := auth.SubjectFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			allowed, err := s.authz.Allowed(sub, obj, act)
			if err != nil {
				logging.CtxError(r.Context()).Err(err).Msg("authorization check failed")
				writeError(w, r, http.StatusInternalServerError, "authorization check failed")
				return
			}
			if !allowed {
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyRateLimiters holds one token bucket per authenticated principal,
// bounding each key's sustained query rate underneath the per-IP
// limit.
type keyRateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

func newKeyRateLimiters(perSec float64, burst int) *keyRateLimiters {
	return &keyRateLimiters{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perSec),
		burst:    burst,
	}
}

func (k *keyRateLimiters) allow(key string) bool {
	if k.perSec <= 0 {
		return true
	}
	k.mu.Lock()
	lim, ok := k.limiters[key]
	if !ok {
		lim = rate.NewLimiter(k.perSec, k.burst)
		k.limiters[key] = lim
	}
	k.mu.Unlock()
	return lim.Allow()
}

// perKeyRateLimit enforces the per-principal token bucket.
func (s *Server) perKeyRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := auth.SubjectFromContext(r.Context())
		if ok && !s.keyRates.allow(sub.ID) {
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
