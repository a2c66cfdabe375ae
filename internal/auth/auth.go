// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package auth authenticates HTTP requests to the query facade. Three
// schemes are supported, selected by configuration: a static API key
// checked against a bcrypt hash, locally-signed HMAC JWTs, and OIDC ID
// tokens verified against an external issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated is returned when a request carries no usable
// credentials or invalid ones.
var ErrUnauthenticated = errors.New("unauthenticated")

// Subject is the authenticated principal attached to a request.
type Subject struct {
	// ID identifies the principal: the JWT/OIDC subject, or "apikey"
	// for the static key scheme.
	ID string
	// Roles feed the authorization layer.
	Roles []string
}

type subjectKey struct{}

// ContextWithSubject attaches the subject to the request context.
func ContextWithSubject(ctx context.Context, sub Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	sub, ok := ctx.Value(subjectKey{}).(Subject)
	return sub, ok
}

// Authenticator verifies the credentials on a request.
type Authenticator interface {
	// Authenticate returns the request's subject, or
	// ErrUnauthenticated (possibly wrapped) when the credentials are
	// absent or invalid.
	Authenticate(r *http.Request) (Subject, error)
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):], true
	}
	return "", false
}

// AllowAll authenticates every request as an anonymous admin. Only for
// auth_mode "none" deployments on trusted networks.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request) (Subject, error) {
	return Subject{ID: "anonymous", Roles: []string{"admin", "reader"}}, nil
}

// APIKey checks the X-API-Key header (or a Bearer token) against a
// bcrypt hash of the deployment's static key. The plaintext key lives
// only with clients; configuration stores the hash.
type APIKey struct {
	hash  []byte
	roles []string
}

// NewAPIKey builds an authenticator from the configured bcrypt hash.
func NewAPIKey(hash string, roles []string) *APIKey {
	if len(roles) == 0 {
		roles = []string{"admin", "reader"}
	}
	return &APIKey{hash: []byte(hash), roles: roles}
}

func (a *APIKey) Authenticate(r *http.Request) (Subject, error) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key, _ = bearerToken(r)
	}
	if key == "" {
		return Subject{}, fmt.Errorf("missing API key: %w", ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(key)); err != nil {
		return Subject{}, fmt.Errorf("invalid API key: %w", ErrUnauthenticated)
	}
	return Subject{ID: "apikey", Roles: a.roles}, nil
}

// jwtClaims is the claim set this deployment issues and accepts.
type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// JWT verifies HMAC-SHA256 bearer tokens signed with a shared secret.
type JWT struct {
	secret []byte
}

// NewJWT builds a verifier for the shared signing secret.
func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

func (a *JWT) Authenticate(r *http.Request) (Subject, error) {
	token, ok := bearerToken(r)
	if !ok {
		return Subject{}, fmt.Errorf("missing bearer token: %w", ErrUnauthenticated)
	}
	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return Subject{}, fmt.Errorf("invalid bearer token: %w", ErrUnauthenticated)
	}
	return Subject{ID: claims.Subject, Roles: claims.Roles}, nil
}

// Sign issues a token for the given subject and roles, used by tests
// and by deployments that mint their own tokens.
func (a *JWT) Sign(subject string, roles []string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Roles:            roles,
	})
	return token.SignedString(a.secret)
}

// OIDC verifies ID tokens against an external issuer's published keys.
type OIDC struct {
	rp         rp.RelyingParty
	rolesClaim string
}

// NewOIDC discovers the issuer and prepares a token verifier. Discovery
// performs network I/O, so it takes a context.
func NewOIDC(ctx context.Context, issuerURL, clientID, rolesClaim string) (*OIDC, error) {
	relying, err := rp.NewRelyingPartyOIDC(ctx, issuerURL, clientID, "", "", nil)
	if err != nil {
		return nil, fmt.Errorf("OIDC discovery for %s: %w", issuerURL, err)
	}
	if rolesClaim == "" {
		rolesClaim = "roles"
	}
	return &OIDC{rp: relying, rolesClaim: rolesClaim}, nil
}

func (a *OIDC) Authenticate(r *http.Request) (Subject, error) {
	token, ok := bearerToken(r)
	if !ok {
		return Subject{}, fmt.Errorf("missing bearer token: %w", ErrUnauthenticated)
	}
	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](r.Context(), token, a.rp.IDTokenVerifier())
	if err != nil {
		return Subject{}, fmt.Errorf("invalid ID token: %w", ErrUnauthenticated)
	}
	return Subject{ID: claims.Subject, Roles: rolesFromClaims(claims, a.rolesClaim)}, nil
}

// rolesFromClaims pulls the configured roles claim out of the token's
// unmapped claims; issuers encode it as either a string list or a
// single string.
func rolesFromClaims(claims *oidc.IDTokenClaims, rolesClaim string) []string {
	raw, ok := claims.Claims[rolesClaim]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		return []string{v}
	default:
		return nil
	}
}

// HashAPIKey bcrypt-hashes a plaintext key for storage in
// configuration.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing API key: %w", err)
	}
	return string(hash), nil
}
