// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package authz decides what an authenticated subject may do, using a
// Casbin RBAC enforcer. The built-in policy grants the reader and admin
// roles read access to the query endpoints and reserves the admin
// endpoints (index rebuild) for the admin role; any other role is
// denied. Deployments needing more override the model and policy via
// configuration.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/nwalsh/imdbsearch/internal/auth"
)

// Objects and actions the policy speaks in.
const (
	ObjectSearch = "search"
	ObjectTitles = "titles"
	ObjectAdmin  = "admin"

	ActionRead  = "read"
	ActionWrite = "write"
)

// builtinModel is a standard RBAC model: subjects map to roles, roles
// to (object, action) grants.
const builtinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// builtinPolicy: readers query, admins additionally rebuild.
var builtinPolicy = [][]string{
	{"reader", ObjectSearch, ActionRead},
	{"reader", ObjectTitles, ActionRead},
	{"admin", ObjectSearch, ActionRead},
	{"admin", ObjectTitles, ActionRead},
	{"admin", ObjectAdmin, ActionWrite},
}

// Enforcer answers allow/deny questions about subjects.
type Enforcer struct {
	e *casbin.Enforcer
}

// NewEnforcer builds an enforcer from the given model and policy file
// paths; empty paths select the built-in model and policy.
func NewEnforcer(modelPath, policyPath string) (*Enforcer, error) {
	if modelPath != "" {
		e, err := casbin.NewEnforcer(modelPath, policyPath)
		if err != nil {
			return nil, fmt.Errorf("loading casbin model %s: %w", modelPath, err)
		}
		return &Enforcer{e: e}, nil
	}
	m, err := model.NewModelFromString(builtinModel)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("creating casbin enforcer: %w", err)
	}
	for _, rule := range builtinPolicy {
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, fmt.Errorf("adding built-in policy: %w", err)
		}
	}
	return &Enforcer{e: e}, nil
}

// Allowed reports whether any of the subject's roles grants act on
// obj.
func (z *Enforcer) Allowed(sub auth.Subject, obj, act string) (bool, error) {
	for _, role := range sub.Roles {
		ok, err := z.e.Enforce(role, obj, act)
		if err != nil {
			return false, fmt.Errorf("casbin enforce: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
