// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package main serves the imdbsearch query API.
//
// @title imdbsearch API
// @version 1.0
// @description Fuzzy name search with relevance ranking and structured
// @description filtering over the IMDb bulk data set.
// @description
// @description ## Authentication
// @description
// @description Depending on deployment, endpoints under /v1 require an
// @description API key (X-API-Key header), a JWT bearer token, or an
// @description OIDC ID token. The admin rebuild endpoint additionally
// @description requires the admin role.
// @description
// @description ## Rate Limiting
// @description
// @description Requests are limited per client IP and per authenticated
// @description principal.
//
// @tag.name Search
// @tag.description Fuzzy name search, including the websocket streaming endpoint
//
// @tag.name Titles
// @tag.description Record lookup by IMDb id: titles, alternate names, ratings, episodes
//
// @tag.name Admin
// @tag.description Index rebuild trigger (admin role required)
package main
