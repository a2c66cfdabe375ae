// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package server

import "github.com/swaggo/swag"

// docTemplate is the OpenAPI document served at /swagger/doc.json. It
// is maintained by hand alongside the handler annotations; regenerate
// with `swag init` when the surface changes materially.
const docTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "title": "{{escape .Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "paths": {
    "/healthz": {
      "get": {
        "summary": "Liveness and index statistics",
        "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/v1/search": {
      "get": {
        "summary": "Search titles",
        "description": "Fuzzy name search with structured filters, expressed in the textual query syntax, e.g. ` + "`the matrix {movie} {year:1999}`" + `.",
        "tags": ["Search"],
        "produces": ["application/json"],
        "parameters": [
          {"name": "q", "in": "query", "type": "string", "required": true, "description": "query string"}
        ],
        "responses": {
          "200": {"description": "ranked results"},
          "400": {"description": "malformed query"},
          "503": {"description": "exhaustive scans temporarily disabled"}
        }
      }
    },
    "/v1/search/stream": {
      "get": {
        "summary": "Streaming search over a websocket",
        "tags": ["Search"],
        "responses": {"101": {"description": "switching protocols"}}
      }
    },
    "/v1/titles/{id}": {
      "get": {
        "summary": "Fetch one title with its episode and rating",
        "tags": ["Titles"],
        "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "no such title"}}
      }
    },
    "/v1/titles/{id}/akas": {
      "get": {
        "summary": "Alternate names of one title",
        "tags": ["Titles"],
        "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/v1/titles/{id}/rating": {
      "get": {
        "summary": "Rating of one title",
        "tags": ["Titles"],
        "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "no rating"}}
      }
    },
    "/v1/tvshows/{id}/episodes": {
      "get": {
        "summary": "All episodes of a TV show",
        "tags": ["Titles"],
        "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/v1/tvshows/{id}/seasons/{season}": {
      "get": {
        "summary": "One season of a TV show",
        "tags": ["Titles"],
        "produces": ["application/json"],
        "parameters": [
          {"name": "id", "in": "path", "type": "string", "required": true},
          {"name": "season", "in": "path", "type": "integer", "required": true}
        ],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/v1/admin/rebuild": {
      "post": {
        "summary": "Rebuild the index from the data directory",
        "tags": ["Admin"],
        "produces": ["application/json"],
        "responses": {
          "202": {"description": "rebuild started"},
          "409": {"description": "rebuild already in progress"}
        }
      }
    }
  }
}`

// SwaggerInfo registers the document with the swaggo runtime so
// http-swagger can serve it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "imdbsearch API",
	Description:      "Fuzzy name search with relevance ranking and structured filtering over the IMDb bulk data set.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
