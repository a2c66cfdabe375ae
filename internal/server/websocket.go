// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package server

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/metrics"
	"github.com/nwalsh/imdbsearch/internal/search"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// CORS is already enforced by middleware before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamRequest is one incremental query from the client, typically
// sent on every keystroke.
type streamRequest struct {
	Query string `json:"query"`
	// Seq is echoed back so the client can discard stale responses
	// that arrive out of order.
	Seq int64 `json:"seq"`
}

type streamResponse struct {
	Seq     int64         `json:"seq"`
	Query   string        `json:"query"`
	Results []resultEntry `json:"results"`
	Error   string        `json:"error,omitempty"`
}

// handleSearchStream upgrades to a websocket and answers each incoming
// query message with a ranked result set, for search-as-you-type
// clients. Queries run sequentially per connection; parallel clients
// get parallel connections.
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.CtxDebug(r.Context()).Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	for {
		var req streamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.CtxDebug(r.Context()).Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		resp := streamResponse{Seq: req.Seq, Query: req.Query}
		q, err := search.ParseQuery(req.Query)
		if err != nil {
			resp.Error = err.Error()
		} else if q.Name == "" && q.NameScorer != nil && q.TVShowID == "" {
			// Keystroke-driven clients should never trigger an
			// exhaustive scan by accident; require an explicit name or
			// show filter.
			resp.Error = "streaming search requires a name or a show filter"
		} else {
			results, err := s.runQuery(r.Context(), q)
			if err != nil {
				resp.Error = "search failed"
				logging.CtxDebug(r.Context()).Err(err).Str("query", req.Query).Msg("stream query failed")
			} else {
				resp.Results = toResultEntries(results)
			}
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
