// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nwalsh/imdbsearch/internal/index"
	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/metrics"
	"github.com/nwalsh/imdbsearch/internal/record"
	"github.com/nwalsh/imdbsearch/internal/scored"
	"github.com/nwalsh/imdbsearch/internal/search"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.CtxDebug(r.Context()).Err(err).Msg("writing response failed")
	}
	metrics.APIRequests.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
}

// resultEntry is one search result on the wire.
type resultEntry struct {
	Score  float64         `json:"score"`
	Title  titleResponse   `json:"title"`
	Rating *ratingResponse `json:"rating,omitempty"`
	// Episode is present only for tvEpisode titles.
	Episode *episodeResponse `json:"episode,omitempty"`
}

type titleResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	Name           string  `json:"name"`
	OriginalName   string  `json:"original_name,omitempty"`
	IsAdult        bool    `json:"is_adult,omitempty"`
	StartYear      *uint32 `json:"start_year,omitempty"`
	EndYear        *uint32 `json:"end_year,omitempty"`
	RuntimeMinutes *uint32 `json:"runtime_minutes,omitempty"`
	Genres         string  `json:"genres,omitempty"`
}

type ratingResponse struct {
	Rating float32 `json:"rating"`
	Votes  uint32  `json:"votes"`
}

type episodeResponse struct {
	ID       string  `json:"id"`
	TVShowID string  `json:"tvshow_id"`
	Season   *uint32 `json:"season,omitempty"`
	Episode  *uint32 `json:"episode,omitempty"`
}

func toTitleResponse(t record.Title) titleResponse {
	out := titleResponse{
		ID:             t.ID,
		Kind:           t.Kind.String(),
		Name:           t.Name,
		IsAdult:        t.IsAdult,
		StartYear:      t.StartYear,
		EndYear:        t.EndYear,
		RuntimeMinutes: t.RuntimeMinutes,
		Genres:         t.Genres,
	}
	if t.OriginalTitle != t.Name {
		out.OriginalName = t.OriginalTitle
	}
	return out
}

func toResultEntries(results *scored.Results[record.MediaEntity]) []resultEntry {
	entries := make([]resultEntry, 0, results.Len())
	for _, r := range results.Items() {
		ent := r.Value()
		entry := resultEntry{Score: r.Score(), Title: toTitleResponse(ent.Title)}
		if ent.Rating != nil {
			entry.Rating = &ratingResponse{Rating: ent.Rating.Value, Votes: ent.Rating.Votes}
		}
		if ent.Episode != nil {
			entry.Episode = &episodeResponse{
				ID:       ent.Episode.ID,
				TVShowID: ent.Episode.TVShowID,
				Season:   ent.Episode.Season,
				Episode:  ent.Episode.EpisodeNum,
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// handleSearch godoc
//
//	@Summary	Search titles
//	@Param		q	query	string	true	"query in the textual query syntax"
//	@Produce	json
//	@Success	200	{object}	searchResponse
//	@Router		/v1/search [get]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	qstr := r.URL.Query().Get("q")
	q, err := search.ParseQuery(qstr)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	results, err := s.runQuery(r.Context(), q)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			writeError(w, r, http.StatusServiceUnavailable, "exhaustive scans temporarily disabled")
			return
		}
		logging.CtxError(r.Context()).Err(err).Str("query", qstr).Msg("search failed")
		writeError(w, r, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, r, http.StatusOK, searchResponse{
		Query:   q.String(),
		Results: toResultEntries(results),
	})
}

type searchResponse struct {
	Query   string        `json:"query"`
	Results []resultEntry `json:"results"`
}

// handleTitle returns the full media entity for one IMDb id.
func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ent, ok, err := s.Index().Entity(id)
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("entity lookup failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no such title")
		return
	}
	entry := resultEntry{Score: 1.0, Title: toTitleResponse(ent.Title)}
	if ent.Rating != nil {
		entry.Rating = &ratingResponse{Rating: ent.Rating.Value, Votes: ent.Rating.Votes}
	}
	if ent.Episode != nil {
		entry.Episode = &episodeResponse{
			ID:       ent.Episode.ID,
			TVShowID: ent.Episode.TVShowID,
			Season:   ent.Episode.Season,
			Episode:  ent.Episode.EpisodeNum,
		}
	}
	writeJSON(w, r, http.StatusOK, entry)
}

// handleAKAs returns the alternate names of one title.
func (s *Server) handleAKAs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	iter, err := s.Index().AKARecords(id)
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("aka lookup failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	akas, err := iter.Collect()
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("aka decode failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, akas)
}

// handleRating returns the rating of one title.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rating, ok, err := s.Index().Rating(id)
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("rating lookup failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no rating")
		return
	}
	writeJSON(w, r, http.StatusOK, ratingResponse{Rating: rating.Value, Votes: rating.Votes})
}

// handleSeasons returns every episode of a TV show.
func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	episodes, err := s.Index().Seasons(id)
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("seasons lookup failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, episodes)
}

// handleEpisodes returns one season of a TV show.
func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	season, err := strconv.ParseUint(chi.URLParam(r, "season"), 10, 32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid season number")
		return
	}
	episodes, err := s.Index().Episodes(id, uint32(season))
	if err != nil {
		logging.CtxError(r.Context()).Err(err).Str("id", id).Msg("episodes lookup failed")
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, episodes)
}

// handleHealth reports liveness and basic index stats.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.Index().NameIndexConfig()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "ok",
		"rebuilding":     s.rebuilding.Load(),
		"num_documents":  cfg.NumDocuments,
		"avg_doc_length": cfg.AvgDocumentLen,
	})
}

// handleRebuild kicks off an index rebuild in the background and
// returns immediately. Only one rebuild runs at a time. The new index
// is swapped in atomically on success; queries keep using the old one
// until then.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.rebuildMu.TryLock() {
		writeError(w, r, http.StatusConflict, "rebuild already in progress")
		return
	}
	s.rebuilding.Store(true)
	current := s.Index()
	// The request context dies when this handler returns; the rebuild
	// outlives it.
	ctx := context.Background()
	go func() {
		defer s.rebuildMu.Unlock()
		defer s.rebuilding.Store(false)
		start := time.Now()
		builder := index.NewBuilder().
			NgramType(s.cfg.Index.NgramTypeParsed()).
			NgramSize(s.cfg.Index.NgramSize)
		if s.bus != nil {
			builder = builder.Bus(s.bus)
		}
		newIdx, err := builder.Create(ctx, current.DataDir(), current.IndexDir())
		if err != nil {
			logging.Error().Err(err).Msg("index rebuild failed")
			return
		}
		old := s.idx.Swap(newIdx)
		if old != nil {
			if err := old.Close(); err != nil {
				logging.Warn().Err(err).Msg("closing previous index handle")
			}
		}
		metrics.BuildLastSuccess.SetToCurrentTime()
		metrics.IndexDocuments.Set(float64(newIdx.NameIndexConfig().NumDocuments))
		logging.Info().Dur("elapsed", time.Since(start)).Msg("index rebuilt")
	}()
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "rebuild started"})
}
