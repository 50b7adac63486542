// Package handler serves the prefix-search and spelling-bee endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/qxuken/word-puzzles/internal/analytics"
	"github.com/qxuken/word-puzzles/internal/cache"
	"github.com/qxuken/word-puzzles/internal/puzzle/spellingbee"
	"github.com/qxuken/word-puzzles/internal/words"
	"github.com/qxuken/word-puzzles/pkg/config"
	apperrors "github.com/qxuken/word-puzzles/pkg/errors"
	"github.com/qxuken/word-puzzles/pkg/logger"
	"github.com/qxuken/word-puzzles/pkg/metrics"
	"github.com/qxuken/word-puzzles/pkg/middleware"
)

const maxBodyBytes = 64 << 10

// StoreSource yields the shared word store. words.Provider implements it.
type StoreSource interface {
	Store() (*words.Store, error)
}

type Handler struct {
	words     StoreSource
	cache     *cache.SolutionCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	scans     *semaphore.Weighted
	cfg       config.SearchConfig
	logger    *slog.Logger
}

// New builds a Handler. cache, collector and m may be nil.
func New(src StoreSource, solutions *cache.SolutionCache, collector *analytics.Collector, m *metrics.Metrics, cfg config.SearchConfig) *Handler {
	return &Handler{
		words:     src,
		cache:     solutions,
		collector: collector,
		metrics:   m,
		scans:     semaphore.NewWeighted(int64(cfg.MaxConcurrentScans)),
		cfg:       cfg,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

type SearchResponse struct {
	Query string   `json:"query"`
	Total int      `json:"total"`
	Count int      `json:"count"`
	Words []string `json:"words"`
}

type SolveResponse struct {
	Variant        string   `json:"variant"`
	Letters        string   `json:"letters"`
	RequiredLetter string   `json:"required_letter"`
	Count          int      `json:"count"`
	Words          []string `json:"words"`
	CacheHit       bool     `json:"cache_hit"`
}

type SimpleRequest struct {
	Letters string `json:"letters"`
}

// HintedRequest carries hints either structured or as the text printed with
// a puzzle. Structured entries override matrix rows for the same letter;
// prefixes from both sources are scanned, structured ones first.
type HintedRequest struct {
	Letters       string           `json:"letters"`
	LengthHints   map[string][]int `json:"length_hints,omitempty"`
	StartPrefixes []string         `json:"start_prefixes,omitempty"`
	LetterMatrix  string           `json:"letter_matrix,omitempty"`
	LetterList    string           `json:"letter_list,omitempty"`
}

// Search handles GET /api/v1/search?q=<prefix>&limit=<n>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := h.cfg.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}

	store, err := h.words.Store()
	if err != nil {
		log.Error("word store unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "dictionary unavailable")
		return
	}

	found, total := store.SearchPrefix(query, limit)
	resultType := "hit"
	if total == 0 {
		resultType = "zero_result"
	}
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}

	latency := time.Since(start)
	log.Debug("prefix search completed", "query", query, "total", total, "returned", len(found), "latency", latency)
	h.track(ctx, analytics.SolveEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Results:   total,
		LatencyUs: latency.Microseconds(),
	})

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query: query,
		Total: total,
		Count: len(found),
		Words: found,
	})
}

// SolveSimple handles POST /api/v1/games/spelling-bee/simple.
func (h *Handler) SolveSimple(w http.ResponseWriter, r *http.Request) {
	var req SimpleRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := spellingbee.NewSimple(spellingbee.NormalizeLetters(req.Letters))
	if err != nil {
		h.rejectInput(w, spellingbee.VariantSimple, err)
		return
	}
	h.solve(w, r, q)
}

// SolveHinted handles POST /api/v1/games/spelling-bee/hinted.
func (h *Handler) SolveHinted(w http.ResponseWriter, r *http.Request) {
	var req HintedRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := req.query()
	if err != nil {
		h.rejectInput(w, spellingbee.VariantHinted, err)
		return
	}
	h.solve(w, r, q)
}

func (req HintedRequest) query() (*spellingbee.Query, error) {
	raw := spellingbee.NormalizeLetters(req.Letters)
	letters, err := spellingbee.ParseLetters(raw)
	if err != nil {
		return nil, err
	}

	hints := spellingbee.ParseLengthMatrix(req.LetterMatrix, letters)
	for key, lens := range req.LengthHints {
		key = strings.ToLower(key)
		if len(key) != 1 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"length_hints key %q must be a single letter", key)
		}
		for _, n := range lens {
			if n <= spellingbee.MinLength || n > spellingbee.MaxLength {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
					"length %d for %q is outside %d..%d", n, key, spellingbee.MinLength+1, spellingbee.MaxLength)
			}
		}
		hints[key[0]] = lens
	}

	prefixes := make([]spellingbee.Prefix, 0, len(req.StartPrefixes))
	for _, p := range req.StartPrefixes {
		if len(p) != 2 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"start prefix %q must have two letters", p)
		}
		prefixes = append(prefixes, spellingbee.Prefix{p[0], p[1]})
	}
	prefixes = append(prefixes, spellingbee.ParsePrefixList(req.LetterList, letters)...)

	return spellingbee.NewHinted(raw, hints, prefixes)
}

func (h *Handler) solve(w http.ResponseWriter, r *http.Request, q *spellingbee.Query) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	variant := string(q.Variant())

	store, err := h.words.Store()
	if err != nil {
		log.Error("word store unavailable", "error", err)
		h.countScan(variant, "error")
		h.writeError(w, http.StatusServiceUnavailable, "dictionary unavailable")
		return
	}

	// cache hits never wait on the scan limit
	compute := func() ([]string, error) {
		if err := h.scans.Acquire(ctx, 1); err != nil {
			return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "too many concurrent scans")
		}
		defer h.scans.Release(1)
		if h.cfg.ParallelScan {
			return q.ScanParallel(ctx, store)
		}
		return q.Scan(store), nil
	}

	var found []string
	cacheHit := false
	cacheStatus := "disabled"
	if h.cache != nil {
		found, cacheHit, err = h.cache.GetOrCompute(ctx, q.Key(), compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		found, err = compute()
	}
	if err != nil {
		h.countScan(variant, "error")
		log.Error("scan failed", "variant", variant, "letters", q.Letters().String(), "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err))
		return
	}

	latency := time.Since(start)
	result := "ok"
	if len(found) == 0 {
		result = "zero_result"
	}
	h.countScan(variant, result)
	if h.metrics != nil {
		h.metrics.ScanDuration.WithLabelValues(variant, cacheStatus).Observe(latency.Seconds())
		h.metrics.ScanResults.WithLabelValues(variant).Observe(float64(len(found)))
	}

	letters := q.Letters()
	log.Info("spelling bee solved",
		"variant", variant,
		"letters", letters.String(),
		"words", len(found),
		"cache_hit", cacheHit,
		"latency", latency,
	)
	h.track(ctx, analytics.SolveEvent{
		Type:      analytics.EventSolve,
		Variant:   variant,
		Query:     letters.String(),
		Hinted:    q.Variant() == spellingbee.VariantHinted,
		Results:   len(found),
		LatencyUs: latency.Microseconds(),
		CacheHit:  cacheHit,
	})

	h.writeJSON(w, http.StatusOK, SolveResponse{
		Variant:        variant,
		Letters:        letters.String(),
		RequiredLetter: string(letters.Required()),
		Count:          len(found),
		Words:          found,
		CacheHit:       cacheHit,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(ctx context.Context, event analytics.SolveEvent) {
	if h.collector == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(event)
}

func (h *Handler) countScan(variant, result string) {
	if h.metrics != nil {
		h.metrics.ScansTotal.WithLabelValues(variant, result).Inc()
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) rejectInput(w http.ResponseWriter, variant spellingbee.Variant, err error) {
	h.countScan(string(variant), "invalid")
	body := map[string]string{"error": apperrors.PublicMessage(err)}
	var verr *spellingbee.ValidationError
	if errors.As(err, &verr) {
		body["kind"] = verr.Kind.String()
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
