// Package adminapi serves the card management HTTP API.
package adminapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocardgate/cardid"
	"gocardgate/cardstore"
)

const defaultLogLimit = 100

// Handler handles the admin endpoints.
type Handler struct {
	store   cardstore.Store
	metrics http.Handler
}

// New creates a Handler. metricsHandler may be nil.
func New(store cardstore.Store, metricsHandler http.Handler) *Handler {
	return &Handler{store: store, metrics: metricsHandler}
}

// Router returns the admin routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", h.handleListCards)
		r.Post("/cards", h.handleAddCard)
		r.Put("/cards/{id}", h.handleUpdateCard)
		r.Delete("/cards/{id}", h.handleDeleteCard)

		r.Get("/logs", h.handleLogs)
		r.Delete("/logs", h.handleClearLogs)

		r.Get("/stats", h.handleStats)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cardstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cardstore.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Stats(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListCards lists cards, optionally filtered by ?q= matching the id
// or name.
func (h *Handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	out := make([]cardstore.Card, 0, len(cards))
	for _, c := range cards {
		if q == "" || strings.Contains(string(c.ID), q) || strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type addCardRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Authorized *bool  `json:"authorized"`
}

func (h *Handler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := cardid.Parse(req.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	authorized := true
	if req.Authorized != nil {
		authorized = *req.Authorized
	}

	card, err := h.store.Add(r.Context(), cardstore.Card{ID: id, Name: name, Authorized: authorized})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

type updateCardRequest struct {
	Authorized *bool `json:"authorized"`
}

func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	var req updateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Authorized == nil {
		writeError(w, http.StatusBadRequest, `body must be {"authorized": bool}`)
		return
	}

	card, err := h.store.SetAuthorized(r.Context(), id, *req.Authorized)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogs returns recent access events, newest first. ?limit= caps the
// count (default 100) and ?status=authorized|denied filters.
func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var want *bool
	switch r.URL.Query().Get("status") {
	case "", "all":
	case "authorized":
		v := true
		want = &v
	case "denied":
		v := false
		want = &v
	default:
		writeError(w, http.StatusBadRequest, "status must be authorized, denied or all")
		return
	}

	fetch := limit
	if want != nil {
		// Filter after fetching everything so the limit applies to matches.
		fetch = 0
	}
	events, err := h.store.RecentAccess(r.Context(), fetch)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	out := make([]cardstore.AccessEvent, 0, limit)
	for _, ev := range events {
		if want != nil && ev.Authorized != *want {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAccess(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
