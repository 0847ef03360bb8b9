package opshandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/platform/jobs"
	"evalconsole/internal/platform/journal"
	"evalconsole/internal/transport/http/api"
	"evalconsole/internal/transport/http/middleware"
	"evalconsole/internal/transport/http/shared"
)

type JournalStore interface {
	Count(ctx context.Context, filter journal.Filter) (int, error)
	List(ctx context.Context, filter journal.Filter, limit, offset int) ([]journal.Entry, error)
	Resolve(ctx context.Context, id string) error
}

type Snapshotter interface {
	Snapshot() map[string]any
}

// Handler serves the operator views: the transition journal and metrics.
// Journal is nil when no database is configured.
type Handler struct {
	Journal JournalStore
	Jobs    *jobs.Service
	Sweep   jobs.RunFunc
	Metrics Snapshotter
}

func NewHandler(store JournalStore, jobService *jobs.Service, sweep jobs.RunFunc, metrics Snapshotter) *Handler {
	return &Handler{Journal: store, Jobs: jobService, Sweep: sweep, Metrics: metrics}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/journal", func(r chi.Router) {
		r.Use(middleware.RequireCapability(auth.PermJournal))
		r.Get("/", h.handleList)
		r.Post("/{entryID}/resolve", h.handleResolve)
		r.Post("/sweep", h.handleSweep)
	})
}

func (h *Handler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.Journal == nil {
		api.Fail(w, http.StatusServiceUnavailable, "journal_disabled", "no journal database is configured", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	v := shared.NewValidator()
	q := shared.NewQuery(r.URL.Query(), v)
	filter := journal.Filter{
		EvaluationID: q.String("evaluation_id"),
		Outcome:      q.String("outcome"),
		OpenOnly:     q.Bool("open"),
		Since:        q.Date("since"),
	}
	v.Enum("outcome", filter.Outcome, []string{"committed", "compensated", "unresolved"}, "must be committed, compensated or unresolved")
	page := q.Page(50, 200)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	total, err := h.Journal.Count(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "journal_list_failed", err)
		return
	}
	entries, err := h.Journal.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "journal_list_failed", err)
		return
	}
	api.Success(w, api.NewPage(entries, total, page.Limit, page.Offset), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	err := h.Journal.Resolve(r.Context(), chi.URLParam(r, "entryID"))
	if errors.Is(err, journal.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "no open journal entry with that id", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "journal_resolve_failed", err)
		return
	}
	api.Success(w, map[string]string{"status": "resolved"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	if h.Jobs == nil || h.Sweep == nil {
		api.Fail(w, http.StatusServiceUnavailable, "journal_disabled", "the sweep job is not configured", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Jobs.RunNow(r.Context(), jobs.JobJournalSweep, h.Sweep)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "journal_sweep_failed", err)
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		api.Fail(w, http.StatusNotFound, "not_found", "metrics are disabled", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}
