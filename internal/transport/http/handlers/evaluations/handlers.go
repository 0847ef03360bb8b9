package evaluationshandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/evaluation"
	"evalconsole/internal/platform/report"
	"evalconsole/internal/transport/http/api"
	"evalconsole/internal/transport/http/middleware"
	"evalconsole/internal/transport/http/shared"
)

type Handler struct {
	Service     *evaluation.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *evaluation.Service, idempotency *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluations", func(r chi.Router) {
		r.Use(middleware.RequireCapability(auth.PermEvaluationsRead))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{evaluationID}", func(r chi.Router) {
			r.Get("/", h.handleDetails)
			r.Get("/activity", h.handleActivity)
			r.With(middleware.RequireCapability(auth.PermEvaluationsReport)).Get("/report.pdf", h.handleReport)
			r.With(middleware.Idempotency(h.Idempotency)).Post("/transitions", h.handleTransition)
			r.With(middleware.Idempotency(h.Idempotency)).Post("/comments", h.handleComment)
			r.With(middleware.RequireCapability(auth.PermSelfEvaluation), middleware.Idempotency(h.Idempotency)).Post("/self-submit", h.handleSelfSubmit)
			r.Post("/objectives", h.handleAddObjective)
			r.Patch("/objectives/{objectiveID}", h.handleUpdateObjective)
			r.Delete("/objectives/{objectiveID}", h.handleDeleteObjective)
			r.Post("/competencies", h.handleAddCompetency)
			r.Patch("/competencies/{competencyID}", h.handleUpdateCompetency)
			r.Delete("/competencies/{competencyID}", h.handleDeleteCompetency)
		})
	})
}

func actor(r *http.Request) evaluation.Actor {
	user, _ := middleware.GetUser(r.Context())
	return evaluation.ActorFromUser(user)
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	v := shared.NewValidator()
	q := shared.NewQuery(r.URL.Query(), v)
	filter := evaluation.ListFilter{
		EmployeeID: q.String("employee_id"),
		Type:       evaluation.ParseType(q.String("type")),
		Period:     q.String("period"),
		ReviewerID: q.String("reviewer_id"),
	}
	if raw := q.String("status"); raw != "" {
		filter.Status = evaluation.ParseStatus(raw)
	}
	page := q.Page(50, 200)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	items, err := h.Service.List(r.Context(), actor(r), filter)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "evaluation_list_failed", err)
		return
	}
	api.Success(w, shared.Slice(items, page), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.NewEvaluation
	if !decode(w, r, &payload) {
		return
	}
	created, err := h.Service.CreateEvaluation(r.Context(), actor(r), payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "evaluation_create_failed", err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.Details(r.Context(), actor(r), chi.URLParam(r, "evaluationID"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "evaluation_load_failed", err)
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.Details(r.Context(), actor(r), chi.URLParam(r, "evaluationID"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "activity_load_failed", err)
		return
	}
	api.Success(w, details.Feed, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "evaluationID")
	details, err := h.Service.Details(r.Context(), actor(r), id)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "report_failed", err)
		return
	}
	var buf bytes.Buffer
	if err := report.EvaluationPDF(&buf, details, h.Service.Location); err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "report_failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="evaluation-`+id+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type transitionPayload struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var payload transitionPayload
	if !decode(w, r, &payload) {
		return
	}
	action, ok := evaluation.ParseAction(payload.Action)
	if !ok {
		v := shared.NewValidator()
		v.Add("action", "must be one of submit, approve, reject, complete, acknowledge, comment")
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}
	h.apply(w, r, action, payload.Comment)
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	var payload transitionPayload
	if !decode(w, r, &payload) {
		return
	}
	h.apply(w, r, evaluation.ActionComment, payload.Comment)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, action evaluation.Action, comment string) {
	res, err := h.Service.Apply(r.Context(), actor(r), chi.URLParam(r, "evaluationID"), action, strings.TrimSpace(comment))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "transition_failed", err)
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSelfSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.SubmitSelfEvaluation(r.Context(), actor(r), chi.URLParam(r, "evaluationID"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "self_submit_failed", err)
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddObjective(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.Objective
	if !decode(w, r, &payload) {
		return
	}
	payload.ID = ""
	payload.EvaluationID = chi.URLParam(r, "evaluationID")
	created, err := h.Service.AddObjective(r.Context(), actor(r), payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "objective_create_failed", err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateObjective(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.Objective
	if !decode(w, r, &payload) {
		return
	}
	payload.ID = chi.URLParam(r, "objectiveID")
	payload.EvaluationID = chi.URLParam(r, "evaluationID")
	updated, err := h.Service.UpdateObjective(r.Context(), actor(r), payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "objective_update_failed", err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteObjective(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteObjective(r.Context(), actor(r), chi.URLParam(r, "evaluationID"), chi.URLParam(r, "objectiveID"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "objective_delete_failed", err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddCompetency(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.Competency
	if !decode(w, r, &payload) {
		return
	}
	payload.ID = ""
	payload.EvaluationID = chi.URLParam(r, "evaluationID")
	created, err := h.Service.AddCompetency(r.Context(), actor(r), payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "competency_create_failed", err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateCompetency(w http.ResponseWriter, r *http.Request) {
	var payload evaluation.Competency
	if !decode(w, r, &payload) {
		return
	}
	payload.ID = chi.URLParam(r, "competencyID")
	payload.EvaluationID = chi.URLParam(r, "evaluationID")
	updated, err := h.Service.UpdateCompetency(r.Context(), actor(r), payload)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "competency_update_failed", err)
		return
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteCompetency(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteCompetency(r.Context(), actor(r), chi.URLParam(r, "evaluationID"), chi.URLParam(r, "competencyID"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "competency_delete_failed", err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}
