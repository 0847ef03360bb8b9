package orghandler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"evalconsole/internal/domain/auth"
	"evalconsole/internal/domain/org"
	"evalconsole/internal/transport/http/api"
	"evalconsole/internal/transport/http/middleware"
	"evalconsole/internal/transport/http/shared"
)

// maxUploadMemory is how much of a spreadsheet upload is held in memory
// before spilling to disk.
const maxUploadMemory = 8 << 20

type Handler struct {
	Service *org.Service
}

func NewHandler(service *org.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/org/{level}", func(r chi.Router) {
		r.Get("/", h.handleListUnits)
		r.Post("/", h.handleSaveUnit)
		r.Patch("/{unitID}", h.handleSaveUnit)
		r.Delete("/{unitID}", h.handleDeleteUnit)
	})
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleListEmployees)
		r.Post("/", h.handleSaveEmployee)
		r.Get("/{employeeID}", h.handleGetEmployee)
		r.Patch("/{employeeID}", h.handleSaveEmployee)
		r.Get("/{employeeID}/placements", h.handleListPlacements)
	})
	r.Post("/placements", h.handlePlace)
	r.With(middleware.RequireCapability(auth.PermUsersRead)).Get("/users", h.handleListUsers)
	r.With(middleware.RequireCapability(auth.PermImport)).Post("/imports/{kind}", h.handleImport)
}

func user(r *http.Request) auth.UserContext {
	u, _ := middleware.GetUser(r.Context())
	return u
}

func level(w http.ResponseWriter, r *http.Request) (org.Level, bool) {
	lvl, ok := org.ParseLevel(chi.URLParam(r, "level"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", org.ErrUnknownLevel.Error(), middleware.GetRequestID(r.Context()))
	}
	return lvl, ok
}

func (h *Handler) handleListUnits(w http.ResponseWriter, r *http.Request) {
	lvl, ok := level(w, r)
	if !ok {
		return
	}
	units, err := h.Service.ListUnits(r.Context(), user(r), lvl, org.ID(r.URL.Query().Get("parent_id")))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "org_list_failed", err)
		return
	}
	api.Success(w, units, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveUnit(w http.ResponseWriter, r *http.Request) {
	lvl, ok := level(w, r)
	if !ok {
		return
	}
	var unit org.Unit
	if err := json.NewDecoder(r.Body).Decode(&unit); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	unit.Level = lvl
	unit.ID = org.ID(chi.URLParam(r, "unitID"))
	saved, err := h.Service.SaveUnit(r.Context(), user(r), unit)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "org_save_failed", err)
		return
	}
	if unit.ID == "" {
		api.Created(w, saved, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteUnit(w http.ResponseWriter, r *http.Request) {
	lvl, ok := level(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteUnit(r.Context(), user(r), lvl, org.ID(chi.URLParam(r, "unitID"))); err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "org_delete_failed", err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	v := shared.NewValidator()
	q := shared.NewQuery(r.URL.Query(), v)
	page := q.Page(50, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	employees, err := h.Service.ListEmployees(r.Context(), user(r), q.String("search"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "employee_list_failed", err)
		return
	}
	api.Success(w, shared.Slice(employees, page), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), user(r), org.ID(chi.URLParam(r, "employeeID")))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "employee_load_failed", err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveEmployee(w http.ResponseWriter, r *http.Request) {
	var emp org.Employee
	if err := json.NewDecoder(r.Body).Decode(&emp); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	emp.ID = org.ID(chi.URLParam(r, "employeeID"))
	saved, err := h.Service.SaveEmployee(r.Context(), user(r), emp)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "employee_save_failed", err)
		return
	}
	if emp.ID == "" {
		api.Created(w, saved, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPlacements(w http.ResponseWriter, r *http.Request) {
	placements, err := h.Service.ListPlacements(r.Context(), user(r), org.ID(chi.URLParam(r, "employeeID")))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "placement_list_failed", err)
		return
	}
	api.Success(w, placements, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePlace(w http.ResponseWriter, r *http.Request) {
	var p org.Placement
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	saved, err := h.Service.Place(r.Context(), user(r), p)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "placement_failed", err)
		return
	}
	api.Created(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context(), user(r), r.URL.Query().Get("role"))
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "user_list_failed", err)
		return
	}
	api.Success(w, users, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, ok := org.ParseImportKind(chi.URLParam(r, "kind"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown import kind", middleware.GetRequestID(r.Context()))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart upload", middleware.GetRequestID(r.Context()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		v := shared.NewValidator()
		v.Add("file", "a spreadsheet file is required")
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}
	defer file.Close()

	dryRun := false
	if raw := r.FormValue("dryRun"); raw != "" {
		if dryRun, err = strconv.ParseBool(raw); err != nil {
			v := shared.NewValidator()
			v.Add("dryRun", "must be true or false")
			v.Reject(w, middleware.GetRequestID(r.Context()))
			return
		}
	}
	res, err := h.Service.Import(r.Context(), user(r), kind, header.Filename, file, dryRun)
	if err != nil {
		shared.WriteError(w, middleware.GetRequestID(r.Context()), "import_failed", err)
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}
