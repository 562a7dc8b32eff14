package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchmaker/internal/domain/directory"
	"github.com/okian/matchmaker/internal/domain/model"
)

// RosterDependencies defines the read-only roster operations.
type RosterDependencies interface {
	ListSkills() []string
	ListRoles() []string
	ListExperienceLevels() []string
	Employees(f directory.Filter) []model.Employee
	Employee(id string) (model.Employee, error)
	SearchEmployees(required []string) []model.Employee
}

// RosterHandler serves employee listings.
type RosterHandler struct {
	deps RosterDependencies
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps RosterDependencies) *RosterHandler {
	return &RosterHandler{deps: deps}
}

// HandleSkills handles GET /skills.
func (h *RosterHandler) HandleSkills(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.deps.ListSkills()))
}

// HandleRoles handles GET /roles.
func (h *RosterHandler) HandleRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.deps.ListRoles()))
}

// HandleExperienceLevels handles GET /experience-levels.
func (h *RosterHandler) HandleExperienceLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.deps.ListExperienceLevels()))
}

// HandleList handles GET /employees?role=&experience=&availability=.
// Each parameter may repeat; empty values apply no filter.
func (h *RosterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_employees"
	q := r.URL.Query()
	f := directory.Filter{Roles: nonEmpty(q["role"]), Experience: nonEmpty(q["experience"])}
	for _, raw := range nonEmpty(q["availability"]) {
		a, err := model.ParseAvailability(raw)
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		f.Availability = append(f.Availability, a)
	}
	writeJSON(w, http.StatusOK, nonNil(h.deps.Employees(f)))
}

// HandleGet handles GET /employees/{id}.
func (h *RosterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_employee"
	e, err := h.deps.Employee(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleSearch handles POST /employees/search.
func (h *RosterHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search_employees"
	var req searchRequest
	if err := decode(r, w, op, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.deps.SearchEmployees(req.Skills)))
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
