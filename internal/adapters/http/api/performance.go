package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchmaker/internal/domain/model"
)

// PerformanceDependencies exposes completion statistics.
type PerformanceDependencies interface {
	Performance() []model.PerformanceRecord
	PerformanceFor(employeeID string) (model.PerformanceRecord, error)
}

// PerformanceHandler handles performance requests.
type PerformanceHandler struct {
	deps PerformanceDependencies
}

// NewPerformanceHandler creates a new performance handler.
func NewPerformanceHandler(deps PerformanceDependencies) *PerformanceHandler {
	return &PerformanceHandler{deps: deps}
}

// HandleList handles GET /performance.
func (h *PerformanceHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.deps.Performance()))
}

// HandleGet handles GET /performance/{employee_id}.
func (h *PerformanceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_performance"
	rec, err := h.deps.PerformanceFor(chi.URLParam(r, "employee_id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
