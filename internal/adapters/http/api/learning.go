package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/matchmaker/internal/domain/model"
)

// LearningDependencies exposes the preference learner and manual preferences.
type LearningDependencies interface {
	Learn(ctx context.Context) (bool, error)
	Affinity(employeeID string) (map[string]model.SkillAffinity, error)
	Preferences() model.ManualPreferences
	PutPreferences(employeeID string, levels map[string]int) error
}

// LearningHandler handles learning and preference requests.
type LearningHandler struct {
	deps LearningDependencies
}

// NewLearningHandler creates a new learning handler.
func NewLearningHandler(deps LearningDependencies) *LearningHandler {
	return &LearningHandler{deps: deps}
}

// HandleLearn handles POST /learn, a forced pass that ignores the session gate.
func (h *LearningHandler) HandleLearn(w http.ResponseWriter, r *http.Request) {
	const op = "api.learn"
	ok, err := h.deps.Learn(r.Context())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, learnResponse{Learned: ok})
}

// HandleAffinity handles GET /affinity/{employee_id}.
func (h *LearningHandler) HandleAffinity(w http.ResponseWriter, r *http.Request) {
	const op = "api.affinity"
	aff, err := h.deps.Affinity(chi.URLParam(r, "employee_id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, aff)
}

// HandleListPreferences handles GET /preferences.
func (h *LearningHandler) HandleListPreferences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Preferences())
}

// HandlePutPreferences handles PUT /preferences/{employee_id} with a
// {skill: level} body. It replaces the employee's previous entry.
func (h *LearningHandler) HandlePutPreferences(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_preferences"
	id := chi.URLParam(r, "employee_id")
	var levels map[string]int
	if err := decodeBody(r, w, op, &levels); err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.PutPreferences(id, levels); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[string]int{id: levels})
}
