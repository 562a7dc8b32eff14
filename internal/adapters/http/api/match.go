package api

import (
	"context"
	"net/http"

	"github.com/okian/matchmaker/internal/domain/scoring"
	"github.com/okian/matchmaker/internal/domain/types"
)

// MatchDependencies ranks candidates for a task.
type MatchDependencies interface {
	Match(ctx context.Context, req scoring.Request) (types.MatchResult, error)
}

// MatchHandler handles match requests.
type MatchHandler struct {
	deps MatchDependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleMatch handles POST /match. An empty result is a 200 with found=false.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	var req matchRequest
	if err := decode(r, w, op, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.deps.Match(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
