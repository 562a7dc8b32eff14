package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/matchmaker/internal/adapters/idempotency"
	"github.com/okian/matchmaker/internal/domain/assignment"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/types"
)

// IdempotencyKeyHeader names the request header honoured by POST /tasks.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

// TaskDependencies drives the task lifecycle.
type TaskDependencies interface {
	AssignTask(ctx context.Context, in assignment.NewTask) (types.TaskResult, error)
	UpdateProgress(ctx context.Context, taskID, progress int) (types.TaskResult, error)
	CompleteTask(ctx context.Context, taskID int) (types.TaskResult, error)
	ReassignTask(ctx context.Context, taskID int, employeeID string) (types.TaskResult, error)
	Tasks(f assignment.ListFilter) []model.Task
	Task(id int) (model.Task, error)
}

// Idempotency replays committed task creations.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (idempotency.Response, bool)
	Begin(ctx context.Context, key string) error
	Abort(ctx context.Context, key string)
	Commit(ctx context.Context, key string, resp idempotency.Response)
}

// TaskHandler handles task requests.
type TaskHandler struct {
	deps TaskDependencies
	idem Idempotency
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(deps TaskDependencies, idem Idempotency) *TaskHandler {
	return &TaskHandler{deps: deps, idem: idem}
}

// HandleCreate handles POST /tasks. With an Idempotency-Key header a
// successful response is cached and replayed for repeats of the key;
// failures are not cached so the client may retry.
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_task"
	ctx := r.Context()

	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" {
		if h.replay(ctx, w, key) {
			return
		}
		err := h.idem.Begin(ctx, key)
		if errors.Is(err, idempotency.ErrCommitted) && h.replay(ctx, w, key) {
			return
		}
		if err != nil {
			writeError(w, WrapKind(op, ErrConflict, err))
			return
		}
	}

	status, body, err := h.create(r, w, op)
	if err != nil {
		if key != "" {
			h.idem.Abort(ctx, key)
		}
		writeError(w, err)
		return
	}
	if key != "" {
		h.idem.Commit(ctx, key, idempotency.Response{Status: status, Body: body})
	}
	writeRaw(w, status, body)
}

func (h *TaskHandler) replay(ctx context.Context, w http.ResponseWriter, key string) bool {
	resp, ok := h.idem.Lookup(ctx, key)
	if !ok {
		return false
	}
	w.Header().Set(ReplayedHeader, "true")
	writeRaw(w, resp.Status, resp.Body)
	return true
}

func (h *TaskHandler) create(r *http.Request, w http.ResponseWriter, op string) (int, []byte, error) {
	var req createTaskRequest
	if err := decode(r, w, op, &req); err != nil {
		return 0, nil, err
	}
	in, err := req.toDomain()
	if err != nil {
		return 0, nil, WrapKind(op, ErrBadRequest, err)
	}
	res, err := h.deps.AssignTask(r.Context(), in)
	if err != nil {
		return 0, nil, Wrap(op, err)
	}
	body, err := encodeJSON(res)
	if err != nil {
		return 0, nil, Wrap(op, err)
	}
	return http.StatusCreated, body, nil
}

// HandleList handles GET /tasks?employee_id=&status=.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := assignment.ListFilter{EmployeeID: q.Get("employee_id"), Status: model.Status(q.Get("status"))}
	writeJSON(w, http.StatusOK, nonNil(h.deps.Tasks(f)))
}

// HandleGet handles GET /tasks/{id}.
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_task"
	id, err := intParam(r, op, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.deps.Task(id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleProgress handles POST /tasks/{id}/progress.
func (h *TaskHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_progress"
	id, err := intParam(r, op, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req progressRequest
	if err := decode(r, w, op, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, op)(h.deps.UpdateProgress(r.Context(), id, *req.Progress))
}

// HandleComplete handles POST /tasks/{id}/complete.
func (h *TaskHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_complete"
	id, err := intParam(r, op, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, op)(h.deps.CompleteTask(r.Context(), id))
}

// HandleReassign handles POST /tasks/{id}/reassign.
func (h *TaskHandler) HandleReassign(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_reassign"
	id, err := intParam(r, op, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req reassignRequest
	if err := decode(r, w, op, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, op)(h.deps.ReassignTask(r.Context(), id, req.EmployeeID))
}

func (h *TaskHandler) respond(w http.ResponseWriter, op string) func(types.TaskResult, error) {
	return func(res types.TaskResult, err error) {
		if err != nil {
			writeError(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
