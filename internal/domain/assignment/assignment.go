// Package assignment implements the task lifecycle and the employee
// availability transitions it drives.
//
//	Assign          Free -> Partially; Partially -> Fully for High priority
//	UpdateProgress  >75 -> Fully, <25 -> Partially (sole open task only)
//	Complete        frees the employee unless other tasks are open
//	Reassign        frees the old employee the same way; new one -> Partially
//
// Every rejected transition leaves tasks and roster untouched.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/logger"
	"github.com/okian/matchmaker/pkg/metrics"
)

// Progress thresholds that re-derive availability.
const (
	MaxProgress        = 100
	busyProgressAbove  = 75
	lightProgressBelow = 25
)

// Directory is the roster surface the machine mutates.
type Directory interface {
	Get(id string) (model.Employee, bool)
	UpdateAvailability(id string, status model.Availability, taskName string) error
	ReleaseTask(id, taskName string, status model.Availability) error
}

// Recorder aggregates completed work per employee.
type Recorder interface {
	Record(employeeID string, priority model.Priority, assignedAt, completedAt, deadline time.Time) model.PerformanceRecord
}

// Emitter publishes completion events. Failures are logged, never returned.
type Emitter interface {
	Emit(ctx context.Context, ev model.CompletionEvent) error
}

// NewTask is the confirmed assignment request.
type NewTask struct {
	Name           string
	Description    string
	RequiredSkills []string
	Priority       model.Priority
	Deadline       time.Time
	EmployeeID     string
}

// Result is the task after a transition. PersistErr carries a non-fatal
// roster write failure; the transition itself succeeded.
type Result struct {
	Task       model.Task
	PersistErr error
}

// ListFilter narrows List. Zero values do not restrict.
type ListFilter struct {
	EmployeeID string
	Status     model.Status
}

// Machine owns the append-only task ledger.
type Machine struct {
	mu    sync.Mutex
	dir   Directory
	tasks []*model.Task

	recorder Recorder
	emitter  Emitter
	now      func() time.Time
	logger   logger.Logger
}

// New creates a machine over dir.
func New(dir Directory, opts ...Option) *Machine {
	m := &Machine{
		dir:    dir,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Assign creates a task for an employee who is not Fully Assigned.
func (m *Machine) Assign(ctx context.Context, in NewTask) (Result, error) {
	const op = "assign"
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.RequiredSkills = model.NormalizeSkills(in.RequiredSkills)

	if err := validateNewTask(&in); err != nil {
		return Result{}, reject(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dir.Get(in.EmployeeID)
	if !ok {
		return Result{}, reject(op, fmt.Errorf("employee %s: %w", in.EmployeeID, model.ErrNotFound))
	}
	next, err := nextOnAssign(e.Availability, in.Priority)
	if err != nil {
		return Result{}, reject(op, fmt.Errorf("employee %s: %w", e.ID, err))
	}

	persistErr, err := splitRosterErr(m.dir.UpdateAvailability(e.ID, next, in.Name))
	if err != nil {
		return Result{}, reject(op, err)
	}

	now := m.now()
	t := &model.Task{
		ID:             len(m.tasks) + 1,
		Name:           in.Name,
		Description:    in.Description,
		RequiredSkills: in.RequiredSkills,
		Priority:       in.Priority,
		Deadline:       in.Deadline,
		EmployeeID:     e.ID,
		Status:         model.InProgress,
		AssignedAt:     now,
		Assignments:    []model.Assignment{openRecord(e.ID, now)},
	}
	m.tasks = append(m.tasks, t)

	metrics.RecordAssignment(string(in.Priority))
	m.publishOpenTasks()
	m.logger.Info(ctx, "task assigned",
		logger.Int("task_id", t.ID),
		logger.String("employee_id", e.ID),
		logger.String("availability", string(next)),
	)
	return Result{Task: t.Clone(), PersistErr: persistErr}, nil
}

// UpdateProgress records progress on an open task.
func (m *Machine) UpdateProgress(ctx context.Context, taskID, progress int) (Result, error) {
	const op = "progress"
	if progress < 0 || progress > MaxProgress {
		return Result{}, reject(op, fmt.Errorf("%w: progress %d outside 0..%d", model.ErrInvalidInput, progress, MaxProgress))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.openTask(taskID)
	if err != nil {
		return Result{}, reject(op, err)
	}
	t.Progress = progress
	metrics.RecordProgressUpdate()

	var persistErr error
	if m.openCount(t.EmployeeID) == 1 {
		if e, ok := m.dir.Get(t.EmployeeID); ok {
			if next := tierForProgress(progress, e.Availability); next != e.Availability {
				persistErr, err = splitRosterErr(m.dir.UpdateAvailability(e.ID, next, ""))
				if err != nil {
					m.logger.Warn(ctx, "availability update after progress failed", logger.Error(err))
				}
			}
		}
	}
	return Result{Task: t.Clone(), PersistErr: persistErr}, nil
}

// Complete closes an open task, frees the employee when nothing else is
// open, records performance and emits a completion event.
func (m *Machine) Complete(ctx context.Context, taskID int) (Result, error) {
	const op = "complete"

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.openTask(taskID)
	if err != nil {
		return Result{}, reject(op, err)
	}

	now := m.now()
	persistErr, err := m.release(t)
	if err != nil {
		return Result{}, reject(op, err)
	}

	t.Status = model.Completed
	t.CompletedAt = &now
	m.closeRecord(t, now, model.Completed)
	onTime := t.OnTime()

	metrics.RecordCompletion(onTime)
	m.publishOpenTasks()

	if m.recorder != nil {
		rec := m.recorder.Record(t.EmployeeID, t.Priority, t.AssignedAt, now, t.Deadline)
		if m.emitter != nil {
			ev := model.CompletionEvent{
				TaskID:      t.ID,
				EmployeeID:  t.EmployeeID,
				Priority:    t.Priority,
				OnTime:      onTime,
				Performance: rec,
				TS:          now,
			}
			if err := m.emitter.Emit(ctx, ev); err != nil {
				m.logger.Warn(ctx, "completion event dropped",
					logger.Int("task_id", t.ID),
					logger.Error(err),
				)
			}
		}
	}

	m.logger.Info(ctx, "task completed",
		logger.Int("task_id", t.ID),
		logger.String("employee_id", t.EmployeeID),
		logger.Bool("on_time", onTime),
	)
	return Result{Task: t.Clone(), PersistErr: persistErr}, nil
}

// Reassign moves an open task to another employee. The task keeps its id;
// the previous tenure is closed in the assignment trail.
func (m *Machine) Reassign(ctx context.Context, taskID int, employeeID string) (Result, error) {
	const op = "reassign"

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.openTask(taskID)
	if err != nil {
		return Result{}, reject(op, err)
	}
	target, ok := m.dir.Get(employeeID)
	if !ok {
		return Result{}, reject(op, fmt.Errorf("employee %s: %w", employeeID, model.ErrNotFound))
	}
	if target.ID == t.EmployeeID {
		return Result{}, reject(op, fmt.Errorf("%w: task %d already assigned to %s", model.ErrInvalidInput, t.ID, target.ID))
	}
	if target.Availability == model.FullyAssigned {
		return Result{}, reject(op, fmt.Errorf("employee %s: %w", target.ID, model.ErrUnavailable))
	}

	releaseErr, err := m.release(t)
	if err != nil {
		return Result{}, reject(op, err)
	}
	assignErr, err := splitRosterErr(m.dir.UpdateAvailability(target.ID, model.PartiallyAssigned, t.Name))
	if err != nil {
		return Result{}, reject(op, err)
	}

	now := m.now()
	previous := t.EmployeeID
	m.closeRecord(t, now, model.Reassigned)
	t.Assignments = append(t.Assignments, openRecord(target.ID, now))
	t.EmployeeID = target.ID
	t.Progress = 0
	t.AssignedAt = now

	metrics.RecordReassignment()
	m.logger.Info(ctx, "task reassigned",
		logger.Int("task_id", t.ID),
		logger.String("from", previous),
		logger.String("to", target.ID),
	)
	return Result{Task: t.Clone(), PersistErr: errors.Join(releaseErr, assignErr)}, nil
}

// Get returns a copy of one task.
func (m *Machine) Get(taskID int) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.find(taskID)
	if err != nil {
		return model.Task{}, err
	}
	return t.Clone(), nil
}

// List returns copies of tasks matching f in creation order.
func (m *Machine) List(f ListFilter) []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if f.EmployeeID != "" && t.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// History returns copies of every task ever created.
func (m *Machine) History() []model.Task {
	return m.List(ListFilter{})
}

// Len returns the number of tasks created.
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// OpenTasks returns the employee's in-progress tasks.
func (m *Machine) OpenTasks(employeeID string) []model.Task {
	return m.List(ListFilter{EmployeeID: employeeID, Status: model.InProgress})
}

func (m *Machine) find(taskID int) (*model.Task, error) {
	if taskID < 1 || taskID > len(m.tasks) {
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	}
	return m.tasks[taskID-1], nil
}

func (m *Machine) openTask(taskID int) (*model.Task, error) {
	t, err := m.find(taskID)
	if err != nil {
		return nil, err
	}
	if !t.Open() {
		return nil, fmt.Errorf("%w: task %d is %s", model.ErrInvalidInput, taskID, t.Status)
	}
	return t, nil
}

func (m *Machine) openCount(employeeID string) int {
	n := 0
	for _, t := range m.tasks {
		if t.Open() && t.EmployeeID == employeeID {
			n++
		}
	}
	return n
}

// release drops t from its employee's task list and frees them when t was
// their last open task. Otherwise availability is left as is.
func (m *Machine) release(t *model.Task) (persistErr, err error) {
	e, ok := m.dir.Get(t.EmployeeID)
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", t.EmployeeID, model.ErrNotFound)
	}
	next := e.Availability
	if m.openCount(e.ID) <= 1 {
		next = model.Free
	}
	return splitRosterErr(m.dir.ReleaseTask(e.ID, t.Name, next))
}

// splitRosterErr separates a non-fatal persistence warning from a hard failure.
func splitRosterErr(err error) (persistErr, hardErr error) {
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, model.ErrPersistence):
		return err, nil
	default:
		return nil, err
	}
}

func (m *Machine) closeRecord(t *model.Task, at time.Time, outcome model.Status) {
	if n := len(t.Assignments); n > 0 && t.Assignments[n-1].EndedAt == nil {
		t.Assignments[n-1].EndedAt = &at
		t.Assignments[n-1].Outcome = outcome
	}
}

func (m *Machine) publishOpenTasks() {
	n := 0
	for _, t := range m.tasks {
		if t.Open() {
			n++
		}
	}
	metrics.UpdateOpenTasks(n)
}

func openRecord(employeeID string, at time.Time) model.Assignment {
	return model.Assignment{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		AssignedAt: at,
		Outcome:    model.InProgress,
	}
}

func validateNewTask(in *NewTask) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: task name is required", model.ErrInvalidInput)
	case strings.Contains(in.Name, ","):
		return fmt.Errorf("%w: task name must not contain a comma", model.ErrInvalidInput)
	case in.Description == "":
		return fmt.Errorf("%w: task description is required", model.ErrInvalidInput)
	case len(in.RequiredSkills) == 0:
		return fmt.Errorf("%w: at least one required skill", model.ErrInvalidInput)
	case in.EmployeeID == "":
		return fmt.Errorf("%w: employee id is required", model.ErrInvalidInput)
	}
	p, err := model.ParsePriority(string(in.Priority))
	if err != nil {
		return err
	}
	in.Priority = p
	return nil
}

// nextOnAssign is the availability step taken when a task is assigned.
func nextOnAssign(current model.Availability, p model.Priority) (model.Availability, error) {
	switch current {
	case model.Free:
		return model.PartiallyAssigned, nil
	case model.PartiallyAssigned:
		if p == model.High {
			return model.FullyAssigned, nil
		}
		return model.PartiallyAssigned, nil
	case model.FullyAssigned:
		return "", model.ErrUnavailable
	default:
		return "", fmt.Errorf("%w: availability %q", model.ErrInvalidInput, current)
	}
}

func tierForProgress(progress int, current model.Availability) model.Availability {
	switch {
	case progress > busyProgressAbove:
		return model.FullyAssigned
	case progress < lightProgressBelow:
		return model.PartiallyAssigned
	default:
		return current
	}
}

func reject(op string, err error) error {
	reason := "error"
	switch {
	case errors.Is(err, model.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, model.ErrUnavailable):
		reason = "unavailable"
	case errors.Is(err, model.ErrInvalidInput):
		reason = "invalid_input"
	}
	metrics.RecordRejection(op, reason)
	return fmt.Errorf("%s: %w", op, err)
}
