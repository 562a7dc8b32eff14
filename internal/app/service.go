// Package service wires the roster, scorer, learner and task state machine
// into the single object the HTTP API and CLI talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/matchmaker/internal/adapters/dataset"
	"github.com/okian/matchmaker/internal/adapters/idempotency"
	eventqueue "github.com/okian/matchmaker/internal/adapters/mq/queue"
	workerpool "github.com/okian/matchmaker/internal/adapters/mq/worker"
	"github.com/okian/matchmaker/internal/adapters/prefstore"
	repository "github.com/okian/matchmaker/internal/adapters/repository"
	"github.com/okian/matchmaker/internal/config"
	"github.com/okian/matchmaker/internal/domain/assignment"
	"github.com/okian/matchmaker/internal/domain/directory"
	"github.com/okian/matchmaker/internal/domain/learner"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/performance"
	"github.com/okian/matchmaker/internal/domain/scoring"
	"github.com/okian/matchmaker/internal/domain/types"
	"github.com/okian/matchmaker/pkg/logger"
	"github.com/okian/matchmaker/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("service not started")

// queueEmitter adapts the completion queue to assignment.Emitter.
type queueEmitter struct {
	queue eventqueue.Queue
}

func (e queueEmitter) Emit(ctx context.Context, ev model.CompletionEvent) error {
	return e.queue.Enqueue(ctx, ev)
}

// Service implements the API dependencies for the matchmaking system.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	roster      *directory.Directory
	dataset     *dataset.File
	learner     *learner.Learner
	scorer      *scoring.Scorer
	performance *performance.Tracker
	machine     *assignment.Machine
	leaderboard *repository.TreapStore
	eventQueue  *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	idempotency *idempotency.Store
	preferences *prefstore.Store

	// Test seams
	employees []model.Employee
	clock     func() time.Time

	// learnMu serializes learning passes so the gate is evaluated once per pass.
	learnMu sync.Mutex

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the roster and starts the completion pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting matchmaker service...")

	employees := s.employees
	var dirOpts []directory.Option
	if employees == nil {
		f, loaded, err := dataset.Load(cfg.DatasetPath)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		s.dataset, employees = f, loaded
		if cfg.Persist {
			dirOpts = append(dirOpts, directory.WithPersister(f))
		}
	}
	roster, err := directory.New(employees, dirOpts...)
	if err != nil {
		return fmt.Errorf("build roster: %w", err)
	}

	prefs, err := prefstore.Open(cfg.PreferencesPath)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	idem, err := idempotency.New(cfg.IdempotencyCacheBytes, idempotency.WithTTL(cfg.IdempotencyTTL()))
	if err != nil {
		return err
	}

	s.roster = roster
	s.preferences = prefs
	s.idempotency = idem
	s.learner = learner.New()
	s.performance = performance.New()
	s.scorer = scoring.New(roster, s.learner, scorerOptions(cfg)...)

	s.leaderboard = repository.NewTreapStore(ctx)
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.QueueSize))
	s.workerPool = workerpool.NewPool(cfg.WorkerCount, s.eventQueue, s.performance, s.leaderboard)

	machineOpts := []assignment.Option{
		assignment.WithRecorder(s.performance),
		assignment.WithEmitter(queueEmitter{queue: s.eventQueue}),
		assignment.WithLogger(s.logger.Named("assignment")),
	}
	if s.clock != nil {
		machineOpts = append(machineOpts, assignment.WithClock(s.clock))
	}
	s.machine = assignment.New(roster, machineOpts...)

	// Workers outlive the start request; Stop drains them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "matchmaker service started",
		logger.Int("employees", roster.Len()),
		logger.Int("workers", cfg.WorkerCount),
		logger.Int("queueSize", cfg.QueueSize),
		logger.Bool("persist", s.dataset != nil && cfg.Persist),
	)
	return nil
}

// Stop drains the completion pipeline and releases caches.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping matchmaker service...")
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = s.leaderboard.Close()
	s.idempotency.Close()

	s.started = false
	s.logger.Info(ctx, "matchmaker service stopped")
}

func scorerOptions(cfg *config.Config) []scoring.Option {
	avail := make(map[model.Availability]float64, len(cfg.AvailabilityFactors))
	for tier, f := range cfg.AvailabilityFactors {
		avail[model.Availability(tier)] = f
	}
	return []scoring.Option{
		scoring.WithAvailabilityFactors(avail),
		scoring.WithExperienceFactors(cfg.ExperienceFactors, cfg.DefaultExperienceFactor),
		scoring.WithPreferenceBoost(cfg.PreferenceBoost),
		scoring.WithManualBase(cfg.ManualPreferenceBase),
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Listings below return nil before Start.

// ListSkills returns every skill on the roster.
func (s *Service) ListSkills() []string {
	if s.ready() != nil {
		return nil
	}
	return s.roster.ListSkills()
}

// ListRoles returns every role on the roster.
func (s *Service) ListRoles() []string {
	if s.ready() != nil {
		return nil
	}
	return s.roster.ListRoles()
}

// ListExperienceLevels returns every experience tier on the roster.
func (s *Service) ListExperienceLevels() []string {
	if s.ready() != nil {
		return nil
	}
	return s.roster.ListExperienceLevels()
}

// Employees lists the roster narrowed by f.
func (s *Service) Employees(f directory.Filter) []model.Employee {
	if s.ready() != nil {
		return nil
	}
	return s.roster.Filter(f)
}

// SearchEmployees returns employees holding every skill in required.
func (s *Service) SearchEmployees(required []string) []model.Employee {
	if s.ready() != nil {
		return nil
	}
	return s.roster.FindBySkills(model.NormalizeSkills(required))
}

// Employee returns one roster entry.
func (s *Service) Employee(id string) (model.Employee, error) {
	if err := s.ready(); err != nil {
		return model.Employee{}, err
	}
	e, ok := s.roster.Get(id)
	if !ok {
		return model.Employee{}, fmt.Errorf("employee %s: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// Match ranks candidates for a task. When preferences are considered the
// learning gate is evaluated first and stored manual preferences are merged
// under the ones carried by the request.
func (s *Service) Match(ctx context.Context, req scoring.Request) (types.MatchResult, error) {
	if err := s.ready(); err != nil {
		return types.MatchResult{}, err
	}
	if req.ConsiderPreferences {
		s.maybeLearn(ctx)
		manual := s.preferences.All()
		for emp, levels := range req.ManualPreferences {
			manual[emp] = levels
		}
		req.ManualPreferences = manual
	}
	ranked, err := s.scorer.Rank(ctx, req)
	if err != nil {
		return types.MatchResult{}, fmt.Errorf("match: %w", err)
	}
	return types.NewMatchResult(ranked, s.learner.Learned()), nil
}

// AssignTask confirms an assignment.
// AssignTask records a new task against its employee.
func (s *Service) AssignTask(ctx context.Context, in assignment.NewTask) (types.TaskResult, error) {
	if err := s.ready(); err != nil {
		return types.TaskResult{}, err
	}
	res, err := s.machine.Assign(ctx, in)
	if err != nil {
		return types.TaskResult{}, err
	}
	s.warnPersist(ctx, "assign", res.PersistErr)
	return types.NewTaskResult(res.Task, res.PersistErr), nil
}

// UpdateProgress records progress on an open task.
func (s *Service) UpdateProgress(ctx context.Context, taskID, progress int) (types.TaskResult, error) {
	if err := s.ready(); err != nil {
		return types.TaskResult{}, err
	}
	res, err := s.machine.UpdateProgress(ctx, taskID, progress)
	if err != nil {
		return types.TaskResult{}, err
	}
	s.warnPersist(ctx, "progress", res.PersistErr)
	return types.NewTaskResult(res.Task, res.PersistErr), nil
}

// CompleteTask closes an open task.
func (s *Service) CompleteTask(ctx context.Context, taskID int) (types.TaskResult, error) {
	if err := s.ready(); err != nil {
		return types.TaskResult{}, err
	}
	res, err := s.machine.Complete(ctx, taskID)
	if err != nil {
		return types.TaskResult{}, err
	}
	s.warnPersist(ctx, "complete", res.PersistErr)
	return types.NewTaskResult(res.Task, res.PersistErr), nil
}

// ReassignTask moves an open task to another employee.
func (s *Service) ReassignTask(ctx context.Context, taskID int, employeeID string) (types.TaskResult, error) {
	if err := s.ready(); err != nil {
		return types.TaskResult{}, err
	}
	res, err := s.machine.Reassign(ctx, taskID, employeeID)
	if err != nil {
		return types.TaskResult{}, err
	}
	s.warnPersist(ctx, "reassign", res.PersistErr)
	return types.NewTaskResult(res.Task, res.PersistErr), nil
}

func (s *Service) warnPersist(ctx context.Context, op string, err error) {
	if err != nil {
		s.logger.Warn(ctx, "roster change kept in memory only",
			logger.String("op", op),
			logger.Error(err),
		)
	}
}

// Tasks lists tasks matching f.
func (s *Service) Tasks(f assignment.ListFilter) []model.Task {
	if s.ready() != nil {
		return nil
	}
	return s.machine.List(f)
}

// Task returns one task.
func (s *Service) Task(id int) (model.Task, error) {
	if err := s.ready(); err != nil {
		return model.Task{}, err
	}
	return s.machine.Get(id)
}

// maybeLearn runs a learning pass when enough history exists and, with
// learn_once, only if no pass has succeeded yet.
func (s *Service) maybeLearn(ctx context.Context) {
	s.learnMu.Lock()
	defer s.learnMu.Unlock()

	if s.cfg.LearnOnce && s.learner.Learned() {
		return
	}
	history := s.machine.History()
	if len(history) < s.cfg.LearnMinTasks {
		return
	}
	if s.learner.Learn(ctx, history) {
		s.logger.Info(ctx, "preferences learned", logger.Int("tasks", len(history)))
	}
}

// Learn forces a learning pass regardless of the gate. It reports false
// when there is no history yet.
func (s *Service) Learn(ctx context.Context) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	s.learnMu.Lock()
	defer s.learnMu.Unlock()
	return s.learner.Learn(ctx, s.machine.History()), nil
}

// Affinity returns the learned skill statistics of one employee.
func (s *Service) Affinity(employeeID string) (map[string]model.SkillAffinity, error) {
	if _, err := s.Employee(employeeID); err != nil {
		return nil, err
	}
	out := s.learner.Snapshot()[employeeID]
	if out == nil {
		out = map[string]model.SkillAffinity{}
	}
	return out, nil
}

// Preferences returns every stored manual preference.
func (s *Service) Preferences() model.ManualPreferences {
	if s.ready() != nil {
		return model.ManualPreferences{}
	}
	return s.preferences.All()
}

// PutPreferences overwrites the manual preferences of a known employee.
func (s *Service) PutPreferences(employeeID string, levels map[string]int) error {
	if _, err := s.Employee(employeeID); err != nil {
		return err
	}
	return s.preferences.Put(employeeID, levels)
}

// Performance returns every performance record sorted by employee id.
func (s *Service) Performance() []model.PerformanceRecord {
	if s.ready() != nil {
		return nil
	}
	return s.performance.All()
}

// PerformanceFor returns one employee's record.
func (s *Service) PerformanceFor(employeeID string) (model.PerformanceRecord, error) {
	if err := s.ready(); err != nil {
		return model.PerformanceRecord{}, err
	}
	rec, ok := s.performance.Get(employeeID)
	if !ok {
		return model.PerformanceRecord{}, fmt.Errorf("performance of %s: %w", employeeID, model.ErrNotFound)
	}
	return rec, nil
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	entries, err := s.leaderboard.TopN(ctx, n)
	if err != nil {
		return nil, leaderboardErr(err)
	}
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	return out, nil
}

// Rank returns the leaderboard entry of one employee.
func (s *Service) Rank(ctx context.Context, employeeID string) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	e, err := s.leaderboard.Rank(ctx, employeeID)
	if err != nil {
		return types.Entry{}, fmt.Errorf("employee %s: %w", employeeID, leaderboardErr(err))
	}
	return toEntry(e), nil
}

func toEntry(e repository.Entry) types.Entry {
	return types.Entry{
		Rank:       e.Rank,
		EmployeeID: e.EmployeeID,
		Score:      e.Score,
		Completed:  e.Completed,
		OnTimeRate: e.OnTimeRate,
	}
}

// leaderboardErr maps store errors onto the shared error kinds.
func leaderboardErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, repository.ErrInvalidID):
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	default:
		return err
	}
}

// Lookup returns a replayable response for an idempotency key.
func (s *Service) Lookup(ctx context.Context, key string) (idempotency.Response, bool) {
	if s.ready() != nil {
		return idempotency.Response{}, false
	}
	return s.idempotency.Lookup(ctx, key)
}

// Begin claims an idempotency key.
func (s *Service) Begin(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.idempotency.Begin(ctx, key)
}

// Abort releases an idempotency key without caching.
func (s *Service) Abort(ctx context.Context, key string) { s.idempotency.Abort(ctx, key) }

// Commit caches the response for an idempotency key.
func (s *Service) Commit(ctx context.Context, key string, resp idempotency.Response) {
	s.idempotency.Commit(ctx, key, resp)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
	}
	if !s.started {
		return stats
	}

	byAvailability := make(map[string]int, len(model.Availabilities))
	for _, a := range model.Availabilities {
		byAvailability[string(a)] = 0
	}
	for _, e := range s.roster.All() {
		byAvailability[string(e.Availability)]++
	}
	openTasks := len(s.machine.List(assignment.ListFilter{Status: model.InProgress}))
	queueLen := s.eventQueue.Len()
	ranked := s.leaderboard.Count(ctx)

	stats["employees"] = s.roster.Len()
	stats["employeesByAvailability"] = byAvailability
	stats["tasks"] = s.machine.Len()
	stats["openTasks"] = openTasks
	stats["learned"] = s.learner.Learned()
	stats["queueLength"] = queueLen
	stats["leaderboardEntries"] = ranked
	stats["persist"] = s.dataset != nil && s.cfg.Persist

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateOpenTasks(openTasks)
	metrics.UpdateLeaderboardEntries(ranked)
	return stats
}
