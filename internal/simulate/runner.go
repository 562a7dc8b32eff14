package simulate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/matchmaker/pkg/logger"
)

const (
	halfway          = 50
	leaderboardLimit = 100
	settlePoll       = 250 * time.Millisecond
)

// Runner executes simulations against one service.
type Runner struct {
	cfg    Config
	client *client
	now    func() time.Time
	log    logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRunner validates cfg and prepares a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		now:    time.Now,
		log:    logger.Get().Named("simulate"),
	}, nil
}

// Run generates task flows, drives them concurrently and verifies the
// resulting state. A non-nil error wrapping ErrInvariant carries the
// violations in the returned Stats as well.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	r.stats = Stats{StartTime: r.now()}
	r.log.Info(ctx, "starting simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("tasks", r.cfg.Tasks),
		logger.Int("workers", r.cfg.Workers))

	if err := r.client.health(ctx); err != nil {
		return r.stats, err
	}
	skills, err := r.client.skills(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("list skills: %w", err)
	}
	if len(skills) == 0 {
		return r.stats, errors.New("service reports no skills")
	}

	seed := r.cfg.Seed
	if seed == 0 {
		seed = uint64(r.now().UnixNano())
	}
	specs := newGenerator(seed, skills, r.now).generate(r.cfg.Tasks, r.cfg.CompleteShare, r.cfg.ReassignShare)
	r.stats.Generated = len(specs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, spec := range specs {
		g.Go(func() error {
			return r.flow(gctx, spec)
		})
	}
	if err := g.Wait(); err != nil {
		return r.finish(), err
	}

	violations, err := r.settle(ctx)
	if err != nil {
		return r.finish(), err
	}
	r.stats.Violations = violations
	stats := r.finish()
	r.report(ctx, stats)
	if len(violations) > 0 {
		return stats, fmt.Errorf("%w: %d violation(s), first: %s", ErrInvariant, len(violations), violations[0])
	}
	return stats, nil
}

func (r *Runner) finish() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Duration = r.now().Sub(r.stats.StartTime)
	return r.stats
}

func (r *Runner) count(f func(*Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

// flow runs one task from match to its final step. Service rejections are
// counted, not returned; only a cancelled context stops the group.
func (r *Runner) flow(ctx context.Context, spec taskSpec) error {
	res, err := r.client.match(ctx, spec.Skills)
	if err != nil {
		return r.failed(ctx, "match", err)
	}
	target, ok := pickCandidate(res.Candidates, "")
	if !res.Found || !ok {
		r.count(func(s *Stats) { s.Unmatched++ })
		return nil
	}
	r.count(func(s *Stats) { s.Matched++ })

	created, err := r.client.createTask(ctx, spec, target.EmployeeID)
	if err != nil {
		return r.failed(ctx, "assign", err)
	}
	r.count(func(s *Stats) { s.Assigned++ })
	id := created.Task.ID

	if _, err := r.client.progress(ctx, id, halfway); err != nil {
		return r.failed(ctx, "progress", err)
	}
	r.count(func(s *Stats) { s.Progressed++ })

	if spec.Reassign {
		if next, ok := pickCandidate(res.Candidates, target.EmployeeID); ok {
			if _, err := r.client.reassign(ctx, id, next.EmployeeID); err != nil {
				return r.failed(ctx, "reassign", err)
			}
			r.count(func(s *Stats) { s.Reassigned++ })
		}
	}
	if spec.Complete {
		if _, err := r.client.complete(ctx, id); err != nil {
			return r.failed(ctx, "complete", err)
		}
		r.count(func(s *Stats) { s.Completed++ })
	}
	return nil
}

func (r *Runner) failed(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isConflict(err) {
		r.count(func(s *Stats) { s.Rejected++ })
	} else {
		r.count(func(s *Stats) { s.Failed++ })
	}
	if r.cfg.Verbose {
		r.log.Warn(ctx, "step failed", logger.String("step", step), logger.Error(err))
	}
	return nil
}

// pickCandidate returns the best-ranked candidate that can take work and is
// not skip.
func pickCandidate(cands []candidate, skip string) (candidate, bool) {
	i := slices.IndexFunc(cands, func(c candidate) bool {
		return c.EmployeeID != skip && c.Availability != "Fully Assigned"
	})
	if i < 0 {
		return candidate{}, false
	}
	return cands[i], true
}

// settle re-verifies until the state is consistent or the settle window
// closes. Leaderboard updates are asynchronous, so early reads may lag.
func (r *Runner) settle(ctx context.Context) ([]string, error) {
	deadline := r.now().Add(r.cfg.Settle)
	for {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		violations := verify(snap)
		r.count(func(s *Stats) { s.Leaderboard = len(snap.leaderboard) })
		if len(violations) == 0 || !r.now().Before(deadline) {
			return violations, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settlePoll):
		}
	}
}

func (r *Runner) snapshot(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.employees, err = r.client.employees(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.tasks, err = r.client.tasks(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.performance, err = r.client.performance(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.leaderboard, err = r.client.leaderboard(gctx, leaderboardLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap, nil
}

func (r *Runner) report(ctx context.Context, s Stats) {
	r.log.Info(ctx, "simulation finished",
		logger.Int("generated", s.Generated),
		logger.Int("matched", s.Matched),
		logger.Int("unmatched", s.Unmatched),
		logger.Int("assigned", s.Assigned),
		logger.Int("progressed", s.Progressed),
		logger.Int("reassigned", s.Reassigned),
		logger.Int("completed", s.Completed),
		logger.Int("rejected", s.Rejected),
		logger.Int("failed", s.Failed),
		logger.Int("leaderboardEntries", s.Leaderboard),
		logger.Int("violations", len(s.Violations)),
		logger.Duration("duration", s.Duration))
}
