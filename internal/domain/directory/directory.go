// Package directory is the in-memory employee roster.
//
// All reads return copies; the roster changes only through
// UpdateAvailability, RemoveTask and ReleaseTask. When a Persister is
// configured every successful mutation is written through synchronously.
package directory

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/pkg/metrics"
)

// Filter restricts a roster listing. Dimensions are ANDed; values within a
// dimension are ORed. An empty dimension does not restrict.
type Filter struct {
	Roles        []string
	Experience   []string
	Availability []model.Availability
}

// Directory is safe for concurrent use.
type Directory struct {
	mu        sync.RWMutex
	employees []model.Employee
	index     map[string]int
	persister Persister
}

// New builds a directory from a loaded roster. Roster order is kept and is
// the order of every listing.
func New(employees []model.Employee, opts ...Option) (*Directory, error) {
	d := &Directory{
		employees: make([]model.Employee, 0, len(employees)),
		index:     make(map[string]int, len(employees)),
	}
	for _, e := range employees {
		if _, dup := d.index[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		d.index[e.ID] = len(d.employees)
		d.employees = append(d.employees, e.Clone())
	}
	for _, opt := range opts {
		opt(d)
	}
	d.publishGauges()
	return d, nil
}

// Len returns the roster size.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.employees)
}

// Get returns a copy of one employee.
func (d *Directory) Get(id string) (model.Employee, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return model.Employee{}, false
	}
	return d.employees[i].Clone(), true
}

// All returns copies of the whole roster in roster order.
func (d *Directory) All() []model.Employee {
	return d.Filter(Filter{})
}

// ListSkills returns every declared skill once, sorted.
func (d *Directory) ListSkills() []string {
	return d.distinct(func(e *model.Employee) []string { return e.Skills })
}

// ListRoles returns the distinct roles, sorted.
func (d *Directory) ListRoles() []string {
	return d.distinct(func(e *model.Employee) []string { return []string{e.Role} })
}

// ListExperienceLevels returns the distinct experience tiers, sorted.
func (d *Directory) ListExperienceLevels() []string {
	return d.distinct(func(e *model.Employee) []string { return []string{e.Experience} })
}

func (d *Directory) distinct(values func(*model.Employee) []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	for i := range d.employees {
		for _, v := range values(&d.employees[i]) {
			if v != "" {
				seen[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FindBySkills returns employees whose skills are a superset of required,
// in roster order. Empty required yields no candidates.
func (d *Directory) FindBySkills(required []string) []model.Employee {
	required = model.NormalizeSkills(required)
	if len(required) == 0 {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []model.Employee
	for i := range d.employees {
		if d.employees[i].HasAllSkills(required) {
			out = append(out, d.employees[i].Clone())
		}
	}
	return out
}

// Filter lists employees matching f in roster order.
func (d *Directory) Filter(f Filter) []model.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]model.Employee, 0, len(d.employees))
	for i := range d.employees {
		e := &d.employees[i]
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, e.Role) {
			continue
		}
		if len(f.Experience) > 0 && !slices.Contains(f.Experience, e.Experience) {
			continue
		}
		if len(f.Availability) > 0 && !slices.Contains(f.Availability, e.Availability) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out
}

// UpdateAvailability overwrites an employee's tier and, when taskName is not
// empty, appends it to CurrentTasks. The in-memory change is kept even if
// persisting fails; the returned error then wraps model.ErrPersistence.
func (d *Directory) UpdateAvailability(id string, status model.Availability, taskName string) error {
	return d.mutate(id, func(e *model.Employee) {
		e.Availability = status
		if taskName != "" {
			e.CurrentTasks = append(e.CurrentTasks, taskName)
		}
	})
}

// RemoveTask drops the first occurrence of taskName from CurrentTasks.
func (d *Directory) RemoveTask(id, taskName string) error {
	return d.mutate(id, func(e *model.Employee) {
		e.CurrentTasks = removeFirst(e.CurrentTasks, taskName)
	})
}

// ReleaseTask drops taskName and sets the tier in a single write.
func (d *Directory) ReleaseTask(id, taskName string, status model.Availability) error {
	return d.mutate(id, func(e *model.Employee) {
		e.CurrentTasks = removeFirst(e.CurrentTasks, taskName)
		e.Availability = status
	})
}

func (d *Directory) mutate(id string, apply func(*model.Employee)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("employee %s: %w", id, model.ErrNotFound)
	}
	apply(&d.employees[i])
	d.publishGaugesLocked()

	if d.persister == nil {
		return nil
	}
	snapshot := make([]model.Employee, len(d.employees))
	for j := range d.employees {
		snapshot[j] = d.employees[j].Clone()
	}

	start := time.Now()
	err := d.persister.Save(snapshot)
	metrics.RecordPersist("dataset", err, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	return nil
}

func removeFirst(items []string, item string) []string {
	if i := slices.Index(items, item); i >= 0 {
		return slices.Delete(items, i, i+1)
	}
	return items
}

func (d *Directory) publishGauges() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.publishGaugesLocked()
}

func (d *Directory) publishGaugesLocked() {
	counts := make(map[model.Availability]int, len(model.Availabilities))
	for i := range d.employees {
		counts[d.employees[i].Availability]++
	}
	for _, a := range model.Availabilities {
		metrics.UpdateEmployeesByAvailability(string(a), counts[a])
	}
	metrics.UpdateTotalEmployees(len(d.employees))
}
