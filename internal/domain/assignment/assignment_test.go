package assignment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/matchmaker/internal/domain/assignment"
	"github.com/okian/matchmaker/internal/domain/directory"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/performance"
	"github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type captureEmitter struct {
	mu     sync.Mutex
	events []model.CompletionEvent
	err    error
}

func (e *captureEmitter) Emit(_ context.Context, ev model.CompletionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

type failingPersister struct{ fail bool }

func (p *failingPersister) Save([]model.Employee) error {
	if p.fail {
		return errors.New("read-only file system")
	}
	return nil
}

type fixture struct {
	dir     *directory.Directory
	perf    *performance.Tracker
	emitter *captureEmitter
	clock   *fakeClock
	persist *failingPersister
	m       *assignment.Machine
}

func newFixture() *fixture {
	f := &fixture{
		perf:    performance.New(),
		emitter: &captureEmitter{},
		clock:   &fakeClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
		persist: &failingPersister{},
	}
	var err error
	f.dir, err = directory.New([]model.Employee{
		{ID: "E1", Name: "Ada", Experience: model.Senior, Skills: []string{"Python", "SQL"}, Availability: model.Free},
		{ID: "E2", Name: "Ben", Experience: model.Junior, Skills: []string{"Python", "SQL"}, Availability: model.PartiallyAssigned, CurrentTasks: []string{"Legacy"}},
		{ID: "E3", Name: "Cy", Experience: model.Expert, Skills: []string{"Go"}, Availability: model.FullyAssigned},
	}, directory.WithPersister(f.persist))
	if err != nil {
		panic(err)
	}
	f.m = assignment.New(f.dir,
		assignment.WithClock(f.clock.now),
		assignment.WithRecorder(f.perf),
		assignment.WithEmitter(f.emitter),
	)
	return f
}

func (f *fixture) availability(id string) model.Availability {
	e, _ := f.dir.Get(id)
	return e.Availability
}

func task(employeeID string, p model.Priority) assignment.NewTask {
	return assignment.NewTask{
		Name:           "Build report",
		Description:    "Quarterly numbers",
		RequiredSkills: []string{"Python"},
		Priority:       p,
		EmployeeID:     employeeID,
	}
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a roster with free, partial and full employees", t, func() {
		f := newFixture()

		convey.Convey("When assigning to a Free employee", func() {
			res, err := f.m.Assign(ctx, task("E1", model.Low))

			convey.Convey("Then the task is in progress and the employee partially assigned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.PersistErr, convey.ShouldBeNil)
				convey.So(res.Task.ID, convey.ShouldEqual, 1)
				convey.So(res.Task.Status, convey.ShouldEqual, model.InProgress)
				convey.So(res.Task.AssignedAt, convey.ShouldEqual, f.clock.t)
				convey.So(len(res.Task.Assignments), convey.ShouldEqual, 1)
				convey.So(f.availability("E1"), convey.ShouldEqual, model.PartiallyAssigned)

				e, _ := f.dir.Get("E1")
				convey.So(e.CurrentTasks, convey.ShouldResemble, []string{"Build report"})
			})

			convey.Convey("And task ids are sequential", func() {
				res2, err := f.m.Assign(ctx, task("E1", model.Low))
				convey.So(err, convey.ShouldBeNil)
				convey.So(res2.Task.ID, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a Partially Assigned employee gets a High priority task", func() {
			_, err := f.m.Assign(ctx, task("E2", model.High))
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.availability("E2"), convey.ShouldEqual, model.FullyAssigned)
		})

		convey.Convey("When a Partially Assigned employee gets a Low priority task", func() {
			_, err := f.m.Assign(ctx, task("E2", model.Low))
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.availability("E2"), convey.ShouldEqual, model.PartiallyAssigned)
		})

		convey.Convey("When the employee is Fully Assigned", func() {
			_, err := f.m.Assign(ctx, task("E3", model.Low))

			convey.Convey("Then it is rejected and nothing changes", func() {
				convey.So(errors.Is(err, model.ErrUnavailable), convey.ShouldBeTrue)
				convey.So(f.m.Len(), convey.ShouldEqual, 0)
				e, _ := f.dir.Get("E3")
				convey.So(e.CurrentTasks, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the employee is unknown", func() {
			_, err := f.m.Assign(ctx, task("E404", model.Low))
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When inputs are invalid", func() {
			bad := task("E1", model.Low)
			bad.Name = "  "
			_, err := f.m.Assign(ctx, bad)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)

			bad = task("E1", model.Low)
			bad.RequiredSkills = nil
			_, err = f.m.Assign(ctx, bad)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)

			bad = task("E1", model.Low)
			bad.Name = "Fix login, signup"
			_, err = f.m.Assign(ctx, bad)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)

			bad = task("E1", "Urgent")
			_, err = f.m.Assign(ctx, bad)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)

			convey.So(f.availability("E1"), convey.ShouldEqual, model.Free)
		})

		convey.Convey("When the roster cannot be written", func() {
			f.persist.fail = true
			res, err := f.m.Assign(ctx, task("E1", model.Low))

			convey.Convey("Then the assignment stands with a persistence warning", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(errors.Is(res.PersistErr, model.ErrPersistence), convey.ShouldBeTrue)
				convey.So(f.availability("E1"), convey.ShouldEqual, model.PartiallyAssigned)
			})
		})
	})
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a task assigned to a previously free employee", t, func() {
		f := newFixture()
		res, _ := f.m.Assign(ctx, task("E1", model.Low))
		id := res.Task.ID

		convey.Convey("Progress above 75 marks the employee Fully Assigned", func() {
			got, err := f.m.UpdateProgress(ctx, id, 80)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Task.Progress, convey.ShouldEqual, 80)
			convey.So(f.availability("E1"), convey.ShouldEqual, model.FullyAssigned)

			convey.Convey("And progress below 25 brings them back to Partially", func() {
				_, err := f.m.UpdateProgress(ctx, id, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.availability("E1"), convey.ShouldEqual, model.PartiallyAssigned)
			})
		})

		convey.Convey("Progress in the middle band leaves availability alone", func() {
			_, err := f.m.UpdateProgress(ctx, id, 50)
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.availability("E1"), convey.ShouldEqual, model.PartiallyAssigned)
		})

		convey.Convey("Progress is not re-derived while another task is open", func() {
			_, _ = f.m.Assign(ctx, assignment.NewTask{Name: "Second", Description: "d", RequiredSkills: []string{"SQL"}, Priority: model.Low, EmployeeID: "E1"})
			_, err := f.m.UpdateProgress(ctx, id, 90)
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.availability("E1"), convey.ShouldEqual, model.PartiallyAssigned)
		})

		convey.Convey("Out of range progress is rejected", func() {
			_, err := f.m.UpdateProgress(ctx, id, 101)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
			_, err = f.m.UpdateProgress(ctx, id, -1)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
		})

		convey.Convey("Unknown tasks are not found", func() {
			_, err := f.m.UpdateProgress(ctx, 99, 10)
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("Completed tasks reject progress", func() {
			_, _ = f.m.Complete(ctx, id)
			_, err := f.m.UpdateProgress(ctx, id, 10)
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
		})
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a task with a two day deadline", t, func() {
		f := newFixture()
		in := task("E1", model.High)
		in.Deadline = f.clock.t.Add(48 * time.Hour)
		res, _ := f.m.Assign(ctx, in)
		id := res.Task.ID

		convey.Convey("When it is completed after one day", func() {
			f.clock.advance(24 * time.Hour)
			done, err := f.m.Complete(ctx, id)

			convey.Convey("Then it is on time and the employee is free again", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(done.Task.Status, convey.ShouldEqual, model.Completed)
				convey.So(*done.Task.CompletedAt, convey.ShouldEqual, f.clock.t)
				convey.So(done.Task.OnTime(), convey.ShouldBeTrue)
				convey.So(done.Task.Assignments[0].Outcome, convey.ShouldEqual, model.Completed)
				convey.So(f.availability("E1"), convey.ShouldEqual, model.Free)

				e, _ := f.dir.Get("E1")
				convey.So(e.CurrentTasks, convey.ShouldBeEmpty)
			})

			convey.Convey("Then the performance record counts it on time", func() {
				rec, ok := f.perf.Get("E1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rec.OnTime, convey.ShouldEqual, 1)
				convey.So(rec.Late, convey.ShouldEqual, 0)
				convey.So(rec.OnTimeRate, convey.ShouldAlmostEqual, 100.0)
				convey.So(rec.AvgCompletionDays, convey.ShouldAlmostEqual, 1.0)
			})

			convey.Convey("Then a completion event carries the snapshot", func() {
				convey.So(len(f.emitter.events), convey.ShouldEqual, 1)
				ev := f.emitter.events[0]
				convey.So(ev.TaskID, convey.ShouldEqual, id)
				convey.So(ev.OnTime, convey.ShouldBeTrue)
				convey.So(ev.Performance.TotalCompleted, convey.ShouldEqual, 1)
			})

			convey.Convey("Then completing again is rejected", func() {
				_, err := f.m.Complete(ctx, id)
				convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When it is completed after three days", func() {
			f.clock.advance(72 * time.Hour)
			_, err := f.m.Complete(ctx, id)
			convey.So(err, convey.ShouldBeNil)

			rec, _ := f.perf.Get("E1")
			convey.So(rec.Late, convey.ShouldEqual, 1)
			convey.So(rec.OnTimeRate, convey.ShouldAlmostEqual, 0.0)
		})

		convey.Convey("When the employee still holds another open task", func() {
			_, _ = f.m.Assign(ctx, assignment.NewTask{Name: "Other", Description: "d", RequiredSkills: []string{"SQL"}, Priority: model.High, EmployeeID: "E1"})
			convey.So(f.availability("E1"), convey.ShouldEqual, model.FullyAssigned)

			_, err := f.m.Complete(ctx, id)

			convey.Convey("Then availability is left as is", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(f.availability("E1"), convey.ShouldEqual, model.FullyAssigned)
				e, _ := f.dir.Get("E1")
				convey.So(e.CurrentTasks, convey.ShouldResemble, []string{"Other"})
			})
		})

		convey.Convey("When the emitter fails", func() {
			f.emitter.err = errors.New("queue full")
			_, err := f.m.Complete(ctx, id)
			convey.So(err, convey.ShouldBeNil)
		})
	})
}

func TestReassign(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a task in progress on E1", t, func() {
		f := newFixture()
		res, _ := f.m.Assign(ctx, task("E1", model.Medium))
		id := res.Task.ID
		_, _ = f.m.UpdateProgress(ctx, id, 50)

		convey.Convey("When reassigned to E2", func() {
			f.clock.advance(time.Hour)
			got, err := f.m.Reassign(ctx, id, "E2")

			convey.Convey("Then the same task moves with progress reset", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Task.ID, convey.ShouldEqual, id)
				convey.So(got.Task.EmployeeID, convey.ShouldEqual, "E2")
				convey.So(got.Task.Progress, convey.ShouldEqual, 0)
				convey.So(got.Task.Status, convey.ShouldEqual, model.InProgress)
				convey.So(got.Task.AssignedAt, convey.ShouldEqual, f.clock.t)
			})

			convey.Convey("Then the assignment trail closes the old tenure", func() {
				trail := got.Task.Assignments
				convey.So(len(trail), convey.ShouldEqual, 2)
				convey.So(trail[0].EmployeeID, convey.ShouldEqual, "E1")
				convey.So(trail[0].Outcome, convey.ShouldEqual, model.Reassigned)
				convey.So(trail[0].EndedAt, convey.ShouldNotBeNil)
				convey.So(trail[1].EmployeeID, convey.ShouldEqual, "E2")
				convey.So(trail[1].EndedAt, convey.ShouldBeNil)
				convey.So(trail[1].ID, convey.ShouldNotEqual, trail[0].ID)
			})

			convey.Convey("Then the old employee is free and the new one partial", func() {
				convey.So(f.availability("E1"), convey.ShouldEqual, model.Free)
				convey.So(f.availability("E2"), convey.ShouldEqual, model.PartiallyAssigned)
				e2, _ := f.dir.Get("E2")
				convey.So(e2.CurrentTasks, convey.ShouldResemble, []string{"Legacy", "Build report"})
			})

			convey.Convey("Then open task queries follow the new owner", func() {
				convey.So(f.m.OpenTasks("E1"), convey.ShouldBeEmpty)
				convey.So(len(f.m.OpenTasks("E2")), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When reassigned to a Fully Assigned employee", func() {
			_, err := f.m.Reassign(ctx, id, "E3")
			convey.So(errors.Is(err, model.ErrUnavailable), convey.ShouldBeTrue)
			got, _ := f.m.Get(id)
			convey.So(got.EmployeeID, convey.ShouldEqual, "E1")
			convey.So(got.Progress, convey.ShouldEqual, 50)
		})

		convey.Convey("When reassigned to the current owner", func() {
			_, err := f.m.Reassign(ctx, id, "E1")
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
		})

		convey.Convey("When ids are unknown", func() {
			_, err := f.m.Reassign(ctx, id, "E404")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
			_, err = f.m.Reassign(ctx, 42, "E2")
			convey.So(errors.Is(err, model.ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When the task is already completed", func() {
			_, _ = f.m.Complete(ctx, id)
			_, err := f.m.Reassign(ctx, id, "E2")
			convey.So(errors.Is(err, model.ErrInvalidInput), convey.ShouldBeTrue)
		})
	})
}

func TestListing(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a few tasks in mixed states", t, func() {
		f := newFixture()
		a, _ := f.m.Assign(ctx, task("E1", model.Low))
		_, _ = f.m.Assign(ctx, task("E2", model.Low))
		_, _ = f.m.Complete(ctx, a.Task.ID)

		convey.So(len(f.m.History()), convey.ShouldEqual, 2)
		convey.So(len(f.m.List(assignment.ListFilter{Status: model.Completed})), convey.ShouldEqual, 1)
		convey.So(len(f.m.List(assignment.ListFilter{EmployeeID: "E2"})), convey.ShouldEqual, 1)

		convey.Convey("Returned tasks are copies", func() {
			h := f.m.History()
			h[0].RequiredSkills[0] = "changed"
			again, _ := f.m.Get(h[0].ID)
			convey.So(again.RequiredSkills[0], convey.ShouldEqual, "Python")
		})

		convey.Convey("Every task that was ever assigned leaves its employee non-Free while open", func() {
			for _, tk := range f.m.List(assignment.ListFilter{Status: model.InProgress}) {
				convey.So(f.availability(tk.EmployeeID), convey.ShouldNotEqual, model.Free)
			}
		})
	})
}
