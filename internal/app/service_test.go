package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	service "github.com/okian/matchmaker/internal/app"
	"github.com/okian/matchmaker/internal/config"
	"github.com/okian/matchmaker/internal/domain/assignment"
	"github.com/okian/matchmaker/internal/domain/directory"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/domain/scoring"
	"github.com/okian/matchmaker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func testRoster() []model.Employee {
	return []model.Employee{
		{ID: "E1", Name: "Ada", Role: "Engineer", Experience: model.Senior, Skills: []string{"Python", "SQL"}, Availability: model.Free},
		{ID: "E2", Name: "Ben", Role: "Engineer", Experience: model.Junior, Skills: []string{"Python", "SQL"}, Availability: model.Free},
		{ID: "E3", Name: "Cy", Role: "Analyst", Experience: model.Expert, Skills: []string{"Excel"}, Availability: model.FullyAssigned},
	}
}

func startService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithEmployees(testRoster())}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithEmployees(testRoster()))

		Convey("Before Start it reports stopped and refuses work", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			_, err := svc.Match(context.Background(), scoring.Request{RequiredSkills: []string{"Python"}})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Before Start roster reads are empty instead of panicking", func() {
			So(svc.ListSkills(), ShouldBeEmpty)
			So(svc.Employees(directory.Filter{}), ShouldBeEmpty)
			So(svc.SearchEmployees([]string{"Python"}), ShouldBeEmpty)
			So(svc.Tasks(assignment.ListFilter{}), ShouldBeEmpty)
			_, err := svc.Employee("E1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Begin(context.Background(), "k"), service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			defer svc.Stop()

			Convey("Then stats describe the roster", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["employees"], ShouldEqual, 3)
				So(stats["employeesByAvailability"].(map[string]int)["Fully Assigned"], ShouldEqual, 1)
			})

			Convey("Then a second Start is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
			svc.Stop()
		})
	})

	Convey("Given a dataset path that does not exist", t, func() {
		cfg := config.New()
		cfg.DatasetPath = "/nonexistent/roster.csv"
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(context.Background()), ShouldNotBeNil)
	})
}

func TestService_Queries(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()

		So(svc.ListSkills(), ShouldResemble, []string{"Excel", "Python", "SQL"})
		So(svc.ListRoles(), ShouldResemble, []string{"Analyst", "Engineer"})
		So(len(svc.SearchEmployees([]string{" Python ", "SQL"})), ShouldEqual, 2)

		_, err := svc.Employee("E404")
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

		_, err = svc.Affinity("E404")
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

		err = svc.PutPreferences("E404", map[string]int{"Python": 5})
		So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
	})
}

func TestService_MatchAndAssign(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		svc := startService()
		defer svc.Stop()

		Convey("When matching a Python task", func() {
			res, err := svc.Match(ctx, scoring.Request{RequiredSkills: []string{"Python"}})

			Convey("Then the Senior is proposed and both are ranked", func() {
				So(err, ShouldBeNil)
				So(res.Found, ShouldBeTrue)
				So(res.Best.EmployeeID, ShouldEqual, "E1")
				So(len(res.Candidates), ShouldEqual, 2)
			})
		})

		Convey("When matching a skill nobody has", func() {
			res, err := svc.Match(ctx, scoring.Request{RequiredSkills: []string{"Rust"}})
			So(err, ShouldBeNil)
			So(res.Found, ShouldBeFalse)
		})

		Convey("When matching with empty skills", func() {
			_, err := svc.Match(ctx, scoring.Request{})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a stored manual preference favours the Junior", func() {
			So(svc.PutPreferences("E2", map[string]int{"Python": 10}), ShouldBeNil)

			Convey("Then it moves the ranking only when preferences are considered", func() {
				res, err := svc.Match(ctx, scoring.Request{RequiredSkills: []string{"Python"}, ConsiderPreferences: true})
				So(err, ShouldBeNil)
				So(res.Best.EmployeeID, ShouldEqual, "E2")

				res, _ = svc.Match(ctx, scoring.Request{RequiredSkills: []string{"Python"}})
				So(res.Best.EmployeeID, ShouldEqual, "E1")
			})
		})

		Convey("When assigning to the Fully Assigned analyst", func() {
			_, err := svc.AssignTask(ctx, assignment.NewTask{
				Name: "Report", Description: "Quarterly", RequiredSkills: []string{"Excel"},
				Priority: model.Low, EmployeeID: "E3",
			})
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestService_LearnGate(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that learns after two tasks", t, func() {
		cfg := config.New()
		cfg.LearnMinTasks = 2
		svc := startService(service.WithConfig(cfg))
		defer svc.Stop()

		assign := func(name, emp string) int {
			res, err := svc.AssignTask(ctx, assignment.NewTask{
				Name: name, Description: name, RequiredSkills: []string{"Python"},
				Priority: model.Low, EmployeeID: emp, Deadline: time.Now().Add(time.Hour),
			})
			So(err, ShouldBeNil)
			return res.Task.ID
		}
		req := scoring.Request{RequiredSkills: []string{"Python"}, ConsiderPreferences: true}

		Convey("When only one task exists", func() {
			id := assign("T1", "E2")
			_, err := svc.CompleteTask(ctx, id)
			So(err, ShouldBeNil)

			res, err := svc.Match(ctx, req)
			So(err, ShouldBeNil)
			So(res.Learned, ShouldBeFalse)
		})

		Convey("When the history reaches the threshold", func() {
			id := assign("T1", "E2")
			_, err := svc.CompleteTask(ctx, id)
			So(err, ShouldBeNil)
			assign("T2", "E1")

			res, err := svc.Match(ctx, req)

			Convey("Then a pass runs and the completed tasks shape affinities", func() {
				So(err, ShouldBeNil)
				So(res.Learned, ShouldBeTrue)
				aff, err := svc.Affinity("E2")
				So(err, ShouldBeNil)
				So(aff["Python"].Count, ShouldEqual, 1)
			})

			Convey("Then later completions are ignored under learn_once until forced", func() {
				_, err := svc.CompleteTask(ctx, 2)
				So(err, ShouldBeNil)
				_, _ = svc.Match(ctx, req)
				aff, _ := svc.Affinity("E1")
				So(aff, ShouldBeEmpty)

				ok, err := svc.Learn(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				aff, _ = svc.Affinity("E1")
				So(aff["Python"].Count, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a service with no history", t, func() {
		svc := startService()
		defer svc.Stop()

		ok, err := svc.Learn(ctx)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)
	})
}
