package simulate_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/matchmaker/internal/adapters/http/api"
	service "github.com/okian/matchmaker/internal/app"
	"github.com/okian/matchmaker/internal/config"
	"github.com/okian/matchmaker/internal/domain/model"
	"github.com/okian/matchmaker/internal/simulate"
	"github.com/okian/matchmaker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func roster() []model.Employee {
	skills := [][]string{{"Go", "SQL"}, {"Go", "Docker"}, {"Python", "SQL"}, {"Python"}, {"Docker", "SQL"}, {"Go", "Python", "Docker"}}
	levels := []string{model.Junior, model.MidLevel, model.Senior, model.Expert}
	out := make([]model.Employee, 0, 12)
	for i := range 12 {
		out = append(out, model.Employee{
			ID:           "E" + string(rune('A'+i)),
			Name:         "Employee " + string(rune('A'+i)),
			Role:         "Engineer",
			Experience:   levels[i%len(levels)],
			Skills:       skills[i%len(skills)],
			Availability: model.Free,
		})
	}
	return out
}

func TestRunner_AgainstLiveService(t *testing.T) {
	Convey("Given a running service behind an HTTP server", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.WorkerCount = 2
		svc := service.New(service.WithConfig(cfg), service.WithEmployees(roster()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Router(ctx))
		defer srv.Close()

		Convey("When a seeded simulation runs", func() {
			sc := simulate.DefaultConfig()
			sc.BaseURL = srv.URL
			sc.Tasks = 40
			sc.Workers = 4
			sc.Seed = 7
			sc.Settle = 3 * time.Second
			r, err := simulate.NewRunner(sc)
			So(err, ShouldBeNil)

			stats, err := r.Run(ctx)

			Convey("Then every invariant holds", func() {
				So(err, ShouldBeNil)
				So(stats.Violations, ShouldBeEmpty)
				So(stats.Generated, ShouldEqual, 40)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Assigned, ShouldBeGreaterThan, 0)
				So(stats.Matched+stats.Unmatched, ShouldEqual, 40)
			})
		})
	})

	Convey("Given no service at the base URL", t, func() {
		sc := simulate.DefaultConfig()
		sc.BaseURL = "http://127.0.0.1:1"
		sc.Timeout = time.Second
		r, err := simulate.NewRunner(sc)
		So(err, ShouldBeNil)

		_, err = r.Run(context.Background())
		So(errors.Is(err, simulate.ErrUnhealthy), ShouldBeTrue)
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given the default config", t, func() {
		So(simulate.DefaultConfig().Validate(), ShouldBeNil)

		Convey("Out of range values are rejected together", func() {
			c := simulate.DefaultConfig()
			c.Tasks = 0
			c.CompleteShare = 1.5
			err := c.Validate()
			So(errors.Is(err, simulate.ErrInvalidConfig), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "tasks")
			So(err.Error(), ShouldContainSubstring, "complete share")

			_, err = simulate.NewRunner(c)
			So(err, ShouldNotBeNil)
		})
	})
}
