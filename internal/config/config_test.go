package config_test

import (
	"testing"
	"time"

	"github.com/okian/matchmaker/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Persist, convey.ShouldBeTrue)
			convey.So(cfg.AvailabilityFactors["Partially Assigned"], convey.ShouldEqual, 0.7)
			convey.So(cfg.PreferenceBoost, convey.ShouldEqual, 0.1)
			convey.So(cfg.ManualPreferenceBase, convey.ShouldEqual, 0.5)
			convey.So(cfg.IdempotencyTTL(), convey.ShouldEqual, 10*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When a factor is not positive", func() {
			cfg.AvailabilityFactors["Free"] = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
