package prefstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/matchmaker/internal/adapters/prefstore"
	"github.com/okian/matchmaker/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	Convey("Given a preferences path that does not exist yet", t, func() {
		path := filepath.Join(t.TempDir(), "prefs.yaml")
		s, err := prefstore.Open(path)
		So(err, ShouldBeNil)
		So(s.All(), ShouldBeEmpty)

		Convey("When a preference is put", func() {
			So(s.Put("E1", map[string]int{"Python": 9, "SQL": 3}), ShouldBeNil)

			Convey("Then it is readable and survives a reopen", func() {
				got, ok := s.Get("E1")
				So(ok, ShouldBeTrue)
				So(got["Python"], ShouldEqual, 9)

				again, err := prefstore.Open(path)
				So(err, ShouldBeNil)
				So(again.All(), ShouldResemble, model.ManualPreferences{"E1": {"Python": 9, "SQL": 3}})
			})

			Convey("Then a second put overwrites the employee entry", func() {
				So(s.Put("E1", map[string]int{"Go": 5}), ShouldBeNil)
				got, _ := s.Get("E1")
				So(got, ShouldResemble, map[string]int{"Go": 5})
			})
		})

		Convey("When a level is out of range", func() {
			err := s.Put("E1", map[string]int{"Python": 11})

			Convey("Then it is rejected and nothing is written", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
				_, statErr := os.Stat(path)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})

	Convey("Given a malformed file", t, func() {
		path := filepath.Join(t.TempDir(), "prefs.yaml")
		So(os.WriteFile(path, []byte("E1: [not, a, map"), 0o644), ShouldBeNil)
		_, err := prefstore.Open(path)
		So(errors.Is(err, prefstore.ErrDecode), ShouldBeTrue)
	})

	Convey("Given a file with an invalid level", t, func() {
		path := filepath.Join(t.TempDir(), "prefs.yaml")
		So(os.WriteFile(path, []byte("E1:\n  Python: 0\n"), 0o644), ShouldBeNil)
		_, err := prefstore.Open(path)
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("Given an in-memory store", t, func() {
		s, err := prefstore.Open("")
		So(err, ShouldBeNil)
		So(s.Put("E2", map[string]int{"Excel": 1}), ShouldBeNil)
		So(len(s.All()), ShouldEqual, 1)
	})
}
