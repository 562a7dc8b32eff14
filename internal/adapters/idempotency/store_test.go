package idempotency_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/matchmaker/internal/adapters/idempotency"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new idempotency store", t, func() {
		s, err := idempotency.New(1<<20, idempotency.WithTTL(time.Minute))
		So(err, ShouldBeNil)
		defer s.Close()

		Convey("An unknown key has no response", func() {
			_, ok := s.Lookup(ctx, "k1")
			So(ok, ShouldBeFalse)
		})

		Convey("When a key is claimed and committed", func() {
			So(s.Begin(ctx, "k1"), ShouldBeNil)
			s.Commit(ctx, "k1", idempotency.Response{Status: 201, Body: []byte(`{"task_id":1}`)})

			Convey("Then the response is replayed", func() {
				resp, ok := s.Lookup(ctx, "k1")
				So(ok, ShouldBeTrue)
				So(resp.Status, ShouldEqual, 201)
				So(string(resp.Body), ShouldEqual, `{"task_id":1}`)
			})

			Convey("Then the key cannot be claimed again", func() {
				So(errors.Is(s.Begin(ctx, "k1"), idempotency.ErrCommitted), ShouldBeTrue)
			})
		})

		Convey("When a duplicate misses Lookup while the first request is running", func() {
			So(s.Begin(ctx, "late"), ShouldBeNil)
			_, hit := s.Lookup(ctx, "late")
			So(hit, ShouldBeFalse)
			s.Commit(ctx, "late", idempotency.Response{Status: 201, Body: []byte(`{"task_id":2}`)})
			err := s.Begin(ctx, "late")

			Convey("Then its claim is refused and the response replays", func() {
				So(errors.Is(err, idempotency.ErrCommitted), ShouldBeTrue)
				resp, ok := s.Lookup(ctx, "late")
				So(ok, ShouldBeTrue)
				So(string(resp.Body), ShouldEqual, `{"task_id":2}`)
			})
		})

		Convey("When a key is claimed twice", func() {
			So(s.Begin(ctx, "k2"), ShouldBeNil)
			err := s.Begin(ctx, "k2")

			Convey("Then the second claim is refused until aborted", func() {
				So(errors.Is(err, idempotency.ErrInFlight), ShouldBeTrue)
				s.Abort(ctx, "k2")
				So(s.Begin(ctx, "k2"), ShouldBeNil)
				_, ok := s.Lookup(ctx, "k2")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When many goroutines race for one key", func() {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if s.Begin(ctx, "race") == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(wins.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store too small to admit a response", t, func() {
		s, err := idempotency.New(1, idempotency.WithTTL(time.Minute))
		So(err, ShouldBeNil)
		defer s.Close()
		big := make([]byte, 1<<17)

		Convey("When the oversized response is committed", func() {
			So(s.Begin(ctx, "big"), ShouldBeNil)
			s.Commit(ctx, "big", idempotency.Response{Status: 201, Body: big})

			Convey("Then it is still replayed and the key stays closed", func() {
				resp, ok := s.Lookup(ctx, "big")
				So(ok, ShouldBeTrue)
				So(len(resp.Body), ShouldEqual, len(big))
				So(errors.Is(s.Begin(ctx, "big"), idempotency.ErrCommitted), ShouldBeTrue)
			})
		})
	})
}
