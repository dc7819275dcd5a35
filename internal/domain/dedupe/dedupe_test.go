package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/piste/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a pool key is recorded twice", func() {
			first := d.SeenAndRecord(ctx, dedupe.Key("U15", "pool-1"))
			second := d.SeenAndRecord(ctx, dedupe.Key("U15", "pool-1"))

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same pool id is used by another event", func() {
			d.SeenAndRecord(ctx, dedupe.Key("U15", "pool-1"))
			seen := d.SeenAndRecord(ctx, dedupe.Key("Open", "pool-1"))

			Convey("Then it is a different key", func() {
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "k")
			d.Unrecord(ctx, "k")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "k"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")
		d.SeenAndRecord(ctx, "c")

		Convey("Then the oldest key is forgotten", func() {
			So(d.Size(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})
	})

	Convey("Given concurrent submissions of the same key", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "same") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
				d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one caller records it", func() {
			So(fresh, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 51)
		})
	})
}
