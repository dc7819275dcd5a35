package publisher

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type failing struct{ calls int }

func (f *failing) Publish(context.Context, model.Notification) error {
	f.calls++
	return errors.New("down")
}

func TestBus(t *testing.T) {
	Convey("Given a bus with a subscriber", t, func() {
		bus := NewBus(WithTopic("test.notifications"), WithBuffer(8))
		defer func() { _ = bus.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sub, err := bus.Subscribe(ctx)
		So(err, ShouldBeNil)

		Convey("When a notification is published", func() {
			sent := model.NewNotification(model.BracketCompleted, "Open", map[string]int{"size": 8})
			So(bus.Publish(ctx, sent), ShouldBeNil)

			Convey("Then the subscriber receives it decoded", func() {
				select {
				case got := <-sub:
					So(got.ID, ShouldEqual, sent.ID)
					So(got.Type, ShouldEqual, model.BracketCompleted)
					So(string(got.Payload), ShouldEqual, `{"size":8}`)
				case <-time.After(2 * time.Second):
					t.Fatal("no notification received")
				}
			})
		})
	})
}

func TestLogSinkAndFanout(t *testing.T) {
	Convey("Given a log sink and a failing sink", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf)), ShouldBeNil)
		bad := &failing{}
		f := Fanout{bad, NewLogSink(logger.Named("notify"))}

		err := f.Publish(context.Background(), model.NewNotification(model.RefereeAssigned, "U15", nil))

		Convey("Then every sink is called and the failure is reported", func() {
			So(err, ShouldNotBeNil)
			So(bad.calls, ShouldEqual, 1)
			So(buf.String(), ShouldContainSubstring, "referee_assigned")
		})
	})
}
