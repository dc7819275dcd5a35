package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/piste/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewNotification(t *testing.T) {
	convey.Convey("Given a bout completion", t, func() {
		n := model.NewNotification(model.BoutCompleted, "U15", map[string]any{"bout_id": "U15-R0-B1"})

		convey.Convey("Then it carries an id, type and JSON payload", func() {
			convey.So(n.ID, convey.ShouldNotBeEmpty)
			convey.So(n.Type, convey.ShouldEqual, model.BoutCompleted)
			convey.So(n.Event, convey.ShouldEqual, "U15")
			convey.So(n.At.IsZero(), convey.ShouldBeFalse)

			var body map[string]string
			convey.So(json.Unmarshal(n.Payload, &body), convey.ShouldBeNil)
			convey.So(body["bout_id"], convey.ShouldEqual, "U15-R0-B1")
		})

		convey.Convey("Then ids are unique", func() {
			other := model.NewNotification(model.BoutCompleted, "U15", nil)
			convey.So(other.ID, convey.ShouldNotEqual, n.ID)
			convey.So(other.Payload, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a payload that cannot be encoded", t, func() {
		n := model.NewNotification(model.BoutAdded, "Open", func() {})
		convey.So(n.Payload, convey.ShouldBeNil)
		convey.So(n.Type, convey.ShouldEqual, model.BoutAdded)
	})
}
