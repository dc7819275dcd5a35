package errs_test

import (
	"errors"
	"testing"

	"github.com/okian/piste/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

var errBoom = errors.New("boom")

func TestErrorKinds(t *testing.T) {
	Convey("Given errors built with the helpers", t, func() {
		Convey("WrapKind keeps both the kind and the cause", func() {
			err := errs.WrapKind("bracket.report", errs.ErrValidation, errBoom)
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
			So(errors.Is(err, errBoom), ShouldBeTrue)
			So(errs.IsNotFound(err), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "bracket.report: validation failed: boom")
		})

		Convey("Wrap preserves an inner kind", func() {
			inner := errs.NotFoundf("rating.pairwise", "entrant %q", "x")
			err := errs.Wrap("app.pairwise", inner)
			So(errs.IsNotFound(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `entrant "x"`)
		})

		Convey("NewKind has no cause", func() {
			err := errs.NewKind("api.get", errs.ErrNotFound)
			So(err.Error(), ShouldEqual, "api.get: not found")
			So(errs.IsNotFound(err), ShouldBeTrue)
		})

		Convey("Nil errors stay nil", func() {
			So(errs.Wrap("op", nil), ShouldBeNil)
			So(errs.WrapKind("op", errs.ErrValidation, nil), ShouldBeNil)
		})
	})
}
