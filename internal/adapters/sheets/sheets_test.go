package sheets

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func workbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, row := range rows {
		if err := setRow(f, sheet, i+1, row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()
	return bytes.NewReader(buf.Bytes())
}

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	return rows
}

func TestImportPool(t *testing.T) {
	Convey("Given a three-entrant pool sheet", t, func() {
		r := workbook(t, [][]any{
			{"Pool", 4},
			{"ID", "Name", 1, 2, 3},
			{"f1", "Ana Alder", "", "V", "V3"},
			{"f2", "Bo Birch", 2, "", "D4"},
			{"f3", "Cy Cedar", "d1", 5, ""},
		})

		sheet, err := ImportPool(r)

		Convey("Then ids, number and cells are read", func() {
			So(err, ShouldBeNil)
			So(sheet.Number, ShouldEqual, 4)
			So(sheet.ID, ShouldEqual, "pool-4")
			So(sheet.Entrants, ShouldResemble, []string{"f1", "f2", "f3"})
			So(sheet.Scores[0][0], ShouldBeNil)
			So(*sheet.Scores[0][1], ShouldEqual, DefaultVictoryScore)
			So(*sheet.Scores[0][2], ShouldEqual, 3)
			So(*sheet.Scores[1][2], ShouldEqual, 4)
			So(*sheet.Scores[2][0], ShouldEqual, 1)
		})
	})

	Convey("Given a sheet with a pool id override and victory score", t, func() {
		r := workbook(t, [][]any{
			{"ID", "Name", 1, 2},
			{"a", "", "", "V"},
			{"b", "", 10, ""},
		})
		sheet, err := ImportPool(r, WithPoolID("day1-p2"), WithVictoryScore(15))
		So(err, ShouldBeNil)
		So(sheet.ID, ShouldEqual, "day1-p2")
		So(sheet.Number, ShouldEqual, 1)
		So(*sheet.Scores[0][1], ShouldEqual, 15)
	})

	Convey("Given malformed sheets", t, func() {
		Convey("A missing header is a validation error", func() {
			_, err := ImportPool(workbook(t, [][]any{{"nothing", "here"}}))
			So(errors.Is(err, ErrMissingHeader), ShouldBeTrue)
			So(errs.IsValidation(err), ShouldBeTrue)
		})
		Convey("A bad cell names its coordinates", func() {
			_, err := ImportPool(workbook(t, [][]any{
				{"ID", "Name", 1, 2},
				{"a", "", "", "x"},
				{"b", "", 1, ""},
			}))
			So(errors.Is(err, ErrBadCell), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "D2")
		})
		Convey("A header with no entrants is rejected", func() {
			_, err := ImportPool(workbook(t, [][]any{{"ID", "Name"}}))
			So(errors.Is(err, ErrNoEntrants), ShouldBeTrue)
		})
		Convey("Garbage bytes are rejected", func() {
			_, err := ImportPool(bytes.NewReader([]byte("id,name\n")))
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})
}

func TestPoolWorkbookRoundTrip(t *testing.T) {
	Convey("Given a pool sheet written as a workbook", t, func() {
		five, two := 5, 2
		in := rating.PoolSheet{
			Number:   2,
			Entrants: []string{"x", "y"},
			Scores:   [][]*int{{nil, &five}, {&two, nil}},
		}
		data, err := PoolWorkbook(in)
		So(err, ShouldBeNil)

		out, err := ImportPool(bytes.NewReader(data))
		So(err, ShouldBeNil)
		So(out.ID, ShouldEqual, "pool-2")
		So(*out.Scores[0][1], ShouldEqual, 5)
		So(*out.Scores[1][0], ShouldEqual, 2)
	})

	Convey("Given a blank template", t, func() {
		var buf bytes.Buffer
		So(PoolTemplate(&buf, 1, []string{"x", "y", "z"}, []string{"X", "Y"}), ShouldBeNil)
		out, err := ImportPool(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		So(out.Entrants, ShouldHaveLength, 3)
		So(out.Scores[0][1], ShouldBeNil)
	})
}

func TestExport(t *testing.T) {
	Convey("Given a ranking", t, func() {
		s := rating.NewStore()
		for _, id := range []string{"a", "b"} {
			_, err := s.Register(rating.EntrantInput{ID: id, LastName: id})
			So(err, ShouldBeNil)
		}
		_, err := s.AddBout("a", "b", 15, 9, rating.SourceDirect)
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(ExportRanking(&buf, s.Ranking()), ShouldBeNil)

		rows := readRows(t, buf.Bytes(), rankingSheet)
		So(rows, ShouldHaveLength, 3)
		So(rows[0][0], ShouldEqual, "Rank")
		So(rows[1][1], ShouldEqual, "a")
		So(rows[1][7], ShouldEqual, "1")
	})

	Convey("Given a completed two-entrant bracket", t, func() {
		b, err := bracket.NewBuilder().Build("Cup", []bracket.Seeding{
			{Competitor: bracket.Competitor{ID: "a"}},
			{Competitor: bracket.Competitor{ID: "b"}},
		})
		So(err, ShouldBeNil)
		_, err = bracket.NewAdvancer().Report(b, b.Final().ID, 15, 3, bracket.Signatures{})
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(ExportStandings(&buf, b), ShouldBeNil)
		rows := readRows(t, buf.Bytes(), standingsSheet)
		So(rows, ShouldHaveLength, 3)
		So(rows[1][0], ShouldEqual, "1")
		So(rows[1][2], ShouldEqual, "a")
		So(rows[2][2], ShouldEqual, "b")
	})
}
