package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func testBracket(t *testing.T, event string) *bracket.Bracket {
	t.Helper()
	seeds := []bracket.Seeding{
		{Competitor: bracket.Competitor{ID: "f1", LastName: "Alder"}},
		{Competitor: bracket.Competitor{ID: "f2", LastName: "Birch"}},
		{Competitor: bracket.Competitor{ID: "f3", LastName: "Cedar"}},
	}
	b, err := bracket.NewBuilder().Build(event, seeds)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return b
}

func runLedgerContract(t *testing.T, name string, l Ledger) {
	ctx := context.Background()
	event := "Contract " + time.Now().Format("150405.000000")
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	Convey("Given the "+name+" ledger", t, func() {
		Convey("Tournaments round-trip their roster", func() {
			err := l.SaveTournament(ctx, Tournament{
				Event:     event,
				Roster:    []rating.EntrantInput{{ID: "f1", Rating: "A24"}, {ID: "f2"}},
				CreatedAt: at,
			})
			So(err, ShouldBeNil)

			ts, err := l.Tournaments(ctx)
			So(err, ShouldBeNil)
			var found *Tournament
			for i := range ts {
				if ts[i].Event == event {
					found = &ts[i]
				}
			}
			So(found, ShouldNotBeNil)
			So(found.Roster, ShouldHaveLength, 2)
			So(found.Roster[0].Rating, ShouldEqual, "A24")
		})

		Convey("Bouts are appended and returned in index order", func() {
			So(l.AppendBouts(ctx, event, []rating.Bout{
				{Index: 1, EntrantA: "f2", EntrantB: "f3", ScoreA: 5, ScoreB: 1, Source: "Pool 1", PoolID: "p1", Timestamp: at},
				{Index: 0, EntrantA: "f1", EntrantB: "f2", ScoreA: 5, ScoreB: 3, Source: "Pool 1", PoolID: "p1", Timestamp: at},
			}), ShouldBeNil)

			got, err := l.Bouts(ctx, event)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].Index, ShouldEqual, 0)
			So(got[1].EntrantB, ShouldEqual, "f3")
			So(got[1].PoolID, ShouldEqual, "p1")

			Convey("And a reused index is rejected without partial writes", func() {
				err := l.AppendBouts(ctx, event, []rating.Bout{
					{Index: 2, EntrantA: "f1", EntrantB: "f3", ScoreA: 5, ScoreB: 4, Source: rating.SourceDirect, Timestamp: at},
					{Index: 1, EntrantA: "f1", EntrantB: "f3", ScoreA: 5, ScoreB: 4, Source: rating.SourceDirect, Timestamp: at},
				})
				So(errors.Is(err, ErrDuplicateBout), ShouldBeTrue)
				So(errs.IsValidation(err), ShouldBeTrue)

				got, err := l.Bouts(ctx, event)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
			})
		})

		Convey("Brackets are saved, loaded and deleted", func() {
			b := testBracket(t, event)
			So(l.SaveBracket(ctx, event, b), ShouldBeNil)

			loaded, err := l.LoadBracket(ctx, event)
			So(err, ShouldBeNil)
			So(loaded.Size, ShouldEqual, 4)
			So(loaded.ByeCount, ShouldEqual, 1)
			So(len(loaded.Rounds), ShouldEqual, len(b.Rounds))

			So(l.DeleteBracket(ctx, event), ShouldBeNil)
			_, err = l.LoadBracket(ctx, event)
			So(errs.IsNotFound(err), ShouldBeTrue)
			So(errs.IsNotFound(l.DeleteBracket(ctx, event)), ShouldBeTrue)
		})

		Convey("An empty event name is rejected", func() {
			err := l.AppendBouts(ctx, " ", nil)
			So(errors.Is(err, ErrEmptyEvent), ShouldBeTrue)
		})
	})
}

func TestMemoryLedger(t *testing.T) {
	runLedgerContract(t, "memory", NewMemory())
}

func TestMemoryLedgerIsolation(t *testing.T) {
	Convey("Given a bracket stored in memory", t, func() {
		ctx := context.Background()
		l := NewMemory()
		b := testBracket(t, "Iso")
		So(l.SaveBracket(ctx, "Iso", b), ShouldBeNil)

		Convey("Mutating the caller's copy does not change the stored one", func() {
			b.Size = 64
			loaded, err := l.LoadBracket(ctx, "Iso")
			So(err, ShouldBeNil)
			So(loaded.Size, ShouldEqual, 4)
		})
	})
}

func TestPostgresLedger(t *testing.T) {
	dsn := os.Getenv("PISTE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PISTE_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pg, err := OpenPostgres(ctx, dsn, WithMaxConns(4))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer pg.Close()
	runLedgerContract(t, "postgres", pg)
}
