package simulate

import (
	"testing"

	"github.com/okian/piste/internal/domain/bracket"
	. "github.com/smartystreets/goconvey/convey"
)

func field(ids ...string) []bracket.Competitor {
	out := make([]bracket.Competitor, len(ids))
	for i, id := range ids {
		out[i] = bracket.Competitor{ID: id, Seed: i + 1}
	}
	return out
}

func strengths(m map[string]float64) func(string) float64 {
	return func(id string) float64 { return m[id] }
}

func TestRun(t *testing.T) {
	Convey("Given two entrants of strength 10 and 1", t, func() {
		sim := New(WithSeed(7))
		p := sim.Run(field("strong", "weak"), strengths(map[string]float64{"strong": 10, "weak": 1}), 20000)

		Convey("Then the strong entrant wins more than 80 percent", func() {
			So(p.Results[0].Competitor.ID, ShouldEqual, "strong")
			So(p.Results[0].Champion, ShouldBeGreaterThan, 80)
			So(p.Results[0].Champion+p.Results[1].Champion, ShouldAlmostEqual, 100, 0.11)
			So(p.Rounds, ShouldResemble, []string{"Final", ChampionLabel})
			So(p.BracketSize, ShouldEqual, 2)
		})
	})

	Convey("Given five entrants", t, func() {
		sim := New(WithSeed(1), WithTrials(2000))
		p := sim.Run(field("a", "b", "c", "d", "e"), strengths(map[string]float64{"a": 5, "b": 4, "c": 3, "d": 2, "e": 1}), 0)

		Convey("Then columns follow the bracket rounds", func() {
			So(p.Trials, ShouldEqual, 2000)
			So(p.BracketSize, ShouldEqual, 8)
			So(p.Rounds, ShouldResemble, []string{"Table of 8", "Semifinal", "Final", ChampionLabel})
		})

		Convey("Then a bye is not counted as a first round win", func() {
			for _, r := range p.Results {
				switch r.Competitor.ID {
				case "a", "b", "c":
					So(r.Advancement[0], ShouldEqual, 0)
				case "d", "e":
					So(r.Advancement[0], ShouldBeGreaterThan, 0)
				}
			}
		})

		Convey("Then championship percentages sum to one hundred", func() {
			total := 0.0
			for _, r := range p.Results {
				total += r.Champion
				So(r.Champion, ShouldEqual, r.Advancement[len(r.Advancement)-1])
			}
			So(total, ShouldAlmostEqual, 100, 0.3)
		})

		Convey("Then rows are ordered by championship percentage", func() {
			for i := 1; i < len(p.Results); i++ {
				So(p.Results[i-1].Champion, ShouldBeGreaterThanOrEqualTo, p.Results[i].Champion)
			}
		})

		Convey("Then the same seed reproduces the projection", func() {
			again := sim.Run(field("a", "b", "c", "d", "e"), strengths(map[string]float64{"a": 5, "b": 4, "c": 3, "d": 2, "e": 1}), 0)
			So(again, ShouldResemble, p)
		})
	})

	Convey("Given no entrants", t, func() {
		p := New().Run(nil, strengths(nil), 100)
		So(p.Note, ShouldEqual, "no entrants")
		So(p.Results, ShouldBeEmpty)
	})

	Convey("Given a single entrant", t, func() {
		p := New().Run(field("solo"), strengths(map[string]float64{"solo": 2}), 50)
		So(p.Results[0].Champion, ShouldEqual, 100)
		So(p.Results[0].Advancement, ShouldResemble, []float64{0})
	})

	Convey("Given zero strengths", t, func() {
		p := New(WithSeed(3)).Run(field("x", "y"), strengths(map[string]float64{}), 4000)
		So(p.Results[0].Champion, ShouldBeBetween, 40, 60)
	})
}
