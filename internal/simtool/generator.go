package simtool

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/okian/piste/internal/domain/rating"
)

// Generation defaults.
const (
	DefaultEntrants = 24
	DefaultPoolSize = 6
	TouchTarget     = 5
	BracketTarget   = 15
)

var ratingLetters = []string{"A", "A", "B", "B", "C", "C", "C", "D", "D", "E", "U", "U"}

// Generator builds synthetic rosters and pool results. Entrants get a hidden
// strength around their rating prior; bouts are drawn from it.
type Generator struct {
	faker  *gofakeit.Faker
	seed   uint64
	priors rating.PriorTable
	hidden map[string]float64
}

// NewGenerator creates a generator. The same seed yields the same scenario.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		faker:  gofakeit.New(seed),
		seed:   seed,
		priors: rating.NewPriorTable(rating.DefaultTiers(), rating.DefaultUnratedStrength),
		hidden: make(map[string]float64),
	}
}

// Scenario generates an event with entrants split into pools of at most
// poolSize and every pool fenced to TouchTarget.
func (g *Generator) Scenario(event string, entrants, poolSize int) (Scenario, error) {
	if event == "" {
		return Scenario{}, ErrEmptyEvent
	}
	if entrants < 2 {
		return Scenario{}, fmt.Errorf("%w: %d", ErrNoEntrants, entrants)
	}
	if poolSize < 2 {
		return Scenario{}, fmt.Errorf("%w: %d", ErrPoolSize, poolSize)
	}
	roster := g.Roster(event, entrants)
	return Scenario{
		Event:  event,
		Seed:   g.seed,
		Roster: roster,
		Pools:  g.Pools(roster, poolSize),
	}, nil
}

// Roster creates n entrants. Ids are name-based UUIDs derived from the event
// and position, so regenerating an event keeps its ids.
func (g *Generator) Roster(event string, n int) []rating.EntrantInput {
	out := make([]rating.EntrantInput, n)
	for i := range out {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(event+"/"+strconv.Itoa(i))).String()[:8]
		label := g.faker.RandomString(ratingLetters)
		if label != "U" {
			label += strconv.Itoa(g.faker.Number(18, 25))
		}
		out[i] = rating.EntrantInput{
			ID:        id,
			FirstName: g.faker.FirstName(),
			LastName:  g.faker.LastName(),
			Club:      g.faker.City(),
			Rating:    label,
			Event:     event,
		}
		g.hidden[id] = g.priors.Strength(label) * g.faker.Float64Range(0.5, 2)
	}
	return out
}

// Pools distributes the roster over pools in serpentine order of rating
// prior and fences each pool.
func (g *Generator) Pools(roster []rating.EntrantInput, poolSize int) []rating.PoolSheet {
	count := (len(roster) + poolSize - 1) / poolSize
	order := make([]rating.EntrantInput, len(roster))
	copy(order, roster)
	sort.SliceStable(order, func(i, j int) bool {
		return g.priors.Strength(order[i].Rating) > g.priors.Strength(order[j].Rating)
	})

	members := make([][]string, count)
	for i, e := range order {
		p := i % count
		if (i/count)%2 == 1 {
			p = count - 1 - p
		}
		members[p] = append(members[p], e.ID)
	}

	sheets := make([]rating.PoolSheet, 0, count)
	for i, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sheets = append(sheets, g.fence(i+1, ids))
	}
	return sheets
}

func (g *Generator) fence(number int, ids []string) rating.PoolSheet {
	n := len(ids)
	scores := make([][]*int, n)
	for i := range scores {
		scores[i] = make([]*int, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w, l := g.Bout(ids[i], ids[j], TouchTarget)
			if w == ids[i] {
				scores[i][j], scores[j][i] = intPtr(TouchTarget), intPtr(l)
			} else {
				scores[i][j], scores[j][i] = intPtr(l), intPtr(TouchTarget)
			}
		}
	}
	return rating.PoolSheet{
		ID:       "pool-" + strconv.Itoa(number),
		Number:   number,
		Entrants: ids,
		Scores:   scores,
	}
}

// Bout draws a winner between a and b with Bradley-Terry odds on their hidden
// strengths and returns the winner with the loser's touches below target.
func (g *Generator) Bout(a, b string, target int) (winner string, loserScore int) {
	return g.BoutWith(a, b, g.hidden[a], g.hidden[b], target)
}

// BoutWith is Bout with explicit strengths.
func (g *Generator) BoutWith(a, b string, sa, sb float64, target int) (winner string, loserScore int) {
	p := rating.WinProbability(sa, sb)
	winner = b
	if g.faker.Float64() < p {
		winner = a
	}
	return winner, g.faker.Number(0, target-1)
}

// Hidden returns an entrant's drawn strength, 0 when unknown.
func (g *Generator) Hidden(id string) float64 { return g.hidden[id] }

func intPtr(v int) *int { return &v }
