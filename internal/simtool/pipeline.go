package simtool

import (
	"context"
	"fmt"

	service "github.com/okian/piste/internal/app"
	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/logger"
)

// RunOptions selects the stages of an offline run.
type RunOptions struct {
	// PlayBracket builds the bracket from pool results and fences it out.
	PlayBracket bool
	// Trials > 0 adds a Monte Carlo projection.
	Trials int
	// Seed fixes bracket bouts and the projection.
	Seed uint64
}

// Result is everything an offline run produced.
type Result struct {
	Event      string
	Ranking    rating.Ranking
	Trajectory []rating.Snapshot
	Entrants   []rating.Entrant
	Pools      []service.PoolIngest
	Bracket    *bracket.Bracket
	Projection *simulate.Projection
}

// Run feeds a scenario through an in-process service: roster, pools, then
// optionally a bracket played out on fitted strengths and a projection.
func Run(ctx context.Context, sc Scenario, opts RunOptions) (Result, error) {
	if err := sc.Validate(); err != nil {
		return Result{}, err
	}
	log := logger.Get().Named("simtool")

	svc := service.New(
		service.WithWorkerCount(1),
		service.WithLogger(log),
		service.WithSimulationOptions(simulate.WithSeed(opts.Seed)),
	)
	if err := svc.Start(ctx); err != nil {
		return Result{}, fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	t, err := svc.CreateTournament(ctx, sc.Event, sc.Roster)
	if err != nil {
		return Result{}, fmt.Errorf("create tournament: %w", err)
	}

	res := Result{Event: sc.Event}
	for _, sheet := range sc.Pools {
		in, err := t.IngestPool(ctx, sheet)
		if err != nil {
			return Result{}, fmt.Errorf("ingest pool %d: %w", sheet.Number, err)
		}
		res.Pools = append(res.Pools, in)
	}
	log.Info(ctx, "pools ingested", logger.Int("pools", len(res.Pools)), logger.Int("entrants", len(sc.Roster)))

	if opts.PlayBracket {
		if _, err := t.CreateBracket(ctx, nil); err != nil {
			return Result{}, fmt.Errorf("create bracket: %w", err)
		}
		if err := playOut(ctx, t, NewGenerator(opts.Seed)); err != nil {
			return Result{}, err
		}
		if res.Bracket, err = t.Bracket(); err != nil {
			return Result{}, err
		}
	}

	if opts.Trials > 0 {
		p, err := t.Simulate(ctx, opts.Trials)
		if err != nil {
			return Result{}, fmt.Errorf("simulate: %w", err)
		}
		res.Projection = &p
	}

	res.Ranking = t.Ranking()
	res.Trajectory = t.Trajectory()
	res.Entrants = t.Entrants()
	return res, nil
}

// playOut reports every live bout until the final is decided. Winners are
// drawn on the tournament's fitted strengths.
func playOut(ctx context.Context, t *service.Tournament, g *Generator) error {
	strengths := make(map[string]float64)
	for _, e := range t.Entrants() {
		strengths[e.ID] = e.Strength
	}
	for {
		b, err := t.Bracket()
		if err != nil {
			return err
		}
		if b.Status == bracket.StateCompleted {
			return nil
		}
		played := 0
		for _, rd := range b.Rounds {
			for _, bt := range rd.Bouts {
				top, okTop := bt.Top.Occupant()
				bottom, okBottom := bt.Bottom.Occupant()
				if bt.Status != bracket.StatusPending || !okTop || !okBottom {
					continue
				}
				winner, loserScore := g.BoutWith(top.ID, bottom.ID, strengths[top.ID], strengths[bottom.ID], BracketTarget)
				ts, bs := BracketTarget, loserScore
				if winner == bottom.ID {
					ts, bs = loserScore, BracketTarget
				}
				if _, err := t.ReportBout(ctx, bt.ID, ts, bs, bracket.Signatures{}); err != nil {
					return fmt.Errorf("report %s: %w", bt.ID, err)
				}
				played++
			}
		}
		if played == 0 {
			return fmt.Errorf("%w: %s", ErrStalled, t.Event())
		}
	}
}
