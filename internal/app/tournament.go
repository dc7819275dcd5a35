package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/dedupe"
	"github.com/okian/piste/internal/domain/model"
	"github.com/okian/piste/internal/domain/pool"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/internal/domain/simulate"
	"github.com/okian/piste/pkg/errs"
	"github.com/okian/piste/pkg/logger"
	"github.com/okian/piste/pkg/metrics"
)

// Tournament is the engine of one event. All access is serialized by mu.
type Tournament struct {
	mu sync.Mutex

	event   string
	store   *rating.Store
	bracket *bracket.Bracket
	pools   map[string][]pool.Result
	poolIDs []string

	svc *Service
	log logger.Logger
}

// Event returns the event name.
func (t *Tournament) Event() string { return t.event }

// Summary describes the tournament for listings.
func (t *Tournament) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	sum := Summary{
		Event:    t.event,
		Entrants: len(t.store.Entrants()),
		Bouts:    t.store.BoutCount(),
		Pools:    len(t.poolIDs),
	}
	if t.bracket != nil {
		sum.BracketStatus = t.bracket.Status
	}
	return sum
}

func (t *Tournament) boutCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.BoutCount()
}

// restore replays a persisted ledger and bracket. Called once before the
// tournament is published in the registry.
func (t *Tournament) restore(ctx context.Context, bouts []rating.Bout) error {
	if err := t.store.Replay(bouts); err != nil {
		return err
	}
	for _, sheet := range sheetsFromBouts(bouts) {
		t.addPool(sheet)
		t.svc.deduper.SeenAndRecord(ctx, dedupe.Key(t.event, sheet.ID))
	}
	b, err := t.svc.ledger.LoadBracket(ctx, t.event)
	switch {
	case err == nil:
		t.bracket = b
	case !errs.IsNotFound(err):
		return err
	}
	fit := t.store.LastFit()
	t.log.Info(ctx, "ledger replayed",
		logger.Int("bouts", len(bouts)),
		logger.Int("pools", len(t.poolIDs)),
		logger.Int("iterations", fit.Iterations),
		logger.Bool("bracket", t.bracket != nil),
	)
	return nil
}

func (t *Tournament) addPool(sheet rating.PoolSheet) {
	if _, ok := t.pools[sheet.ID]; !ok {
		t.poolIDs = append(t.poolIDs, sheet.ID)
	}
	t.pools[sheet.ID] = pool.Results(sheet.Scores, sheet.Entrants)
}

// sheetsFromBouts rebuilds pool matrices from logged pool bouts.
func sheetsFromBouts(bouts []rating.Bout) []rating.PoolSheet {
	type acc struct {
		sheet rating.PoolSheet
		pos   map[string]int
		cells map[[2]int]int
	}
	var order []string
	byID := make(map[string]*acc)
	for _, b := range bouts {
		if b.PoolID == "" {
			continue
		}
		a, ok := byID[b.PoolID]
		if !ok {
			a = &acc{sheet: rating.PoolSheet{ID: b.PoolID}, pos: map[string]int{}, cells: map[[2]int]int{}}
			_, _ = fmt.Sscanf(b.Source, "Pool %d", &a.sheet.Number)
			byID[b.PoolID] = a
			order = append(order, b.PoolID)
		}
		for _, id := range []string{b.EntrantA, b.EntrantB} {
			if _, ok := a.pos[id]; !ok {
				a.pos[id] = len(a.sheet.Entrants)
				a.sheet.Entrants = append(a.sheet.Entrants, id)
			}
		}
		i, j := a.pos[b.EntrantA], a.pos[b.EntrantB]
		a.cells[[2]int{i, j}] = b.ScoreA
		a.cells[[2]int{j, i}] = b.ScoreB
	}
	out := make([]rating.PoolSheet, 0, len(order))
	for _, id := range order {
		a := byID[id]
		n := len(a.sheet.Entrants)
		a.sheet.Scores = make([][]*int, n)
		for i := range a.sheet.Scores {
			a.sheet.Scores[i] = make([]*int, n)
		}
		for k, v := range a.cells {
			v := v
			a.sheet.Scores[k[0]][k[1]] = &v
		}
		out = append(out, a.sheet)
	}
	return out
}

// PoolIngest is the outcome of IngestPool.
type PoolIngest struct {
	PoolID    string           `json:"pool_id"`
	Number    int              `json:"number"`
	Bouts     int              `json:"bouts"`
	Duplicate bool             `json:"duplicate"`
	Results   []pool.Result    `json:"results,omitempty"`
	Warnings  []pool.Anomaly   `json:"warnings,omitempty"`
	Fit       rating.FitResult `json:"fit"`
}

// IngestPool applies a finalized pool sheet once per pool id. Sheets with
// structural errors are rejected before anything is recorded.
func (t *Tournament) IngestPool(ctx context.Context, sheet rating.PoolSheet) (PoolIngest, error) {
	const op = "service.IngestPool"
	if sheet.Number <= 0 {
		sheet.Number = 1
	}
	sheet.ID = strings.TrimSpace(sheet.ID)
	if sheet.ID == "" {
		sheet.ID = fmt.Sprintf("pool-%d", sheet.Number)
	}
	res := PoolIngest{PoolID: sheet.ID, Number: sheet.Number}

	anomalies := pool.Check(sheet.Scores, sheet.Entrants, t.svc.poolTarget)
	if pool.HasErrors(anomalies) {
		msgs := make([]string, 0, len(anomalies))
		for _, a := range anomalies {
			if a.Level == pool.LevelError {
				msgs = append(msgs, a.Message)
			}
		}
		return res, errs.Validationf(op, "%w: %s", ErrInvalidPool, strings.Join(msgs, "; "))
	}
	res.Warnings = anomalies

	t.mu.Lock()
	defer t.mu.Unlock()

	key := dedupe.Key(t.event, sheet.ID)
	if t.svc.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordPoolDuplicate()
		t.log.Info(ctx, "duplicate pool ignored", logger.String("pool", sheet.ID))
		res.Duplicate = true
		res.Results = t.pools[sheet.ID]
		return res, nil
	}

	// The sheet is applied to a staged copy that replaces the live store only
	// once its bouts are in the ledger.
	staged := t.store.Clone()
	before := staged.BoutCount()
	start := time.Now()
	added, err := staged.IngestMatrix(sheet)
	elapsed := time.Since(start)
	if err != nil {
		t.svc.deduper.Unrecord(ctx, key)
		return res, errs.Wrap(op, err)
	}
	if err := t.svc.ledger.AppendBouts(ctx, t.event, staged.Ledger()[before:]); err != nil {
		t.svc.deduper.Unrecord(ctx, key)
		t.log.Error(ctx, "persisting pool bouts failed", logger.String("pool", sheet.ID), logger.Error(err))
		return res, errs.Wrap(op, err)
	}
	t.store = staged
	t.recordFit(ctx, elapsed, added > 0)

	t.addPool(sheet)
	res.Bouts = added
	res.Results = t.pools[sheet.ID]
	res.Fit = t.store.LastFit()

	metrics.RecordPoolIngested()
	metrics.RecordBoutsIngested("pool", added)
	t.log.Info(ctx, "pool ingested",
		logger.String("pool", sheet.ID),
		logger.Int("number", sheet.Number),
		logger.Int("bouts", added),
		logger.Int("warnings", len(anomalies)),
	)
	t.svc.notify(ctx, model.NewNotification(model.PoolIngested, t.event, map[string]any{
		"pool_id": sheet.ID,
		"number":  sheet.Number,
		"bouts":   added,
	}))
	return res, nil
}

// AddBout applies one direct bout.
func (t *Tournament) AddBout(ctx context.Context, a, b string, scoreA, scoreB int) (rating.BoutOutcome, error) {
	const op = "service.AddBout"
	t.mu.Lock()
	defer t.mu.Unlock()

	staged := t.store.Clone()
	start := time.Now()
	out, err := staged.AddBout(a, b, scoreA, scoreB, rating.SourceDirect)
	elapsed := time.Since(start)
	if err != nil {
		return rating.BoutOutcome{}, errs.Wrap(op, err)
	}
	if err := t.svc.ledger.AppendBouts(ctx, t.event, []rating.Bout{out.Bout}); err != nil {
		t.log.Error(ctx, "persisting bout failed", logger.Int("index", out.Bout.Index), logger.Error(err))
		return rating.BoutOutcome{}, errs.Wrap(op, err)
	}
	t.store = staged
	t.recordFit(ctx, elapsed, true)
	metrics.RecordBoutsIngested("direct", 1)
	t.svc.notify(ctx, model.NewNotification(model.BoutAdded, t.event, out))
	return out, nil
}

func (t *Tournament) recordFit(ctx context.Context, elapsed time.Duration, refitted bool) {
	if !refitted {
		return
	}
	fit := t.store.LastFit()
	metrics.RecordFit(fit.Iterations, fit.Converged, float64(elapsed.Microseconds())/1000)
	metrics.RecordSnapshot()
	if !fit.Converged {
		t.log.Warn(ctx, "fit did not converge",
			logger.Int("iterations", fit.Iterations),
			logger.Float64("max_delta", fit.MaxDelta),
		)
	}
}

// Ranking returns the current table.
func (t *Tournament) Ranking() rating.Ranking {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Ranking()
}

// Entrants returns the roster in registration order.
func (t *Tournament) Entrants() []rating.Entrant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Entrants()
}

// Pairwise compares two entrants.
func (t *Tournament) Pairwise(a, b string) (rating.Pairwise, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Pairwise(a, b)
}

// Detail returns one entrant's bouts and summaries.
func (t *Tournament) Detail(id string) (rating.EntrantDetail, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Detail(id)
}

// Trajectory returns every snapshot.
func (t *Tournament) Trajectory() []rating.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Trajectory()
}

// EntrantTrajectory returns one entrant's series.
func (t *Tournament) EntrantTrajectory(id string) ([]rating.EntrantPoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.EntrantTrajectory(id)
}

// Bouts returns the log newest first.
func (t *Tournament) Bouts() []rating.Bout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Bouts()
}

// Find looks an entrant up by id or name.
func (t *Tournament) Find(query string) (rating.Entrant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Find(query)
}

// PoolResults returns the results of every ingested pool in ingestion order.
func (t *Tournament) PoolResults() map[string][]pool.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]pool.Result, len(t.pools))
	for id, r := range t.pools {
		out[id] = append([]pool.Result(nil), r...)
	}
	return out
}

// CreateBracket builds the event's bracket. Explicit seeds win; otherwise
// pool results seed the field; otherwise the current ranking does.
func (t *Tournament) CreateBracket(ctx context.Context, seeds []string) (*bracket.Bracket, error) {
	const op = "service.CreateBracket"
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bracket != nil {
		return nil, errs.Validationf(op, "%w: %s", ErrBracketExists, t.event)
	}
	seedings, err := t.seedings(seeds)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	b, err := t.svc.builder.Build(t.event, seedings)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	if err := t.svc.ledger.SaveBracket(ctx, t.event, b); err != nil {
		return nil, errs.Wrap(op, err)
	}
	t.bracket = b
	metrics.RecordBracketCreated()
	t.log.Info(ctx, "bracket created",
		logger.Int("size", b.Size),
		logger.Int("entrants", b.EntrantCount),
		logger.Int("byes", b.ByeCount),
	)
	t.svc.notify(ctx, model.NewNotification(model.BracketCreated, t.event, map[string]any{
		"size":     b.Size,
		"entrants": b.EntrantCount,
		"byes":     b.ByeCount,
	}))
	return cloneBracket(b)
}

func (t *Tournament) seedings(ids []string) ([]bracket.Seeding, error) {
	const op = "service.seedings"
	stats := make(map[string]pool.Result)
	var order []string
	if len(t.poolIDs) > 0 {
		all := make([][]pool.Result, 0, len(t.poolIDs))
		for _, id := range t.poolIDs {
			all = append(all, t.pools[id])
		}
		for _, r := range pool.Seedings(all...) {
			stats[r.ID] = r
			order = append(order, r.ID)
		}
	}
	switch {
	case len(ids) > 0:
		order = ids
	case len(order) == 0:
		for _, e := range t.store.Ranked() {
			order = append(order, e.ID)
		}
	}

	out := make([]bracket.Seeding, 0, len(order))
	for _, id := range order {
		e, err := t.store.Entrant(strings.TrimSpace(id))
		if err != nil {
			return nil, errs.Wrap(op, err)
		}
		s := bracket.Seeding{Competitor: competitor(e)}
		if r, ok := stats[e.ID]; ok {
			s.Pool = &bracket.PoolStats{
				Victories:       r.Victories,
				Bouts:           r.Bouts,
				TouchesScored:   r.TouchesScored,
				TouchesReceived: r.TouchesReceived,
				Indicator:       r.Indicator,
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func competitor(e rating.Entrant) bracket.Competitor {
	return bracket.Competitor{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Club:      e.Club,
		Rating:    e.Rating,
	}
}

// Bracket returns a copy of the event's bracket.
func (t *Tournament) Bracket() (*bracket.Bracket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bracket == nil {
		return nil, errs.NotFoundf("service.Bracket", "%w: %s", ErrNoBracket, t.event)
	}
	return cloneBracket(t.bracket)
}

// DeleteBracket removes a bracket that has no reported results.
func (t *Tournament) DeleteBracket(ctx context.Context) error {
	const op = "service.DeleteBracket"
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bracket == nil {
		return errs.NotFoundf(op, "%w: %s", ErrNoBracket, t.event)
	}
	if err := bracket.CanDelete(t.bracket); err != nil {
		return errs.Wrap(op, err)
	}
	if err := t.svc.ledger.DeleteBracket(ctx, t.event); err != nil && !errs.IsNotFound(err) {
		return errs.Wrap(op, err)
	}
	t.bracket = nil
	metrics.RecordBracketDeleted()
	t.log.Info(ctx, "bracket deleted")
	t.svc.notify(ctx, model.NewNotification(model.BracketDeleted, t.event, nil))
	return nil
}

// ReportBout records a bracket result and advances the winner.
func (t *Tournament) ReportBout(ctx context.Context, boutID string, top, bottom int, sig bracket.Signatures) (bracket.Report, error) {
	const op = "service.ReportBout"
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bracket == nil {
		return bracket.Report{}, errs.NotFoundf(op, "%w: %s", ErrNoBracket, t.event)
	}

	work, err := cloneBracket(t.bracket)
	if err != nil {
		return bracket.Report{}, errs.Wrap(op, err)
	}
	rep, err := t.svc.advancer.Report(work, boutID, top, bottom, sig)
	if err != nil {
		metrics.RecordReportRejected(rejectReason(err))
		t.log.Warn(ctx, "report rejected", logger.String("bout", boutID), logger.Error(err))
		return bracket.Report{}, errs.Wrap(op, err)
	}
	if err := t.svc.ledger.SaveBracket(ctx, t.event, work); err != nil {
		return bracket.Report{}, errs.Wrap(op, err)
	}
	t.bracket = work

	metrics.RecordBoutReported()
	t.log.Info(ctx, "bout reported",
		logger.String("bout", boutID),
		logger.String("round", rep.RoundName),
		logger.String("winner", rep.Winner.ID),
	)
	t.svc.notify(ctx, model.NewNotification(model.BoutCompleted, t.event, rep))
	if rep.BracketCompleted {
		metrics.RecordBracketCompleted()
		t.log.Info(ctx, "bracket completed", logger.String("champion", rep.Winner.ID))
		t.svc.notify(ctx, model.NewNotification(model.BracketCompleted, t.event, work.Standings))
	}
	return rep, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, bracket.ErrBoutNotFound):
		return "not_found"
	case errors.Is(err, bracket.ErrBoutNotPending):
		return "not_pending"
	case errors.Is(err, bracket.ErrSlotsIncomplete):
		return "slots_incomplete"
	case errors.Is(err, bracket.ErrEqualScores):
		return "equal_scores"
	case errors.Is(err, bracket.ErrIllegalScore):
		return "illegal_score"
	default:
		return "other"
	}
}

// AssignReferee puts a referee on a pending bout.
func (t *Tournament) AssignReferee(ctx context.Context, boutID string, ref bracket.RefereeAssignment) (bracket.Bout, error) {
	const op = "service.AssignReferee"
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bracket == nil {
		return bracket.Bout{}, errs.NotFoundf(op, "%w: %s", ErrNoBracket, t.event)
	}
	work, err := cloneBracket(t.bracket)
	if err != nil {
		return bracket.Bout{}, errs.Wrap(op, err)
	}
	bt, err := t.svc.advancer.AssignReferee(work, boutID, ref)
	if err != nil {
		return bracket.Bout{}, errs.Wrap(op, err)
	}
	if err := t.svc.ledger.SaveBracket(ctx, t.event, work); err != nil {
		return bracket.Bout{}, errs.Wrap(op, err)
	}
	t.bracket = work
	t.svc.notify(ctx, model.NewNotification(model.RefereeAssigned, t.event, map[string]any{
		"bout_id":    bt.ID,
		"referee_id": ref.RefereeID,
		"strip":      ref.Strip,
	}))
	return bt, nil
}

func (t *Tournament) refereeBouts(refereeID string) []bracket.RefereeBout {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bracket == nil {
		return nil
	}
	return t.bracket.RefereeBouts(refereeID)
}

// Simulate projects the bracket (or, before one exists, the ranking order)
// with current strengths. trials <= 0 uses the configured default.
func (t *Tournament) Simulate(ctx context.Context, trials int) (simulate.Projection, error) {
	const op = "service.Simulate"
	if trials > t.svc.maxTrials {
		return simulate.Projection{}, errs.Validationf(op, "%w: %d > %d", ErrTooManyTrials, trials, t.svc.maxTrials)
	}
	t.mu.Lock()
	var field []bracket.Competitor
	if t.bracket != nil {
		field = t.bracket.Competitors()
	} else {
		for i, e := range t.store.Ranked() {
			c := competitor(e)
			c.Seed = i + 1
			field = append(field, c)
		}
	}
	strengths := make(map[string]float64, len(field))
	for _, c := range field {
		strengths[c.ID] = t.store.Strength(c.ID)
	}
	t.mu.Unlock()

	start := time.Now()
	p := t.svc.simulator.Run(field, func(id string) float64 { return strengths[id] }, trials)
	metrics.RecordSimulation(float64(time.Since(start).Microseconds()) / 1000)
	if p.Note != "" {
		t.log.Warn(ctx, "simulation degraded", logger.String("note", p.Note))
	}
	return p, nil
}

func cloneBracket(b *bracket.Bracket) (*bracket.Bracket, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("copy bracket: %w", err)
	}
	var out bracket.Bracket
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy bracket: %w", err)
	}
	return &out, nil
}
