package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/piste/internal/domain/bracket"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/errs"
)

//go:embed schema.sql
var schema embed.FS

const uniqueViolation = "23505"

// Postgres is a Ledger backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and optionally migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	o := pgOptions{migrate: true}
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	if o.maxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = o.maxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	p := &Postgres{pool: pool}
	if o.migrate {
		if err := p.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// SaveTournament implements Ledger.
func (p *Postgres) SaveTournament(ctx context.Context, t Tournament) error {
	const op = "repository.SaveTournament"
	if err := checkEvent(op, t.Event); err != nil {
		return err
	}
	roster, err := json.Marshal(t.Roster)
	if err != nil {
		return errs.Wrap(op, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO tournaments(event, roster, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event) DO UPDATE SET roster = EXCLUDED.roster
	`, t.Event, roster, t.CreatedAt)
	return errs.Wrap(op, err)
}

// Tournaments implements Ledger.
func (p *Postgres) Tournaments(ctx context.Context) ([]Tournament, error) {
	const op = "repository.Tournaments"
	rows, err := p.pool.Query(ctx, `SELECT event, roster, created_at FROM tournaments ORDER BY created_at, event`)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	defer rows.Close()
	var out []Tournament
	for rows.Next() {
		var (
			t      Tournament
			roster []byte
		)
		if err := rows.Scan(&t.Event, &roster, &t.CreatedAt); err != nil {
			return nil, errs.Wrap(op, err)
		}
		if err := json.Unmarshal(roster, &t.Roster); err != nil {
			return nil, errs.Wrap(op, fmt.Errorf("decode roster of %s: %w", t.Event, err))
		}
		out = append(out, t)
	}
	return out, errs.Wrap(op, rows.Err())
}

// AppendBouts implements Ledger. The batch runs in one transaction.
func (p *Postgres) AppendBouts(ctx context.Context, event string, bouts []rating.Bout) error {
	const op = "repository.AppendBouts"
	if err := checkEvent(op, event); err != nil {
		return err
	}
	if len(bouts) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range bouts {
			batch.Queue(`
				INSERT INTO bouts(event, idx, entrant_a, entrant_b, score_a, score_b, source, pool_id, fenced_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, event, b.Index, b.EntrantA, b.EntrantB, b.ScoreA, b.ScoreB, b.Source, b.PoolID, b.Timestamp)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errs.Validationf(op, "%w: %s", ErrDuplicateBout, event)
	}
	return errs.Wrap(op, err)
}

// Bouts implements Ledger.
func (p *Postgres) Bouts(ctx context.Context, event string) ([]rating.Bout, error) {
	const op = "repository.Bouts"
	rows, err := p.pool.Query(ctx, `
		SELECT idx, entrant_a, entrant_b, score_a, score_b, source, pool_id, fenced_at
		  FROM bouts WHERE event = $1 ORDER BY idx
	`, event)
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rating.Bout, error) {
		var b rating.Bout
		err := row.Scan(&b.Index, &b.EntrantA, &b.EntrantB, &b.ScoreA, &b.ScoreB, &b.Source, &b.PoolID, &b.Timestamp)
		return b, err
	})
	return out, errs.Wrap(op, err)
}

// SaveBracket implements Ledger.
func (p *Postgres) SaveBracket(ctx context.Context, event string, b *bracket.Bracket) error {
	const op = "repository.SaveBracket"
	if err := checkEvent(op, event); err != nil {
		return err
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return errs.Wrap(op, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO brackets(event, document) VALUES ($1, $2)
		ON CONFLICT (event) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
	`, event, doc)
	return errs.Wrap(op, err)
}

// LoadBracket implements Ledger.
func (p *Postgres) LoadBracket(ctx context.Context, event string) (*bracket.Bracket, error) {
	const op = "repository.LoadBracket"
	var doc []byte
	err := p.pool.QueryRow(ctx, `SELECT document FROM brackets WHERE event = $1`, event).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf(op, "%w: bracket for %s", ErrNotFound, event)
	}
	if err != nil {
		return nil, errs.Wrap(op, err)
	}
	var b bracket.Bracket
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, errs.Wrap(op, fmt.Errorf("decode bracket: %w", err))
	}
	return &b, nil
}

// DeleteBracket implements Ledger.
func (p *Postgres) DeleteBracket(ctx context.Context, event string) error {
	const op = "repository.DeleteBracket"
	tag, err := p.pool.Exec(ctx, `DELETE FROM brackets WHERE event = $1`, event)
	if err != nil {
		return errs.Wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf(op, "%w: bracket for %s", ErrNotFound, event)
	}
	return nil
}
