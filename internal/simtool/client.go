package simtool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// SubmitConfig points Submit at a running server.
type SubmitConfig struct {
	BaseURL string
	Workers int
	Timeout time.Duration
}

// SubmitStats counts what the server did with a scenario.
type SubmitStats struct {
	Created        bool
	PoolsSubmitted int
	PoolsAccepted  int
	PoolsDuplicate int
	PoolsFailed    int
	Ranking        rating.Ranking
	Duration       time.Duration
}

type httpClient struct {
	client *http.Client
	base   string
}

func newHTTPClient(cfg SubmitConfig) *httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpClient{client: &http.Client{Timeout: timeout}, base: cfg.BaseURL}
}

func (c *httpClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

// Submit sends a scenario to a running server: health check, tournament,
// pools over a worker pool, then reads back the ranking. An existing
// tournament is reused so a scenario can be resubmitted; its pools then come
// back as duplicates.
func Submit(ctx context.Context, cfg SubmitConfig, sc Scenario) (SubmitStats, error) {
	if err := sc.Validate(); err != nil {
		return SubmitStats{}, err
	}
	log := logger.Get().Named("submit")
	start := time.Now()
	c := newHTTPClient(cfg)
	eventPath := "/api/v1/tournaments/" + url.PathEscape(sc.Event)

	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return SubmitStats{}, fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return SubmitStats{}, fmt.Errorf("%w: health check status %d", ErrServerReply, status)
	}

	var stats SubmitStats
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/tournaments", map[string]any{
		"event":    sc.Event,
		"entrants": sc.Roster,
	})
	switch {
	case err != nil:
		return SubmitStats{}, fmt.Errorf("create tournament: %w", err)
	case status == http.StatusCreated:
		stats.Created = true
	default:
		probe, _, perr := c.do(ctx, http.MethodGet, eventPath+"/ranking", nil)
		if perr != nil || probe != http.StatusOK {
			return SubmitStats{}, fmt.Errorf("%w: create tournament status %d: %s", ErrServerReply, status, body)
		}
		log.Info(ctx, "tournament exists, reusing", logger.String("event", sc.Event))
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	var accepted, duplicate, failed int64
	jobs := make(chan rating.PoolSheet, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sheet := range jobs {
				status, _, err := c.do(ctx, http.MethodPost, eventPath+"/pools", sheet)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "pool submission failed", logger.Int("pool", sheet.Number), logger.Error(err))
				case status == http.StatusCreated:
					atomic.AddInt64(&accepted, 1)
				case status == http.StatusOK:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "pool rejected", logger.Int("pool", sheet.Number), logger.Int("status", status))
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, sheet := range sc.Pools {
			select {
			case <-ctx.Done():
				return
			case jobs <- sheet:
			}
		}
	}()
	wg.Wait()

	stats.PoolsSubmitted = len(sc.Pools)
	stats.PoolsAccepted = int(accepted)
	stats.PoolsDuplicate = int(duplicate)
	stats.PoolsFailed = int(failed)

	status, body, err = c.do(ctx, http.MethodGet, eventPath+"/ranking", nil)
	if err != nil {
		return stats, fmt.Errorf("fetch ranking: %w", err)
	}
	if status != http.StatusOK {
		return stats, fmt.Errorf("%w: ranking status %d", ErrServerReply, status)
	}
	if err := json.Unmarshal(body, &stats.Ranking); err != nil {
		return stats, fmt.Errorf("decode ranking: %w", err)
	}
	stats.Duration = time.Since(start)

	log.Info(ctx, "scenario submitted",
		logger.String("event", sc.Event),
		logger.Int("accepted", stats.PoolsAccepted),
		logger.Int("duplicate", stats.PoolsDuplicate),
		logger.Int("failed", stats.PoolsFailed),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}
