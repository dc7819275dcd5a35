package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/piste/internal/adapters/http/api"
	"github.com/okian/piste/internal/adapters/sheets"
	service "github.com/okian/piste/internal/app"
	"github.com/okian/piste/internal/domain/rating"
	"github.com/okian/piste/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const rosterJSON = `{"event":"Spring Open","entrants":[
	{"id":"a","first_name":"Ana","last_name":"Alder","rating":"A24"},
	{"id":"b","first_name":"Bo","last_name":"Birch","rating":"C23"},
	{"id":"c","first_name":"Cy","last_name":"Cedar","rating":"U"}]}`

const poolJSON = `{"id":"p1","number":1,"entrants":["a","b","c"],
	"scores":[[null,5,5],[2,null,5],[1,3,null]]}`

func newServer(t *testing.T, opts ...api.Option) (http.Handler, *service.Service) {
	t.Helper()
	svc := service.New(service.WithWorkerCount(1))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return api.NewServer(svc, svc, opts...).Handler(), svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

const base = "/api/v1/tournaments/Spring%20Open"

func TestOpsEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		h, _ := newServer(t)

		Convey("GET /healthz returns ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["status"], ShouldEqual, "ok")
		})

		Convey("GET /stats reports the service", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["started"], ShouldEqual, true)
		})

		Convey("GET /metrics exposes the registry", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "piste_")
		})

		Convey("Unknown tournaments are 404", func() {
			w := do(h, http.MethodGet, "/api/v1/tournaments/nope/ranking", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestTournamentEndpoints(t *testing.T) {
	Convey("Given a created tournament", t, func() {
		h, _ := newServer(t)
		w := do(h, http.MethodPost, "/api/v1/tournaments", rosterJSON)
		So(w.Code, ShouldEqual, http.StatusCreated)

		Convey("Creating it again is a 400", func() {
			w := do(h, http.MethodPost, "/api/v1/tournaments", rosterJSON)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Malformed JSON is a 400", func() {
			w := do(h, http.MethodPost, "/api/v1/tournaments", `{"event":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "invalid_request")
		})

		Convey("It is listed", func() {
			w := do(h, http.MethodGet, "/api/v1/tournaments", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"event":"Spring Open"`)
		})

		Convey("When a pool is posted as JSON", func() {
			w := do(h, http.MethodPost, base+"/pools", poolJSON)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody(w)["bouts"], ShouldEqual, 3.0)

			Convey("Then reposting it is acknowledged as a duplicate", func() {
				w := do(h, http.MethodPost, base+"/pools", poolJSON)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["duplicate"], ShouldEqual, true)
			})

			Convey("Then the ranking and bout log reflect it", func() {
				w := do(h, http.MethodGet, base+"/ranking", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var ranking rating.Ranking
				So(json.Unmarshal(w.Body.Bytes(), &ranking), ShouldBeNil)
				So(ranking.BoutCount, ShouldEqual, 3)
				So(ranking.Rows[0].Entrant.ID, ShouldEqual, "a")

				w = do(h, http.MethodGet, base+"/bouts", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"source":"Pool 1"`)
			})

			Convey("Then the ranking is downloadable as a workbook", func() {
				w := do(h, http.MethodGet, base+"/ranking?format=xlsx", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/vnd.openxmlformats")
				So(w.Body.Len(), ShouldBeGreaterThan, 0)
			})

			Convey("Then pairwise accepts names", func() {
				w := do(h, http.MethodGet, base+"/pairwise?a=alder&b=c", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["probability_a"], ShouldBeGreaterThan, 0.5)

				w = do(h, http.MethodGet, base+"/pairwise?a=a", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then entrant detail and trajectory are served", func() {
				w := do(h, http.MethodGet, base+"/entrants/b", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"sources"`)

				w = do(h, http.MethodGet, base+"/entrants/zzz", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)

				w = do(h, http.MethodGet, base+"/trajectory", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"label":"Pool 1"`)

				w = do(h, http.MethodGet, base+"/trajectory?entrant=a", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"points"`)
			})
		})

		Convey("A pool workbook can be uploaded", func() {
			five, two, one, three := 5, 2, 1, 3
			data, err := sheets.PoolWorkbook(rating.PoolSheet{
				Number:   2,
				Entrants: []string{"a", "b", "c"},
				Scores:   [][]*int{{nil, &five, &five}, {&two, nil, &five}, {&one, &three, nil}},
			})
			So(err, ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, base+"/pools?pool_id=wb-2", bytes.NewReader(data))
			req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody(w)["pool_id"], ShouldEqual, "wb-2")
		})

		Convey("Direct bouts are validated", func() {
			w := do(h, http.MethodPost, base+"/bouts", `{"entrant_a":"a","entrant_b":"b","score_a":15,"score_b":9}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			w = do(h, http.MethodPost, base+"/bouts", `{"entrant_a":"a","entrant_b":"b","score_a":15}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodPost, base+"/bouts", `{"entrant_a":"a","entrant_b":"x","score_a":15,"score_b":1}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)

			w = do(h, http.MethodPost, base+"/bouts", `{"entrant_a":"a","entrant_b":"a","score_a":15,"score_b":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Simulation validates n", func() {
			w := do(h, http.MethodGet, base+"/simulation?n=abc", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodGet, base+"/simulation?n=500", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["trials"], ShouldEqual, 500.0)
		})
	})
}

func TestBracketEndpoints(t *testing.T) {
	Convey("Given a tournament with a pool", t, func() {
		h, _ := newServer(t)
		So(do(h, http.MethodPost, "/api/v1/tournaments", rosterJSON).Code, ShouldEqual, http.StatusCreated)
		So(do(h, http.MethodPost, base+"/pools", poolJSON).Code, ShouldEqual, http.StatusCreated)

		w := do(h, http.MethodGet, base+"/bracket", "")
		So(w.Code, ShouldEqual, http.StatusNotFound)

		w = do(h, http.MethodPost, base+"/bracket", "")
		So(w.Code, ShouldEqual, http.StatusCreated)
		So(decodeBody(w)["size"], ShouldEqual, 4.0)

		Convey("Illegal scores are rejected", func() {
			w := do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R0-B1/report", `{"top_score":15,"bottom_score":15}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			w = do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R0-B9/report", `{"top_score":15,"bottom_score":3}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Referees are assigned and listed", func() {
			w := do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R0-B1/referee", `{"referee_id":"r7","name":"Riva","strip":"4"}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(h, http.MethodGet, "/api/v1/referees/r7/bouts", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "SPRINGOP-R0-B1")

			w = do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R0-B1/referee", `{"name":"nobody"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the bracket is played out", func() {
			w := do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R0-B1/report", `{"top_score":15,"bottom_score":12}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			w = do(h, http.MethodPost, base+"/bracket/bouts/SPRINGOP-R1-B0/report", `{"top_score":8,"bottom_score":15}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["bracket_completed"], ShouldEqual, true)

			Convey("Then standings are served", func() {
				w := do(h, http.MethodGet, base+"/bracket/standings", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"completed"`)

				w = do(h, http.MethodGet, base+"/bracket/standings?format=xlsx", "")
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then the bracket cannot be deleted", func() {
				w := do(h, http.MethodDelete, base+"/bracket", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("An untouched bracket is deleted", func() {
			w := do(h, http.MethodDelete, base+"/bracket", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			w = do(h, http.MethodPost, base+"/bracket", `{"seeds":["c","a"]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server allowing one mutating request", t, func() {
		h, _ := newServer(t, api.WithRateLimiter(api.NewIPRateLimiter(0.001, 1)))

		So(do(h, http.MethodPost, "/api/v1/tournaments", rosterJSON).Code, ShouldEqual, http.StatusCreated)

		Convey("Then the next write is throttled but reads are not", func() {
			w := do(h, http.MethodPost, base+"/bouts", `{"entrant_a":"a","entrant_b":"b","score_a":15,"score_b":9}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(do(h, http.MethodGet, base+"/ranking", "").Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("A non-positive rate disables limiting", t, func() {
		So(api.NewIPRateLimiter(0, 5), ShouldBeNil)
	})
}
