package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/game"
	"gauntlet/internal/match"
	"gauntlet/internal/metrics"
	"gauntlet/internal/runner"
	"gauntlet/internal/standings"
	"gauntlet/internal/store"
	"gauntlet/internal/tournament"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	server *Server
	store  *store.Store
	report *tournament.RoundReport
}

func setup(t *testing.T) fixture {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	set := game.NewSubmissionSet(game.RoundOracle)
	require.NoError(t, set.Add(runner.HouseBot("coop", runner.BotAlwaysCooperate)))
	require.NoError(t, set.Add(runner.HouseBot("defect", runner.BotAlwaysDefect)))
	require.NoError(t, set.Add(runner.HouseBot("tft", runner.BotTitForTat)))
	set.Freeze()

	m := metrics.New()
	r := runner.NewHouseRunner(1)
	rep, err := tournament.NewScheduler(match.NewEngine(r), r, tournament.WithObserver(m)).
		RunRound(context.Background(), "run-1", game.DefaultRoundConfig(game.RoundOracle, 1), set)
	require.NoError(t, err)
	require.NoError(t, st.SaveRound(rep, false))

	return fixture{server: NewServer(st, m.Registry(), zerolog.Nop()), store: st, report: rep}
}

func (f fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	w := setup(t).get(t, "/v1/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStandingsDefaultToLatestRun(t *testing.T) {
	f := setup(t)
	w := f.get(t, "/v1/rounds/3/standings")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		RunID       string                `json:"run_id"`
		Leaderboard standings.Leaderboard `json:"leaderboard"`
	}](t, w)
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, f.report.Digest, body.Leaderboard.ResultsDigest)
	require.Len(t, body.Leaderboard.Standings, 3)
	assert.Equal(t, 1, body.Leaderboard.Standings[0].Rank)
}

func TestMatchesListAndFilter(t *testing.T) {
	f := setup(t)

	all := decode[MatchesResponse](t, f.get(t, "/v1/rounds/3/matches?run=run-1"))
	assert.Len(t, all.Matches, 3)
	for _, m := range all.Matches {
		assert.Equal(t, game.TurnCount, m.Turns)
	}

	some := decode[MatchesResponse](t, f.get(t, "/v1/rounds/3/matches?strategy=tft"))
	assert.Len(t, some.Matches, 2)
}

func TestMatchAndPerspective(t *testing.T) {
	f := setup(t)
	id := game.MatchID(game.RoundOracle, "coop", "defect")

	w := f.get(t, "/v1/rounds/3/matches/"+id)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[game.MatchResult](t, w)
	assert.Equal(t, id, m.ID)
	assert.Len(t, m.Turns, game.TurnCount)

	w = f.get(t, "/v1/rounds/3/matches/"+id+"/as/defect")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[game.MatchView](t, w)
	assert.Equal(t, game.StrategyID("defect"), view.Self)
	assert.Equal(t, game.StrategyID("coop"), view.Opponent)
	assert.Greater(t, view.YourScore, view.OpponentScore)
}

func TestErrors(t *testing.T) {
	f := setup(t)
	id := game.MatchID(game.RoundOracle, "coop", "defect")

	cases := map[string]int{
		"/v1/rounds/9/standings":                 http.StatusBadRequest,
		"/v1/rounds/1/standings":                 http.StatusNotFound,
		"/v1/rounds/3/standings?run=other":       http.StatusNotFound,
		"/v1/rounds/3/matches/r3:x:y":            http.StatusNotFound,
		"/v1/rounds/3/matches/" + id + "/as/tft": http.StatusNotFound,
		"/v1/runs/missing":                       http.StatusNotFound,
	}
	for path, code := range cases {
		w := f.get(t, path)
		assert.Equal(t, code, w.Code, path)
		assert.NotEmpty(t, decode[ErrorResponse](t, w).Error, path)
	}
}

func TestRuns(t *testing.T) {
	f := setup(t)
	body := decode[struct {
		Runs []string `json:"runs"`
	}](t, f.get(t, "/v1/runs"))
	assert.Equal(t, []string{"run-1"}, body.Runs)

	run := decode[store.Run](t, f.get(t, "/v1/runs/run-1"))
	require.Len(t, run.Rounds, 1)
	assert.Equal(t, game.RoundOracle, run.Rounds[0].Round)
}

func TestMetricsEndpoint(t *testing.T) {
	w := setup(t).get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gauntlet_")
}

func TestStoredRoundsExported(t *testing.T) {
	f := setup(t)
	cancelled := *f.report
	cancelled.RunID = "run-2"
	require.NoError(t, f.store.SaveRound(&cancelled, true))

	expected := `
# HELP gauntlet_stored_matches Matches held in the result store by round and round status
# TYPE gauntlet_stored_matches gauge
gauntlet_stored_matches{round="oracle-hints",status="cancelled"} 3
gauntlet_stored_matches{round="oracle-hints",status="completed"} 3
# HELP gauntlet_stored_rounds Rounds held in the result store by round and status
# TYPE gauntlet_stored_rounds gauge
gauntlet_stored_rounds{round="oracle-hints",status="cancelled"} 1
gauntlet_stored_rounds{round="oracle-hints",status="completed"} 1
`
	err := testutil.CollectAndCompare(newStoreCollector(f.store, zerolog.Nop()), strings.NewReader(expected),
		"gauntlet_stored_rounds", "gauntlet_stored_matches")
	require.NoError(t, err)

	body := f.get(t, "/metrics").Body.String()
	assert.Contains(t, body, `gauntlet_stored_rounds{round="oracle-hints",status="completed"} 1`)
	assert.Contains(t, body, `gauntlet_stored_exclusions{round="oracle-hints"} 0`)
}
