package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/Dosada05/tournament-engine/utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := brackets.NewHub()
	go hub.Run(ctx)

	hash, err := utils.HashPasswordWithCost("organizer-pass", 4)
	require.NoError(t, err)
	auth := services.NewAuthService(hash, "route-secret", time.Hour)
	history := services.NewHistoryService(repositories.NewMemoryMatchHistoryRepository(), nil, nil)
	tournaments := services.NewTournamentService(services.TournamentServiceConfig{
		Broadcaster: hub,
		Recorder:    history,
	})

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:       handlers.NewAuthHandler(auth),
		Tournament: handlers.NewTournamentHandler(tournaments),
		History:    handlers.NewHistoryHandler(history),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournaments, []string{"*"}),
	}, auth, []string{"*"})

	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	var out map[string]json.RawMessage
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (a *testAPI) login() {
	rr, out := a.do(http.MethodPost, "/auth/token", map[string]string{"password": "organizer-pass"})
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())
	a.token = decode[string](a.t, out["token"])
}

func TestOrganizerRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	rr, _ := api.do(http.MethodPost, "/tournaments", map[string]string{"name": "Open"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = api.do(http.MethodPost, "/auth/token", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = api.do(http.MethodGet, "/tournaments", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTournamentOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	rr, out := api.do(http.MethodPost, "/tournaments", map[string]string{"name": "Open"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[services.TournamentView](t, out["tournament"])
	base := "/tournaments/" + created.ID

	for _, p := range [][2]string{{"A", "B"}, {"C", "D"}} {
		rr, _ = api.do(http.MethodPost, base+"/qualifiers", map[string]string{"player1": p[0], "player2": p[1]})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr, _ = api.do(http.MethodPost, base+"/qualifiers", map[string]string{"player1": "TBD", "player2": "E"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.do(http.MethodPost, base+"/withdrawals", map[string]string{"player": "D"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr, _ = api.do(http.MethodPost, base+"/withdrawals/process", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	results := map[string]interface{}{
		"results": []map[string]string{{"player1": "A", "player2": "B", "winner": "B"}},
	}
	rr, out = api.do(http.MethodPost, base+"/qualifiers/resolve", results)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"B", "C"}, decode[[]string](t, out["winners"]))

	rr, _ = api.do(http.MethodPost, base+"/knockout/run", map[string]interface{}{"results": []interface{}{}})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, out = api.do(http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Round Robin", decode[string](t, out["stage"]))

	rr, _ = api.do(http.MethodPost, base+"/groups/run", map[string]interface{}{"results": []interface{}{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	results = map[string]interface{}{
		"results": []map[string]string{{"player1": "B", "player2": "C", "winner": "C"}},
	}
	rr, out = api.do(http.MethodPost, base+"/groups/run", results)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"C", "B"}, decode[[]string](t, out["knockout_players"]))

	rr, _ = api.do(http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	results = map[string]interface{}{
		"results": []map[string]string{{"player1": "C", "player2": "B", "winner": "B"}},
	}
	rr, out = api.do(http.MethodPost, base+"/knockout/run", results)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "B", decode[string](t, out["champion"]))

	rr, out = api.do(http.MethodGet, base+"/withdrawals/search?player=D", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]brackets.Withdrawal](t, out["withdrawals"]), 1)

	// qualifiers: A-B, C-D (forfeit); group: B-C; knockout: C-B
	rr, out = api.do(http.MethodGet, "/history/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[map[string]interface{}](t, out["summary"])
	assert.EqualValues(t, 4, summary["total_matches"])

	rr, _ = api.do(http.MethodGet, "/history/export.csv", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Match ID,Date,Stage"))
}

func TestHistoryRoutes(t *testing.T) {
	api := newTestAPI(t)
	api.login()

	rr, out := api.do(http.MethodPost, "/history", map[string]interface{}{
		"player1": "Alice", "player2": "Bob", "score1": 3, "score2": 1, "stage": "Knockout",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	match := decode[map[string]interface{}](t, out["match"])
	assert.Equal(t, "Alice", match["winner"])

	rr, _ = api.do(http.MethodGet, "/history/1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = api.do(http.MethodGet, "/history/99", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr, _ = api.do(http.MethodGet, "/history/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.do(http.MethodGet, "/history/top", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = api.do(http.MethodGet, "/history/stats", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = api.do(http.MethodPost, "/history/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr, _ = api.do(http.MethodDelete, "/history/1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestWebSocketUnknownTournament(t *testing.T) {
	api := newTestAPI(t)
	rr, _ := api.do(http.MethodGet, "/ws/tournaments/2b0e0f3e-7a47-4a55-9d39-6b3f1f3c8f11", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
