package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/defrumours/history"
	"github.com/pevans/defrumours/output"
	"github.com/pevans/defrumours/rumours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func prob(v int) *int {
	return &v
}

// Test helper: create an API server backed by a temporary output directory
// and history store
func setupTestAPIServer(t *testing.T) (*APIServer, *output.Writer, *history.Store) {
	w, err := output.NewWriter(t.TempDir())
	require.NoError(t, err)
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewAPIServer(w, store), w, store
}

func writeSample(t *testing.T, w *output.Writer) {
	rs := rumours.NewResultSet(rumours.Meta{
		Source:      "https://example.com/list",
		Competition: "L1",
		Season:      "2025",
		GeneratedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}, []rumours.Record{
		{Player: "Amy", Position: "Defender", CurrentClub: "FC Köln", InterestedClub: "Bayern", Probability: prob(80)},
		{Player: "Ben", Position: "Defender", CurrentClub: "Mainz", InterestedClub: "Leverkusen", Probability: prob(30)},
		{Player: "Cas", Position: "Defender", CurrentClub: "Bochum", InterestedClub: "Bayern <II>"},
	})
	require.NoError(t, w.WriteResult(rs, ""))
}

func get(t *testing.T, s *APIServer, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.SetupRouter().ServeHTTP(rec, req)
	return rec
}

// TestHandleListRumours_NoResults verifies 404 before the first run
func TestHandleListRumours_NoResults(t *testing.T) {
	server, _, _ := setupTestAPIServer(t)

	rec := get(t, server, "/api/v1/rumours")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Code)
}

// TestHandleListRumours_All verifies the full list in stored order
func TestHandleListRumours_All(t *testing.T) {
	server, w, _ := setupTestAPIServer(t)
	writeSample(t, w)

	rec := get(t, server, "/api/v1/rumours")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListRumoursResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "Amy", resp.Items[0].Player)
	assert.Equal(t, "L1", resp.Competition)
	assert.Equal(t, "2025-06-01T09:00:00Z", resp.GeneratedUTC.String())
}

// TestHandleListRumours_Filters verifies min_probability and club filters
func TestHandleListRumours_Filters(t *testing.T) {
	server, w, _ := setupTestAPIServer(t)
	writeSample(t, w)

	tests := []struct {
		name    string
		query   string
		players []string
	}{
		{"min probability", "?min_probability=50", []string{"Amy"}},
		{"zero drops unknown", "?min_probability=0", []string{"Amy", "Ben"}},
		{"club either side", "?club=bayern", []string{"Amy", "Cas"}},
		{"combined", "?club=bayern&min_probability=10", []string{"Amy"}},
		{"no match", "?club=schalke", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, "/api/v1/rumours"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp ListRumoursResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			players := []string{}
			for _, item := range resp.Items {
				players = append(players, item.Player)
			}
			assert.Equal(t, tt.players, players)
			assert.Equal(t, 3, resp.Total)
		})
	}
}

// TestHandleListRumours_InvalidProbability verifies parameter validation
func TestHandleListRumours_InvalidProbability(t *testing.T) {
	server, w, _ := setupTestAPIServer(t)
	writeSample(t, w)

	for _, q := range []string{"abc", "-1", "101"} {
		rec := get(t, server, "/api/v1/rumours?min_probability="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

// TestHandleRumoursHTML verifies the escaped HTML rendering
func TestHandleRumoursHTML(t *testing.T) {
	server, w, _ := setupTestAPIServer(t)
	writeSample(t, w)

	rec := get(t, server, "/api/v1/rumours.html")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Bayern &lt;II&gt;")
	assert.NotContains(t, rec.Body.String(), "<II>")
}

// TestHandleListRuns verifies runs are listed newest first with a limit
func TestHandleListRuns(t *testing.T) {
	server, _, store := setupTestAPIServer(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Record(context.Background(), &history.Run{
			Source: "s", Count: i, GeneratedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	rec := get(t, server, "/api/v1/runs?limit=2")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, 2, resp.Runs[0].Count)

	assert.Equal(t, http.StatusBadRequest, get(t, server, "/api/v1/runs?limit=0").Code)
}

// TestHandleListRuns_NoHistory verifies an empty list without a store
func TestHandleListRuns_NoHistory(t *testing.T) {
	w, err := output.NewWriter(t.TempDir())
	require.NoError(t, err)

	rec := get(t, NewAPIServer(w, nil), "/api/v1/runs")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

type brokenRuns struct{}

func (brokenRuns) List(ctx context.Context, limit int) ([]history.Run, error) {
	return nil, errors.New("disk I/O error")
}

// TestHandleListRuns_Error verifies store failures become 500s
func TestHandleListRuns_Error(t *testing.T) {
	w, err := output.NewWriter(t.TempDir())
	require.NoError(t, err)

	rec := get(t, NewAPIServer(w, brokenRuns{}), "/api/v1/runs")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

// TestCORSMiddleware_Preflight verifies OPTIONS requests are answered
func TestCORSMiddleware_Preflight(t *testing.T) {
	server, _, _ := setupTestAPIServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rumours", nil)
	rec := httptest.NewRecorder()
	server.SetupRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "OPTIONS should return 200")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}
