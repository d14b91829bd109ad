package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	httpH "github.com/yungbote/neurobridge-cdg/internal/http/handlers"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
	"github.com/yungbote/neurobridge-cdg/internal/services"
)

type stubCDG struct {
	graphs   map[string]types.CDG
	applyErr error
	lastID   string
	lastOps  int
	limit    int
}

func (s *stubCDG) ApplyTurn(_ context.Context, graphID string, patch types.GraphPatch) (*services.TurnResult, error) {
	s.lastID, s.lastOps = graphID, len(patch.Ops)
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	g := types.CDG{ID: graphID, Version: 1, Nodes: []types.ConceptNode{{ID: "n_1", Type: types.NodeGoal, Statement: "Clarify the user's goal", Status: types.StatusProposed, Confidence: 0.5}}}
	return &services.TurnResult{Graph: g, Applied: patch.Ops, IDMap: map[string]string{"tmp_a": "n_1"}, Changed: true}, nil
}

func (s *stubCDG) Get(_ context.Context, graphID string) (types.CDG, error) {
	g, ok := s.graphs[graphID]
	if !ok {
		return types.CDG{}, fmt.Errorf("%w: graph %s", cdgerrors.ErrNotFound, graphID)
	}
	return g, nil
}

func (s *stubCDG) ListPatches(_ context.Context, graphID string, limit int) ([]*types.PatchLogEntry, error) {
	s.limit = limit
	return nil, nil
}

func newTestRouter(svc services.CDGService, m *observability.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Log:           logger.Nop(),
		Metrics:       m,
		HealthHandler: httpH.NewHealthHandler(nil),
		GraphHandler:  httpH.NewGraphHandler(svc),
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPostPatch(t *testing.T) {
	svc := &stubCDG{}
	r := newTestRouter(svc, nil)

	rec := do(r, http.MethodPost, "/api/graphs/trip-1/patches",
		`{"ops":[{"op":"add_node","node":{"id":"tmp_a","type":"fact","statement":"Trip to Oslo","status":"proposed","confidence":0.6}}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "trip-1", svc.lastID)
	assert.Equal(t, 1, svc.lastOps)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"graph", "applied", "dropped", "id_map", "changed", "report"} {
		assert.Contains(t, body, key)
	}
	assert.JSONEq(t, `{"tmp_a":"n_1"}`, string(body["id_map"]))
}

func TestPostPatchErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"malformed body", nil, `{"ops":`, http.StatusBadRequest, "invalid_patch"},
		{"lock held", fmt.Errorf("%w: busy", cdgerrors.ErrConflict), `{"ops":[]}`, http.StatusConflict, "conflict"},
		{"bad id", fmt.Errorf("%w: id", cdgerrors.ErrInvalidArgument), `{"ops":[]}`, http.StatusBadRequest, "invalid_argument"},
		{"invariant", fmt.Errorf("%w: single_root", cdgerrors.ErrInvariant), `{"ops":[]}`, http.StatusInternalServerError, "invariant_violated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubCDG{applyErr: tc.err}, nil)
			rec := do(r, http.MethodPost, "/api/graphs/g/patches", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestGetGraphAndPatches(t *testing.T) {
	svc := &stubCDG{graphs: map[string]types.CDG{"g": {ID: "g", Version: 3}}}
	r := newTestRouter(svc, nil)

	rec := do(r, http.MethodGet, "/api/graphs/g", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":3`)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/graphs/nope", "").Code)

	rec = do(r, http.MethodGet, "/api/graphs/g/patches?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"patches":[]}`, rec.Body.String())
	assert.Equal(t, 5, svc.limit)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/graphs/g/patches?limit=x", "").Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	r := newTestRouter(&stubCDG{}, observability.New())
	rec := do(r, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	_ = do(r, http.MethodGet, "/api/graphs/missing", "")
	rec = do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cdg_api_requests_total")

	assert.Equal(t, http.StatusNotFound, do(newTestRouter(&stubCDG{}, nil), http.MethodGet, "/metrics", "").Code)
}
