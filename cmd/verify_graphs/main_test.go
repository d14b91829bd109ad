package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdgrepo "github.com/yungbote/neurobridge-cdg/internal/data/repos/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
)

func healthyGraph(id string) types.CDG {
	return types.CDG{
		ID:      id,
		Version: 1,
		Nodes: []types.ConceptNode{
			{ID: "root", Type: types.NodeGoal, Statement: "Plan a trip to Japan", Status: types.StatusProposed, Confidence: 0.5},
			{ID: "b", Type: types.NodeConstraint, Statement: "Budget cap 10000", Status: types.StatusConfirmed, Confidence: 0.8},
		},
		Edges: []types.ConceptEdge{
			{ID: "e1", From: "b", To: "root", Type: types.EdgeConstraint, Confidence: 0.9},
		},
	}
}

func TestVerifyScansListedGraphs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := cdgrepo.NewGraphRepo(db, testutil.Logger(t))

	healthyID := "g-" + uuid.NewString()
	row, err := types.NewGraphSnapshot(healthyGraph(healthyID))
	require.NoError(t, err)
	require.NoError(t, repo.Save(dbc, row, 0))

	brokenID := "g-" + uuid.NewString()
	broken := healthyGraph(brokenID)
	broken.Edges = nil
	row, err = types.NewGraphSnapshot(broken)
	require.NoError(t, err)
	require.NoError(t, repo.Save(dbc, row, 0))

	for _, tc := range []struct {
		name string
		ids  []string
		fail int
	}{
		{name: "listed", ids: nil, fail: 1},
		{name: "healthy by id", ids: []string{healthyID}, fail: 0},
		{name: "broken by id", ids: []string{brokenID}, fail: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := loadSnapshots(dbc, repo, tc.ids, 500)
			require.NoError(t, err)

			var out bytes.Buffer
			failed := verifySnapshots(&out, rows, true)
			if tc.ids == nil {
				// a shared postgres may hold rows from other runs
				assert.GreaterOrEqual(t, failed, tc.fail)
			} else {
				assert.Equal(t, tc.fail, failed)
			}
			assert.NotContains(t, out.String(), healthyID)
			if tc.fail > 0 {
				assert.True(t, strings.Contains(out.String(), brokenID))
			}
		})
	}
}
