package cdg

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-cdg/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
)

func sampleGraph(id string, version int64) types.CDG {
	return types.CDG{
		ID:      id,
		Version: version,
		Nodes: []types.ConceptNode{
			{ID: "root", Type: types.NodeGoal, Statement: "Plan a trip to Japan", Status: types.StatusProposed, Confidence: 0.5},
			{ID: "b", Type: types.NodeConstraint, Statement: "Budget cap 10000", Status: types.StatusConfirmed, Confidence: 0.8},
		},
		Edges: []types.ConceptEdge{
			{ID: "e1", From: "b", To: "root", Type: types.EdgeConstraint, Confidence: 0.9},
		},
	}
}

func TestGraphRepoOptimisticSave(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGraphRepo(db, testutil.Logger(t))

	graphID := "g-" + uuid.NewString()
	got, err := repo.Get(dbc, graphID)
	require.NoError(t, err)
	assert.Nil(t, got)

	v1, err := types.NewGraphSnapshot(sampleGraph(graphID, 1))
	require.NoError(t, err)
	require.NoError(t, repo.Save(dbc, v1, 0))

	dup, err := types.NewGraphSnapshot(sampleGraph(graphID, 1))
	require.NoError(t, err)
	err = repo.Save(dbc, dup, 0)
	assert.True(t, errors.Is(err, cdgerrors.ErrConflict), "second create must conflict: %v", err)

	v2g := sampleGraph(graphID, 2)
	v2g.Nodes[1].Statement = "Budget cap 15000"
	v2, err := types.NewGraphSnapshot(v2g)
	require.NoError(t, err)
	require.NoError(t, repo.Save(dbc, v2, 1))

	stale, err := types.NewGraphSnapshot(sampleGraph(graphID, 2))
	require.NoError(t, err)
	err = repo.Save(dbc, stale, 1)
	assert.True(t, errors.Is(err, cdgerrors.ErrConflict), "stale base version must conflict: %v", err)

	row, err := repo.Get(dbc, graphID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, int64(2), row.Version)
	assert.Equal(t, 2, row.NodeCount)
	g, err := row.CDG()
	require.NoError(t, err)
	assert.True(t, types.Equal(v2g, g))

	list, err := repo.List(dbc, 10)
	require.NoError(t, err)
	require.NotEmpty(t, list)
}

func TestGraphRepoListDecodesFullGraphs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGraphRepo(db, testutil.Logger(t))

	graphID := "g-" + uuid.NewString()
	want := sampleGraph(graphID, 1)
	row, err := types.NewGraphSnapshot(want)
	require.NoError(t, err)
	require.NoError(t, repo.Save(dbc, row, 0))

	list, err := repo.List(dbc, 500)
	require.NoError(t, err)
	var found *types.GraphSnapshot
	for _, r := range list {
		if r.GraphID == graphID {
			found = r
		}
	}
	require.NotNil(t, found, "saved graph missing from list")

	got, err := found.CDG()
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
	assert.True(t, types.Equal(want, got))
}

func TestPatchLogRepoListsNewestFirst(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewPatchLogRepo(db, testutil.Logger(t))

	graphID := "g-" + uuid.NewString()
	for v := int64(1); v <= 3; v++ {
		require.NoError(t, repo.Append(dbc, &types.PatchLogEntry{
			GraphID:     graphID,
			BaseVersion: v - 1,
			Version:     v,
			Changed:     true,
		}))
	}
	require.NoError(t, repo.Append(dbc, &types.PatchLogEntry{GraphID: "other-" + uuid.NewString(), Version: 1}))

	rows, err := repo.ListByGraph(dbc, graphID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(3), rows[0].Version)
	assert.NotEmpty(t, rows[0].ID)

	empty, err := repo.ListByGraph(dbc, "", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
