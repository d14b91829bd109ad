package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
)

func n(id string, typ types.NodeType, stmt string) types.ConceptNode {
	return types.ConceptNode{ID: id, Type: typ, Statement: stmt, Status: types.StatusProposed, Confidence: 0.7}
}

func e(id, from, to string, typ types.EdgeType) types.ConceptEdge {
	return types.ConceptEdge{ID: id, From: from, To: to, Type: typ, Confidence: 0.5}
}

func checkByName(t *testing.T, r InvariantReport, name string) InvariantCheck {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s missing", name)
	return InvariantCheck{}
}

func TestCheckInvariantsPassesHealthyGraph(t *testing.T) {
	g := types.CDG{
		ID:      "g",
		Version: 4,
		Nodes: []types.ConceptNode{
			n("R", types.NodeGoal, "Plan a trip to Japan"),
			n("B", types.NodeConstraint, "Budget cap 10000"),
			n("P", types.NodePreference, "Prefer a ryokan hotel"),
		},
		Edges: []types.ConceptEdge{
			e("e1", "B", "R", types.EdgeConstraint),
			e("e2", "P", "B", types.EdgeDetermine),
			e("c1", "R", "P", types.EdgeConflictsWith),
		},
	}
	r := CheckInvariants(g)
	assert.Equal(t, "pass", r.Status)
	assert.NoError(t, r.Err())
	assert.Len(t, r.Checks, 6)
}

func TestCheckInvariantsReportsEveryViolation(t *testing.T) {
	g := types.CDG{
		ID: "g",
		Nodes: []types.ConceptNode{
			n("R1", types.NodeGoal, "Plan a trip"),
			n("R2", types.NodeGoal, "Another goal"),
			n("B1", types.NodeConstraint, "Budget cap 10000"),
			n("B2", types.NodeConstraint, "Budget cap 15000"),
			n("x", types.NodeBelief, "Alpha"),
			n("y", types.NodeBelief, "Beta"),
		},
		Edges: []types.ConceptEdge{
			e("d", "x", "ghost", types.EdgeEnable),
			e("xy", "x", "y", types.EdgeDetermine),
			e("yx", "y", "x", types.EdgeDetermine),
		},
	}
	g.Nodes[4].Confidence = 3

	r := CheckInvariants(g)
	require.Equal(t, "fail", r.Status)
	assert.Equal(t, "fail", checkByName(t, r, "single_root").Status)
	assert.Equal(t, "skipped", checkByName(t, r, "root_reachability").Status)
	assert.Equal(t, []string{"d"}, checkByName(t, r, "dangling_edges").Sample)
	assert.Equal(t, []string{"x", "y"}, checkByName(t, r, "structural_cycles").Sample)
	assert.Equal(t, 2, checkByName(t, r, "duplicate_slots").Count)
	assert.Equal(t, []string{"x"}, checkByName(t, r, "node_fields").Sample)

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, cdgerrors.ErrInvariant))
}

func TestCheckInvariantsFindsUnreachableNodes(t *testing.T) {
	g := types.CDG{
		ID: "g",
		Nodes: []types.ConceptNode{
			n("R", types.NodeGoal, "Plan"),
			n("a", types.NodeBelief, "Alpha"),
			n("b", types.NodeBelief, "Beta"),
		},
		Edges: []types.ConceptEdge{
			e("ok", "a", "R", types.EdgeEnable),
			e("conf", "b", "R", types.EdgeConflictsWith),
		},
	}
	c := checkByName(t, CheckInvariants(g), "root_reachability")
	assert.Equal(t, "fail", c.Status)
	assert.Equal(t, []string{"b"}, c.Sample)
}
