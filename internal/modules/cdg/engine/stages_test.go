package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// stageFixture prepares a rebalancer up to root selection so single stages
// can run in isolation.
func stageFixture(g types.CDG, touched ...string) *rebalancer {
	marks := map[string]bool{}
	for _, id := range touched {
		marks[id] = true
	}
	rb := newRebalancer(newWorkGraph(g), currentRules(), seqIDs(), marks)
	rb.classifySlots()
	rb.selectRoot()
	return rb
}

func chainGraph(shortcut types.ConceptEdge) types.CDG {
	return types.CDG{
		ID: "g",
		Nodes: []types.ConceptNode{
			node("R", types.NodeGoal, "Plan a trip"),
			node("a", types.NodeBelief, "Alpha consideration"),
			node("b", types.NodeBelief, "Bravo consideration"),
			node("c", types.NodeBelief, "Charlie consideration"),
		},
		Edges: []types.ConceptEdge{
			edge("ab", "a", "b", types.EdgeDetermine, 0.5),
			edge("bc", "b", "c", types.EdgeDetermine, 0.5),
			edge("cR", "c", "R", types.EdgeEnable, 0.9),
			shortcut,
		},
	}
}

func TestReduceTransitive(t *testing.T) {
	cases := []struct {
		name      string
		shortcut  types.ConceptEdge
		touched   []string
		protected bool
		cutoff    float64
		removed   bool
	}{
		{
			name:     "implied weak edge is pruned",
			shortcut: edge("short", "a", "c", types.EdgeDetermine, 0.3),
			cutoff:   pruneCutoffBase,
			removed:  true,
		},
		{
			name:     "touched endpoint is kept",
			shortcut: edge("short", "a", "c", types.EdgeDetermine, 0.3),
			touched:  []string{"a"},
			cutoff:   pruneCutoffBase,
		},
		{
			name:      "protected edge is kept",
			shortcut:  edge("short", "a", "c", types.EdgeDetermine, 0.3),
			protected: true,
			cutoff:    pruneCutoffBase,
		},
		{
			name:     "keep score above cutoff is kept",
			shortcut: edge("short", "a", "c", types.EdgeDetermine, 1.0),
			cutoff:   pruneCutoffBase,
		},
		{
			name:     "non-determine edge into root is kept",
			shortcut: edge("short", "a", "R", types.EdgeEnable, 0.1),
			cutoff:   100,
		},
		{
			name:     "determine edge into root is pruned",
			shortcut: edge("short", "a", "R", types.EdgeDetermine, 0.1),
			cutoff:   100,
			removed:  true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rb := stageFixture(chainGraph(tc.shortcut), tc.touched...)
			rb.params.PruneCutoff = tc.cutoff
			if tc.protected {
				rb.protected["short"] = true
			}

			rb.reduceTransitive()

			if tc.removed {
				assert.Nil(t, rb.w.edge("short"))
				assert.Equal(t, 1, rb.report.ReducedEdges)
			} else {
				assert.NotNil(t, rb.w.edge("short"))
				assert.Equal(t, 0, rb.report.ReducedEdges)
			}
			for _, id := range []string{"ab", "bc", "cR"} {
				assert.NotNil(t, rb.w.edge(id), "chain edge %s removed", id)
			}
			assert.True(t, rb.w.reaches("a", "R", ""))
		})
	}
}

func skeletonGraph() types.CDG {
	hub := node("H", types.NodeConstraint, "I have asthma and need to avoid strenuous hikes")
	hub.Severity = types.SeverityHigh
	return types.CDG{
		ID: "g",
		Nodes: []types.ConceptNode{
			node("R", types.NodeGoal, "Plan a trip"),
			hub,
			node("P", types.NodeFact, "2 adults traveling together"),
			node("D2", types.NodePreference, "I want to visit New York"),
			node("D1", types.NodeFact, "Trip to Paris"),
			node("B", types.NodeConstraint, "Budget cap 10000"),
			node("SC", types.NodePreference, "Love mountain views in Paris"),
			node("S", types.NodePreference, "Stay near the Marais district in Paris"),
			node("M", types.NodeFact, "The conference lasts 3 days"),
			node("CD", types.NodeConstraint, "The keynote at the conference is on Tuesday"),
		},
	}
}

func TestBuildSkeletonRoutesSlots(t *testing.T) {
	rb := stageFixture(skeletonGraph())
	require.Equal(t, "R", rb.rootID)
	require.Equal(t, "H", rb.healthHub())

	rb.buildSkeleton()

	cases := []struct {
		name     string
		from, to string
		typ      types.EdgeType
	}{
		{"health hub constrains root", "H", "R", types.EdgeConstraint},
		{"people to root", "P", "R", types.EdgeEnable},
		{"destination to root", "D1", "R", types.EdgeEnable},
		{"second destination to root", "D2", "R", types.EdgeEnable},
		{"budget to root", "B", "R", types.EdgeConstraint},
		{"people feeds hub", "P", "H", types.EdgeDetermine},
		{"destination feeds hub", "D1", "H", types.EdgeDetermine},
		{"second destination feeds hub", "D2", "H", types.EdgeDetermine},
		{"budget feeds hub", "B", "H", types.EdgeDetermine},
		{"scenic feeds hub", "SC", "H", types.EdgeDetermine},
		{"scenic routes to the closer destination", "SC", "D1", types.EdgeDetermine},
		{"sub-location routes to its parent", "S", "D1", types.EdgeDetermine},
		{"meeting duration falls back to root", "M", "R", types.EdgeEnable},
		{"critical day picks the most similar slot", "CD", "M", types.EdgeConstraint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := rb.w.findEdge(tc.from, tc.to, tc.typ)
			require.NotNil(t, e, "missing %s -[%s]-> %s", tc.from, tc.typ, tc.to)
			assert.True(t, rb.protected[e.ID])
		})
	}

	hubEdge := rb.w.findEdge("H", "R", types.EdgeConstraint)
	assert.InDelta(t, confHealthHub, hubEdge.Confidence, 1e-9)
	assert.Nil(t, rb.w.findEdge("SC", "D2", types.EdgeDetermine))
	assert.Nil(t, rb.w.findEdge("SC", "R", types.EdgeDetermine))
	assert.Nil(t, rb.w.findEdge("S", "D2", types.EdgeDetermine))
	assert.Nil(t, rb.w.findEdge("H", "H", types.EdgeDetermine))
}

func TestApplyKeepsHealthHubWiring(t *testing.T) {
	res, err := Apply(skeletonGraph(), types.GraphPatch{}, Options{NewID: seqIDs()})
	require.NoError(t, err)
	requireRebalanced(t, res.Graph)

	hasEdge := func(from, to string, typ types.EdgeType) bool {
		for _, e := range res.Graph.Edges {
			if e.From == from && e.To == to && e.Type == typ {
				return true
			}
		}
		return false
	}
	assert.True(t, hasEdge("H", "R", types.EdgeConstraint))
	for _, p := range []string{"P", "D1", "D2", "B", "SC"} {
		assert.True(t, hasEdge(p, "H", types.EdgeDetermine), "%s does not feed the hub", p)
	}
}

func TestSearchAnchor(t *testing.T) {
	budgetGraph := func(edges ...types.ConceptEdge) types.CDG {
		return types.CDG{
			ID: "g",
			Nodes: []types.ConceptNode{
				node("R", types.NodeGoal, "Plan a trip"),
				node("B", types.NodeConstraint, "Budget cap 10000"),
				node("Y", types.NodeConstraint, "Budget cap 10000 strict limit"),
				node("X", types.NodeConstraint, "Budget cap 10000 strict"),
			},
			Edges: edges,
		}
	}
	lodgingGraph := func(anchorType types.NodeType, edges ...types.ConceptEdge) types.CDG {
		return types.CDG{
			ID: "g",
			Nodes: []types.ConceptNode{
				node("R", types.NodeGoal, "Plan a trip"),
				node("L", anchorType, "Prefer a ryokan hotel"),
				node("X", types.NodePreference, "Prefer a ryokan hotel near the station"),
			},
			Edges: edges,
		}
	}

	cases := []struct {
		name   string
		graph  types.CDG
		anchor string
		h      float64
		steps  int
	}{
		{
			name: "close landmark ends the search at first sight",
			graph: budgetGraph(
				edge("bR", "B", "R", types.EdgeConstraint, 0.9),
				edge("yR", "Y", "R", types.EdgeConstraint, 0.9),
			),
			anchor: "B",
			h:      0.25,
			steps:  1,
		},
		{
			name: "short circuit follows edge order, not the best score",
			graph: budgetGraph(
				edge("yR", "Y", "R", types.EdgeConstraint, 0.9),
				edge("bR", "B", "R", types.EdgeConstraint, 0.9),
			),
			anchor: "Y",
			h:      0.2,
			steps:  1,
		},
		{
			name:   "landmark beating the root becomes the running best",
			graph:  lodgingGraph(types.NodePreference, edge("lR", "L", "R", types.EdgeDetermine, 0.9)),
			anchor: "L",
			h:      0.7,
			steps:  1,
		},
		{
			name:   "non-landmark never becomes the anchor",
			graph:  lodgingGraph(types.NodeBelief, edge("lR", "L", "R", types.EdgeDetermine, 0.9)),
			anchor: "R",
			h:      1.5,
			steps:  2,
		},
		{
			name: "landmark that reaches the node is excluded",
			graph: lodgingGraph(types.NodePreference,
				edge("lR", "L", "R", types.EdgeDetermine, 0.9),
				edge("lX", "L", "X", types.EdgeDetermine, 0.9),
			),
			anchor: "R",
			h:      1.5,
			steps:  2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rb := stageFixture(tc.graph)
			rb.params.AnchorStepBudget = 100

			anchor, h, steps := rb.searchAnchor("X", rb.w.ancestors("X"))

			assert.Equal(t, tc.anchor, anchor)
			assert.InDelta(t, tc.h, h, 1e-9)
			assert.Equal(t, tc.steps, steps)
		})
	}
}

func TestSlotCompactionKeepsLockedNode(t *testing.T) {
	locked := node("B1", types.NodeConstraint, "Budget cap 10000")
	locked.Locked = true
	b2 := node("B2", types.NodeConstraint, "Budget cap 15000")
	b2.Status = types.StatusConfirmed
	b2.Confidence = 0.95
	g := types.CDG{
		ID:    "g",
		Nodes: []types.ConceptNode{node("R", types.NodeGoal, "Plan a trip to Japan"), locked, b2},
	}

	res, err := Apply(g, types.GraphPatch{}, Options{NewID: seqIDs()})
	require.NoError(t, err)

	_, ok := findNode(res.Graph, "B1")
	assert.True(t, ok)
	_, ok = findNode(res.Graph, "B2")
	assert.False(t, ok)
	requireRebalanced(t, res.Graph)
}

func TestRootSelectionSkipsRejectedGoal(t *testing.T) {
	imp := 0.9
	rejected := node("R1", types.NodeGoal, "Plan a business trip")
	rejected.Status = types.StatusRejected
	rejected.Importance = &imp
	g := types.CDG{
		ID:    "g",
		Nodes: []types.ConceptNode{rejected, node("R2", types.NodeGoal, "Plan a family holiday")},
	}

	rb := stageFixture(g)

	assert.Equal(t, "R2", rb.rootID)
	assert.Nil(t, rb.w.node("R1"))
	assert.Equal(t, 1, rb.report.GoalsRemoved)
}
