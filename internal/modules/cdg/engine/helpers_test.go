package engine

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

func seqIDs() IDGenerator {
	n := 0
	return func(kind string) string {
		n++
		return fmt.Sprintf("%s_%03d", kind, n)
	}
}

func node(id string, typ types.NodeType, stmt string) types.ConceptNode {
	return types.ConceptNode{ID: id, Type: typ, Statement: stmt, Status: types.StatusProposed, Confidence: 0.7}
}

func edge(id, from, to string, typ types.EdgeType, conf float64) types.ConceptEdge {
	return types.ConceptEdge{ID: id, From: from, To: to, Type: typ, Confidence: conf}
}

func addNodeOp(n types.ConceptNode) types.PatchOp {
	return types.PatchOp{Op: types.OpAddNode, Node: &n}
}

func addEdgeOp(e types.ConceptEdge) types.PatchOp {
	return types.PatchOp{Op: types.OpAddEdge, Edge: &e}
}

func mapKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func findNode(g types.CDG, id string) (types.ConceptNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return types.ConceptNode{}, false
}

func findEdgeByID(g types.CDG, id string) (types.ConceptEdge, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return types.ConceptEdge{}, false
}

func outEdges(g types.CDG, from string) []types.ConceptEdge {
	var out []types.ConceptEdge
	for _, e := range g.Edges {
		if e.From == from && e.Type.Structural() {
			out = append(out, e)
		}
	}
	return out
}

// requireRebalanced checks the committed-graph guarantees: one goal, acyclic
// structural edges, every node reaching the root, unique slot keys.
func requireRebalanced(t *testing.T, g types.CDG) {
	t.Helper()
	root := ""
	for _, n := range g.Nodes {
		if n.Type == types.NodeGoal {
			require.Empty(t, root, "more than one goal: %s and %s", root, n.ID)
			root = n.ID
		}
	}
	require.NotEmpty(t, root, "no goal node")

	w := newWorkGraph(g)
	require.Empty(t, cyclicComponents(w), "structural cycle left behind")

	reach := w.ancestors(root)
	for _, n := range g.Nodes {
		require.True(t, reach[n.ID], "node %s does not reach root", n.ID)
	}

	seen := map[string]string{}
	for _, n := range g.Nodes {
		key, ok := ClassifySlot(n)
		if !ok {
			continue
		}
		prev, dup := seen[key.String()]
		require.False(t, dup, "slot %s shared by %s and %s", key, prev, n.ID)
		seen[key.String()] = n.ID
	}

	for _, e := range g.Edges {
		_, okF := findNode(g, e.From)
		_, okT := findNode(g, e.To)
		require.True(t, okF && okT, "dangling edge %s", e.ID)
	}
}
