package engine

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// sccGraph mirrors the structural edges into a gonum graph. Self loops are
// tracked on the side because simple.DirectedGraph rejects them.
type sccGraph struct {
	g        *simple.DirectedGraph
	index    map[string]int64
	ids      map[int64]string
	selfLoop map[string]bool
}

func buildSCCGraph(w *workGraph) sccGraph {
	sg := sccGraph{
		g:        simple.NewDirectedGraph(),
		index:    make(map[string]int64, len(w.order)),
		ids:      make(map[int64]string, len(w.order)),
		selfLoop: map[string]bool{},
	}
	for i, id := range w.order {
		sg.index[id] = int64(i)
		sg.ids[int64(i)] = id
		sg.g.AddNode(simple.Node(i))
	}
	for _, e := range w.structuralEdges() {
		if e.From == e.To {
			sg.selfLoop[e.From] = true
			continue
		}
		from, okF := sg.index[e.From]
		to, okT := sg.index[e.To]
		if !okF || !okT {
			continue
		}
		sg.g.SetEdge(sg.g.NewEdge(simple.Node(from), simple.Node(to)))
	}
	return sg
}

// cyclicComponents returns every SCC that contains a cycle, members sorted by
// node order.
func cyclicComponents(w *workGraph) [][]string {
	sg := buildSCCGraph(w)
	var out [][]string
	for _, comp := range topo.TarjanSCC(sg.g) {
		if len(comp) == 1 && !sg.selfLoop[sg.ids[comp[0].ID()]] {
			continue
		}
		idx := make([]int64, 0, len(comp))
		for _, n := range comp {
			idx = append(idx, n.ID())
		}
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
		members := make([]string, 0, len(idx))
		for _, i := range idx {
			members = append(members, sg.ids[i])
		}
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return w.indexOf(out[i][0]) < w.indexOf(out[j][0]) })
	return out
}

// breakCycles removes the weakest internal edge of every cyclic component,
// round after round, until the structural subgraph is acyclic.
func (rb *rebalancer) breakCycles() error {
	roundCap := len(rb.w.structuralEdges()) + 1
	for {
		comps := cyclicComponents(rb.w)
		if len(comps) == 0 {
			return nil
		}
		rb.report.CycleRounds++
		if rb.report.CycleRounds > roundCap {
			return invariantf("cycle breaker exceeded %d rounds", roundCap)
		}
		for _, members := range comps {
			victim := rb.weakestInternalEdge(members)
			if victim == nil {
				return invariantf("cyclic component %v has no internal edge", members)
			}
			rb.removeEdge(victim.ID)
			rb.report.CycleEdgesRemoved++
		}
	}
}

func (rb *rebalancer) weakestInternalEdge(members []string) *types.ConceptEdge {
	in := make(map[string]bool, len(members))
	for _, id := range members {
		in[id] = true
	}
	var victim *types.ConceptEdge
	victimScore := 0.0
	for _, e := range rb.w.structuralEdges() {
		if !in[e.From] || !in[e.To] {
			continue
		}
		score := rb.keepScore(e, true)
		if victim == nil || rb.weakerEdge(e, score, victim, victimScore) {
			victim, victimScore = e, score
		}
	}
	return victim
}

// weakerEdge orders candidates: unprotected first, then keep-score, then id.
func (rb *rebalancer) weakerEdge(a *types.ConceptEdge, aScore float64, b *types.ConceptEdge, bScore float64) bool {
	pa, pb := rb.protected[a.ID], rb.protected[b.ID]
	if pa != pb {
		return !pa
	}
	if aScore != bScore {
		return aScore < bScore
	}
	return a.ID < b.ID
}
