package engine

import (
	"sort"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// capRootFanIn drops the weakest root in-edges while the root in-degree is
// above the tuned cap. Edges are only dropped when their source keeps another
// route to the root.
func (rb *rebalancer) capRootFanIn() {
	limit := rb.params.RootInDegreeCap
	in := rb.w.incoming(rb.rootID)
	if len(in) <= limit {
		return
	}
	candidates := make([]*types.ConceptEdge, 0, len(in))
	for _, e := range in {
		if rb.protected[e.ID] || rb.touched[e.From] {
			continue
		}
		candidates = append(candidates, e)
	}
	scores := make(map[string]float64, len(candidates))
	for _, e := range candidates {
		scores[e.ID] = rb.keepScore(e, true)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if scores[a.ID] != scores[b.ID] {
			return scores[a.ID] < scores[b.ID]
		}
		return a.ID < b.ID
	})
	degree := len(in)
	for _, e := range candidates {
		if degree <= limit {
			return
		}
		if len(rb.w.outgoing(e.From)) < 2 {
			continue
		}
		if !rb.w.reaches(e.From, rb.rootID, e.ID) {
			continue
		}
		rb.removeEdge(e.ID)
		rb.report.FanInPruned++
		degree--
	}
}

// reduceTransitive prunes edges that are implied by another path. It is a
// greedy single pass, not a minimum equivalent graph.
func (rb *rebalancer) reduceTransitive() {
	edges := rb.w.structuralEdges()
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if x, y := edgeTypeRank(a.Type), edgeTypeRank(b.Type); x != y {
			return x < y
		}
		if a.Confidence != b.Confidence {
			return a.Confidence < b.Confidence
		}
		return a.ID < b.ID
	})
	cutoff := rb.params.PruneCutoff
	for _, e := range edges {
		if rb.w.edge(e.ID) == nil {
			continue
		}
		if !rb.reducible(e, cutoff) {
			continue
		}
		rb.removeEdge(e.ID)
		rb.report.ReducedEdges++
	}
}

func (rb *rebalancer) reducible(e *types.ConceptEdge, cutoff float64) bool {
	if rb.protected[e.ID] {
		return false
	}
	if rb.touched[e.From] || rb.touched[e.To] {
		return false
	}
	if e.To == rb.rootID && e.Type != types.EdgeDetermine {
		return false
	}
	if rb.keepScore(e, false) >= cutoff {
		return false
	}
	if len(rb.w.outgoing(e.From)) < 2 {
		return false
	}
	if !rb.w.reaches(e.From, e.To, e.ID) {
		return false
	}
	return rb.w.reaches(e.From, rb.rootID, e.ID)
}
