package engine

import (
	"container/heap"
	"strings"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

const (
	landmarkImportance = 0.75
	landmarkConfidence = 0.85
	shortCircuitH      = 0.3

	confDirectHit = 0.8
	confSearchMax = 0.85
	confSearchMin = 0.35
	confSearchH   = 0.3

	costUncertainty = 0.5
	riskPenalty     = 0.6

	rationaleDirect = "anchor: slot match"
	rationaleSearch = "anchor: best-first search"
)

// assignAnchors attaches every dangling free node (no slot, no outgoing
// structural edge) to exactly one existing anchor.
func (rb *rebalancer) assignAnchors() {
	for _, id := range append([]string(nil), rb.w.order...) {
		if id == rb.rootID {
			continue
		}
		if _, ok := rb.slots[id]; ok {
			continue
		}
		if len(rb.w.outgoing(id)) > 0 {
			continue
		}
		rb.anchorNode(id)
	}
}

func (rb *rebalancer) anchorNode(id string) {
	// Anything that already reaches id would close a cycle.
	excluded := rb.w.ancestors(id)

	if anchor, ok := rb.directHit(id, excluded); ok {
		rb.w.newEdge(rb.ids, id, anchor, rb.anchorEdgeType(id, anchor), confDirectHit, rationaleDirect)
		rb.report.AnchorsDirect++
		return
	}
	anchor, h, steps := rb.searchAnchor(id, excluded)
	rb.report.AnchorSteps += steps
	conf := clampFloatCeiling(confSearchMax-confSearchH*h, confSearchMin, confSearchMax)
	rb.w.newEdge(rb.ids, id, anchor, rb.anchorEdgeType(id, anchor), conf, rationaleSearch)
	rb.report.AnchorsSearched++
}

// directHit attaches straight to a same-family slot node when the text
// strongly implies that family.
func (rb *rebalancer) directHit(id string, excluded map[string]bool) (string, bool) {
	fam, score := rb.hintFor(id).best(rb.rules.families)
	if fam == "" || score < strongHintScore {
		return "", false
	}
	lower := strings.ToLower(rb.w.node(id).Statement)
	best, bestScore := "", -1.0
	for _, cand := range rb.slotNodes(fam) {
		if excluded[cand] {
			continue
		}
		s := rb.sim.between(id, cand)
		if q := rb.slots[cand].Qualifier; q != "" && strings.Contains(lower, q) {
			s += 0.5
		}
		if s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best, best != ""
}

func (rb *rebalancer) anchorEdgeType(id, anchor string) types.EdgeType {
	if anchor == rb.rootID {
		return rb.rootEdgeType(id)
	}
	if rb.isHealthSlot(anchor) && rb.w.node(id).Type == types.NodeConstraint {
		return types.EdgeConstraint
	}
	return types.EdgeDetermine
}

func (rb *rebalancer) isHealthSlot(id string) bool {
	k, ok := rb.slots[id]
	return ok && k.Family == FamilyHealth
}

func (rb *rebalancer) landmarks() map[string]bool {
	out := map[string]bool{rb.rootID: true}
	for _, n := range rb.w.nodeList() {
		if _, ok := rb.slots[n.ID]; ok ||
			n.ImportanceOr(0) >= landmarkImportance ||
			n.Confidence >= landmarkConfidence ||
			n.Type == types.NodeConstraint {
			out[n.ID] = true
		}
	}
	return out
}

type searchItem struct {
	id    string
	g     float64
	f     float64
	index int
}

type searchQueue []*searchItem

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].g != q[j].g {
		return q[i].g < q[j].g
	}
	return q[i].id < q[j].id
}

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	it := x.(*searchItem)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// searchAnchor walks backwards from the root over incoming structural edges.
// Landmarks update the running best as soon as they are reached; a landmark
// whose heuristic is already tiny ends the search. Expansion stops when the
// cheapest open item cannot beat the best found or the step budget runs out.
func (rb *rebalancer) searchAnchor(id string, excluded map[string]bool) (string, float64, int) {
	landmarks := rb.landmarks()
	incoming := map[string][]*types.ConceptEdge{}
	for _, e := range rb.w.structuralEdges() {
		incoming[e.To] = append(incoming[e.To], e)
	}

	hRoot := rb.heuristic(id, rb.rootID)
	best, bestF, bestH := rb.rootID, hRoot, hRoot

	gScore := map[string]float64{rb.rootID: 0}
	closed := map[string]bool{}
	pq := &searchQueue{}
	heap.Push(pq, &searchItem{id: rb.rootID, g: 0, f: hRoot})

	steps := 0
	for pq.Len() > 0 && steps < rb.params.AnchorStepBudget {
		it := heap.Pop(pq).(*searchItem)
		if closed[it.id] {
			continue
		}
		if it.id != rb.rootID && it.f >= bestF {
			break
		}
		closed[it.id] = true
		steps++
		for _, e := range incoming[it.id] {
			prev := e.From
			if prev == id || closed[prev] {
				continue
			}
			g := it.g + edgeCost(e)
			if old, ok := gScore[prev]; ok && g >= old {
				continue
			}
			gScore[prev] = g
			h := rb.heuristic(id, prev)
			f := g + h
			if landmarks[prev] && !excluded[prev] {
				if h <= shortCircuitH {
					return prev, h, steps
				}
				if f < bestF {
					best, bestF, bestH = prev, f, h
				}
			}
			heap.Push(pq, &searchItem{id: prev, g: g, f: f})
		}
	}
	return best, bestH, steps
}

func edgeCost(e *types.ConceptEdge) float64 {
	bias := 0.6
	switch e.Type {
	case types.EdgeEnable:
		bias = 0.4
	case types.EdgeConstraint:
		bias = 0.2
	}
	return bias + (1-e.Confidence)*costUncertainty
}

// heuristic estimates how poorly anchor fits node id; lower is better.
func (rb *rebalancer) heuristic(id, anchor string) float64 {
	h := 1 - rb.sim.between(id, anchor)
	h += rb.familyDistance(id, anchor)
	h += rb.typeMismatch(id, anchor)
	if rb.hintFor(id).risk && !rb.isHealthSlot(anchor) {
		h += riskPenalty
	}
	return h
}

func (rb *rebalancer) nodeFamily(id string) string {
	if k, ok := rb.slots[id]; ok {
		return k.Family
	}
	fam, _ := rb.hintFor(id).best(rb.rules.families)
	return fam
}

func (rb *rebalancer) familyDistance(id, anchor string) float64 {
	nf := rb.nodeFamily(id)
	if nf == "" {
		if anchor == rb.rootID {
			return 0.25
		}
		return 0.6
	}
	if anchor == rb.rootID {
		return 0.5
	}
	af := rb.nodeFamily(anchor)
	switch {
	case af == nf:
		return 0
	case af != "" && rb.rules.adjacentFamilies(nf, af):
		return 0.35
	default:
		return 0.9
	}
}

func (rb *rebalancer) typeMismatch(id, anchor string) float64 {
	if anchor == rb.rootID {
		return 0
	}
	a, b := rb.w.node(id).Type, rb.w.node(anchor).Type
	if a == b {
		return 0
	}
	if compatibleTypes(a, b) {
		return 0.1
	}
	return 0.2
}

func compatibleTypes(a, b types.NodeType) bool {
	pair := func(x, y types.NodeType) bool { return (a == x && b == y) || (a == y && b == x) }
	return pair(types.NodeConstraint, types.NodeFact) ||
		pair(types.NodeFact, types.NodeBelief) ||
		pair(types.NodeBelief, types.NodePreference) ||
		pair(types.NodePreference, types.NodeConstraint)
}
