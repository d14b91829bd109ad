package engine

import (
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// rootEdgeType picks the edge type for an edge from id straight into root.
func (rb *rebalancer) rootEdgeType(id string) types.EdgeType {
	n := rb.w.node(id)
	switch n.Type {
	case types.NodeQuestion:
		return types.EdgeDetermine
	case types.NodeConstraint:
		return types.EdgeConstraint
	}
	if k, ok := rb.slots[id]; ok {
		switch k.Family {
		case FamilyHealth, FamilyBudget:
			return types.EdgeConstraint
		case FamilyDestination, FamilyPeople, FamilyDurationTotal, FamilySubLocation,
			FamilyMeetingDuration, FamilyMeetingCriticalDay:
			return types.EdgeEnable
		case FamilyLodging, FamilyScenicPreference, FamilyActivityPreference:
			return types.EdgeDetermine
		}
	}
	switch n.Type {
	case types.NodeFact, types.NodeBelief:
		return types.EdgeEnable
	default:
		return types.EdgeDetermine
	}
}

// partnerEdgeType picks the edge type for a slot routed to another slot.
func (rb *rebalancer) partnerEdgeType(id string) types.EdgeType {
	switch rb.w.node(id).Type {
	case types.NodeConstraint:
		return types.EdgeConstraint
	case types.NodeFact, types.NodeBelief:
		return types.EdgeEnable
	default:
		return types.EdgeDetermine
	}
}

func edgeTypeWeight(t types.EdgeType) float64 {
	switch t {
	case types.EdgeConstraint:
		return 3
	case types.EdgeEnable:
		return 2
	default:
		return 1
	}
}

// keepScore rates how much an edge is worth keeping; the lowest-scoring edge
// is sacrificed first. withTouched adds the touched-this-cycle bonus.
func (rb *rebalancer) keepScore(e *types.ConceptEdge, withTouched bool) float64 {
	s := edgeTypeWeight(e.Type) + 1.5*e.Confidence
	from, to := rb.w.node(e.From), rb.w.node(e.To)
	if from != nil && to != nil {
		s += (from.ImportanceOr(0.5) + to.ImportanceOr(0.5)) / 2
	}
	if withTouched && (rb.touched[e.From] || rb.touched[e.To]) {
		s += 1.5
	}
	if e.To == rb.rootID {
		s += 1.0
	}
	if rb.healthRelated(e.From) || rb.healthRelated(e.To) {
		s += 1.0
	}
	return s
}

// edgeTypeRank orders edges for the reducer: determine first.
func edgeTypeRank(t types.EdgeType) int {
	switch t {
	case types.EdgeDetermine:
		return 0
	case types.EdgeEnable:
		return 1
	default:
		return 2
	}
}
