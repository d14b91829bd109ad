package engine

import (
	"strings"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

var primaryFamilies = []string{
	FamilyPeople,
	FamilyDestination,
	FamilyDurationTotal,
	FamilyBudget,
	FamilyLodging,
	FamilyScenicPreference,
}

const (
	confPrimaryConstraint = 0.9
	confPrimary           = 0.85
	confHealthHub         = 0.95
	confHubFeed           = 0.7
	confPartner           = 0.75

	rationaleSkeleton = "slot skeleton"
)

// buildSkeleton wires canonical slot nodes to the root and to each other.
func (rb *rebalancer) buildSkeleton() {
	hub := rb.healthHub()
	var primaries []string

	for _, fam := range primaryFamilies {
		for _, id := range rb.slotNodes(fam) {
			primaries = append(primaries, id)
			switch {
			case fam == FamilyLodging && rb.firstSlot(FamilyBudget) != "":
				rb.skeletonEdge(id, rb.firstSlot(FamilyBudget), rb.partnerEdgeType(id), confPartner)
			case fam == FamilyScenicPreference && rb.firstSlot(FamilyDestination) != "":
				dest, _ := rb.bestBySimilarity(id, rb.slotNodes(FamilyDestination))
				rb.skeletonEdge(id, dest, rb.partnerEdgeType(id), confPartner)
			default:
				conf := confPrimary
				if rb.w.node(id).Type == types.NodeConstraint {
					conf = confPrimaryConstraint
				}
				rb.skeletonEdge(id, rb.rootID, rb.rootEdgeType(id), conf)
			}
		}
	}

	for _, id := range rb.slotNodes(FamilyHealth) {
		if id == hub {
			rb.skeletonEdge(id, rb.rootID, types.EdgeConstraint, confHealthHub)
			for _, p := range primaries {
				rb.skeletonEdge(p, hub, types.EdgeDetermine, confHubFeed)
			}
			continue
		}
		rb.skeletonEdge(id, rb.rootID, rb.rootEdgeType(id), confPrimary)
	}

	for _, id := range rb.slotNodes(FamilySubLocation) {
		target := rb.parentDestination(id)
		rb.skeletonEdge(id, target, rb.edgeTypeToward(id, target), confPartner)
	}
	for _, id := range rb.slotNodes(FamilyActivityPreference) {
		rb.skeletonEdge(id, rb.rootID, rb.rootEdgeType(id), confPartner)
	}
	for _, id := range rb.slotNodes(FamilyMeetingDuration) {
		target := rb.firstSlot(FamilyDurationTotal)
		if target == "" {
			target = rb.rootID
		}
		rb.skeletonEdge(id, target, rb.edgeTypeToward(id, target), confPartner)
	}
	for _, id := range rb.slotNodes(FamilyMeetingCriticalDay) {
		var candidates []string
		for _, fam := range []string{FamilyActivityPreference, FamilySubLocation, FamilyMeetingDuration, FamilyDestination} {
			candidates = append(candidates, rb.slotNodes(fam)...)
		}
		target, score := rb.bestBySimilarity(id, candidates)
		if target == "" || score <= 0 {
			target = rb.rootID
		}
		rb.skeletonEdge(id, target, rb.edgeTypeToward(id, target), confPartner)
	}
}

// healthHub returns the high-severity health slot, if any.
func (rb *rebalancer) healthHub() string {
	for _, id := range rb.slotNodes(FamilyHealth) {
		switch rb.w.node(id).Severity {
		case types.SeverityHigh, types.SeverityCritical:
			return id
		}
	}
	return ""
}

// edgeTypeToward uses the root edge rule when the target is the root.
func (rb *rebalancer) edgeTypeToward(id, target string) types.EdgeType {
	if target == rb.rootID {
		return rb.rootEdgeType(id)
	}
	return rb.partnerEdgeType(id)
}

// parentDestination picks the destination a sub-location belongs to.
func (rb *rebalancer) parentDestination(id string) string {
	dests := rb.slotNodes(FamilyDestination)
	switch len(dests) {
	case 0:
		return rb.rootID
	case 1:
		return dests[0]
	}
	lower := strings.ToLower(rb.w.node(id).Statement)
	for _, d := range dests {
		if strings.Contains(lower, rb.slots[d].Qualifier) {
			return d
		}
	}
	if best, score := rb.bestBySimilarity(id, dests); best != "" && score > 0 {
		return best
	}
	return rb.rootID
}

// bestBySimilarity returns the candidate with the highest token overlap with
// id and its score; ties keep the earlier candidate.
func (rb *rebalancer) bestBySimilarity(id string, candidates []string) (string, float64) {
	best, bestScore := "", -1.0
	for _, c := range candidates {
		if c == id {
			continue
		}
		if s := rb.sim.between(id, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}

func (rb *rebalancer) skeletonEdge(from, to string, typ types.EdgeType, conf float64) {
	if to == "" {
		return
	}
	added, merged := rb.ensureEdge(from, to, typ, conf, rationaleSkeleton)
	if added {
		rb.report.SkeletonEdgesAdded++
	}
	if merged {
		rb.report.SkeletonEdgesMerged++
	}
}
