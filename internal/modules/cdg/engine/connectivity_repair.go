package engine

const (
	confRepair      = 0.5
	rationaleRepair = "connectivity repair"
)

// repairConnectivity gives every node that cannot reach the root a single
// edge straight into it. Sinks are repaired first so their ancestors usually
// become connected through them.
func (rb *rebalancer) repairConnectivity() {
	reach := rb.w.ancestors(rb.rootID)

	var sinks, rest []string
	for _, id := range rb.w.order {
		if reach[id] {
			continue
		}
		if len(rb.w.outgoing(id)) == 0 {
			sinks = append(sinks, id)
		} else {
			rest = append(rest, id)
		}
	}
	for _, id := range append(sinks, rest...) {
		if reach[id] {
			continue
		}
		rb.w.newEdge(rb.ids, id, rb.rootID, rb.rootEdgeType(id), confRepair, rationaleRepair)
		rb.report.RepairedEdges++
		for anc := range rb.w.ancestors(id) {
			reach[anc] = true
		}
	}
}
