package engine

import (
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// compactSlots keeps one winner per slot key and deletes every loser together
// with its incident edges.
func (rb *rebalancer) compactSlots() {
	groups := map[string][]string{}
	var keys []string
	for _, id := range rb.w.order {
		k, ok := rb.slots[id]
		if !ok {
			continue
		}
		ks := k.String()
		if _, seen := groups[ks]; !seen {
			keys = append(keys, ks)
		}
		groups[ks] = append(groups[ks], id)
	}
	for _, ks := range keys {
		members := groups[ks]
		if len(members) < 2 {
			continue
		}
		winner := members[0]
		for _, id := range members[1:] {
			if rb.slotWinnerLess(winner, id) {
				winner = id
			}
		}
		for _, id := range members {
			if id != winner {
				rb.removeNode(id)
				rb.report.DuplicatesRemoved++
			}
		}
	}
}

// slotWinnerLess reports whether candidate b beats the current winner a.
func (rb *rebalancer) slotWinnerLess(a, b string) bool {
	na, nb := rb.w.node(a), rb.w.node(b)
	if c := compareBool(rb.touched[a], rb.touched[b]); c != 0 {
		return c < 0
	}
	if c := compareBool(na.Locked, nb.Locked); c != 0 {
		return c < 0
	}
	if c := compareBool(na.Status == types.StatusConfirmed, nb.Status == types.StatusConfirmed); c != 0 {
		return c < 0
	}
	if c := compareFloat(na.Confidence, nb.Confidence); c != 0 {
		return c < 0
	}
	if c := compareFloat(na.ImportanceOr(0.5), nb.ImportanceOr(0.5)); c != 0 {
		return c < 0
	}
	va, _ := extractNumber(na.Statement)
	vb, _ := extractNumber(nb.Statement)
	if c := compareFloat(va, vb); c != 0 {
		return c < 0
	}
	return b < a
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
