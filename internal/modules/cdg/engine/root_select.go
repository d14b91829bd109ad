package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// selectRoot leaves exactly one goal in the graph and makes it a sink.
func (rb *rebalancer) selectRoot() {
	var goals []string
	for _, n := range rb.w.nodeList() {
		if n.Type == types.NodeGoal {
			goals = append(goals, n.ID)
		}
	}
	if len(goals) == 0 {
		rb.rootID = rb.synthesizeRoot()
		rb.report.RootSynthesized = true
	} else {
		root := goals[0]
		for _, id := range goals[1:] {
			if rb.rootLess(root, id) {
				root = id
			}
		}
		for _, id := range goals {
			if id != root {
				rb.removeNode(id)
				rb.report.GoalsRemoved++
			}
		}
		rb.rootID = root
	}
	rb.report.RootID = rb.rootID
	for _, e := range rb.w.outgoing(rb.rootID) {
		rb.removeEdge(e.ID)
		rb.report.RootOutEdgesRemoved++
	}
}

func (rb *rebalancer) rootLess(a, b string) bool {
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
	if c := compareBool(na.Status != types.StatusRejected, nb.Status != types.StatusRejected); c != 0 {
		return c < 0
	}
	if c := compareFloat(na.ImportanceOr(0.5), nb.ImportanceOr(0.5)); c != 0 {
		return c < 0
	}
	if c := compareFloat(na.Confidence, nb.Confidence); c != 0 {
		return c < 0
	}
	la, lb := utf8.RuneCountInString(na.Statement), utf8.RuneCountInString(nb.Statement)
	if la != lb {
		return lb < la
	}
	return b < a
}

func (rb *rebalancer) synthesizeRoot() string {
	importance := 1.0
	n := types.ConceptNode{
		ID:         rb.ids(string(kindNode)),
		Type:       types.NodeGoal,
		Statement:  rb.syntheticGoalStatement(),
		Status:     types.StatusProposed,
		Confidence: 0.5,
		Importance: &importance,
		Tags:       []string{"synthetic"},
	}
	rb.w.addNode(n)
	rb.touched[n.ID] = true
	return n.ID
}

func (rb *rebalancer) syntheticGoalStatement() string {
	var places []string
	for _, id := range rb.slotNodes(FamilyDestination) {
		places = append(places, titleCase(rb.slots[id].Qualifier))
	}
	if len(places) > 0 {
		return "Plan a trip to " + joinAnd(places)
	}
	var families []string
	seen := map[string]bool{}
	for _, id := range rb.w.order {
		k, ok := rb.slots[id]
		if !ok || seen[k.Family] {
			continue
		}
		seen[k.Family] = true
		families = append(families, strings.ReplaceAll(k.Family, "_", " "))
	}
	if len(families) > 0 {
		return "Plan a trip covering " + joinAnd(families)
	}
	return "Clarify the user's goal"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
