package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/engine"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
)

const sampleLimit = 5

type InvariantCheck struct {
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Count   int            `json:"count"`
	Sample  []string       `json:"sample,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type InvariantReport struct {
	Status    string           `json:"status"`
	CheckedAt time.Time        `json:"checked_at"`
	GraphID   string           `json:"graph_id,omitempty"`
	Version   int64            `json:"version"`
	Checks    []InvariantCheck `json:"checks"`
}

// Failed lists the checks that did not pass.
func (r InvariantReport) Failed() []InvariantCheck {
	var out []InvariantCheck
	for _, c := range r.Checks {
		if c.Status != "pass" {
			out = append(out, c)
		}
	}
	return out
}

// Err returns nil for a passing report and an ErrInvariant-wrapped error naming
// the failed checks otherwise.
func (r InvariantReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, c := range failed {
		names = append(names, fmt.Sprintf("%s(%d)", c.Name, c.Count))
	}
	return fmt.Errorf("%w: graph %s v%d failed %s", cdgerrors.ErrInvariant, r.GraphID, r.Version, strings.Join(names, ", "))
}

// CheckInvariants verifies a committed graph: one goal, acyclic structural
// edges, every node reaching the goal, one node per slot key, no dangling
// edges and no invalid node fields.
func CheckInvariants(g types.CDG) InvariantReport {
	report := InvariantReport{
		CheckedAt: time.Now().UTC(),
		GraphID:   g.ID,
		Version:   g.Version,
	}
	root, rootCheck := checkSingleRoot(g)
	report.Checks = []InvariantCheck{
		rootCheck,
		checkDanglingEdges(g),
		checkStructuralCycles(g),
		checkRootReachability(g, root),
		checkDuplicateSlots(g),
		checkNodeFields(g),
	}
	report.Status = "pass"
	if len(report.Failed()) > 0 {
		report.Status = "fail"
	}
	return report
}

func checkSingleRoot(g types.CDG) (string, InvariantCheck) {
	check := InvariantCheck{Name: "single_root", Status: "pass"}
	var goals []string
	for _, n := range g.Nodes {
		if n.Type == types.NodeGoal {
			goals = append(goals, n.ID)
		}
	}
	check.Count = len(goals)
	if len(goals) != 1 {
		check.Status = "fail"
		check.Sample = sample(goals)
		return "", check
	}
	return goals[0], check
}

func checkDanglingEdges(g types.CDG) InvariantCheck {
	check := InvariantCheck{Name: "dangling_edges", Status: "pass"}
	ids := nodeSet(g)
	var bad []string
	for _, e := range g.Edges {
		if !ids[e.From] || !ids[e.To] {
			bad = append(bad, e.ID)
		}
	}
	if len(bad) > 0 {
		check.Status = "fail"
		check.Count = len(bad)
		check.Sample = sample(bad)
	}
	return check
}

// checkStructuralCycles peels zero in-degree nodes; whatever remains sits on
// or behind a cycle.
func checkStructuralCycles(g types.CDG) InvariantCheck {
	check := InvariantCheck{Name: "structural_cycles", Status: "pass"}
	ids := nodeSet(g)
	adj := map[string][]string{}
	indeg := map[string]int{}
	for _, n := range g.Nodes {
		indeg[n.ID] = 0
	}
	for _, e := range g.Edges {
		if !e.Type.Structural() || !ids[e.From] || !ids[e.To] {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		indeg[e.To]++
	}
	queue := make([]string, 0, len(indeg))
	for id, deg := range indeg {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, to := range adj[n] {
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	var remaining []string
	for id, deg := range indeg {
		if deg > 0 {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) > 0 {
		sort.Strings(remaining)
		check.Status = "fail"
		check.Count = len(remaining)
		check.Sample = sample(remaining)
	}
	return check
}

func checkRootReachability(g types.CDG, root string) InvariantCheck {
	check := InvariantCheck{Name: "root_reachability", Status: "pass"}
	if root == "" {
		check.Status = "skipped"
		check.Details = map[string]any{"reason": "no_single_root"}
		return check
	}
	rev := map[string][]string{}
	for _, e := range g.Edges {
		if e.Type.Structural() {
			rev[e.To] = append(rev[e.To], e.From)
		}
	}
	seen := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, prev := range rev[cur] {
			if !seen[prev] {
				seen[prev] = true
				stack = append(stack, prev)
			}
		}
	}
	var missing []string
	for _, n := range g.Nodes {
		if !seen[n.ID] {
			missing = append(missing, n.ID)
		}
	}
	if len(missing) > 0 {
		check.Status = "fail"
		check.Count = len(missing)
		check.Sample = sample(missing)
	}
	return check
}

func checkDuplicateSlots(g types.CDG) InvariantCheck {
	check := InvariantCheck{Name: "duplicate_slots", Status: "pass"}
	owners := map[string][]string{}
	var keys []string
	for _, n := range g.Nodes {
		key, ok := engine.ClassifySlot(n)
		if !ok {
			continue
		}
		k := key.String()
		if _, seen := owners[k]; !seen {
			keys = append(keys, k)
		}
		owners[k] = append(owners[k], n.ID)
	}
	var dup []string
	for _, k := range keys {
		if len(owners[k]) > 1 {
			dup = append(dup, fmt.Sprintf("%s:%s", k, strings.Join(owners[k], "|")))
			check.Count += len(owners[k])
		}
	}
	if len(dup) > 0 {
		check.Status = "fail"
		check.Sample = sample(dup)
	}
	check.Details = map[string]any{"slots": len(keys)}
	return check
}

func checkNodeFields(g types.CDG) InvariantCheck {
	check := InvariantCheck{Name: "node_fields", Status: "pass"}
	var bad []string
	for _, n := range g.Nodes {
		nn, err := types.NormalizeNode(n)
		if err != nil || !types.NodeFieldsEqual(n, nn) {
			bad = append(bad, n.ID)
		}
	}
	if len(bad) > 0 {
		check.Status = "fail"
		check.Count = len(bad)
		check.Sample = sample(bad)
	}
	return check
}

func nodeSet(g types.CDG) map[string]bool {
	out := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = true
	}
	return out
}

func sample(ids []string) []string {
	if len(ids) <= sampleLimit {
		return ids
	}
	return ids[:sampleLimit]
}
