package cdg

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	MaxIDLength        = 128
	MaxStatementRunes  = 280
	MaxTags            = 8
	defaultConfidence  = 0.5
	maxProvenanceItems = 32
)

var validate = validator.New()

// ValidID reports whether id is usable as a node or edge id.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeGoal, NodeConstraint, NodePreference, NodeBelief, NodeFact, NodeQuestion:
		return true
	}
	return false
}

func ValidEdgeType(t EdgeType) bool {
	switch t {
	case EdgeEnable, EdgeConstraint, EdgeDetermine, EdgeConflictsWith:
		return true
	}
	return false
}

func ValidStatus(s NodeStatus) bool {
	switch s {
	case StatusProposed, StatusConfirmed, StatusRejected, StatusDisputed:
		return true
	}
	return false
}

func ValidStrength(s Strength) bool { return s == StrengthHard || s == StrengthSoft }

func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Clamp01 clamps v to [0,1]; NaN maps to def.
func Clamp01(v float64, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeStatement collapses whitespace and caps the rune length.
func NormalizeStatement(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxStatementRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxStatementRunes]))
}

// NormalizeTags trims, lower-cases, de-duplicates and caps the tag set.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func NormalizeRefs(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
		if len(out) == maxProvenanceItems {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeNode sanitizes optional fields and rejects nodes whose id, type or
// statement are unusable.
func NormalizeNode(n ConceptNode) (ConceptNode, error) {
	out := n.Clone()
	out.ID = strings.TrimSpace(out.ID)
	out.Statement = NormalizeStatement(out.Statement)
	if !ValidID(out.ID) {
		return out, fmt.Errorf("invalid node id %q", n.ID)
	}
	if !ValidNodeType(out.Type) {
		return out, fmt.Errorf("invalid node type %q", n.Type)
	}
	if out.Statement == "" {
		return out, fmt.Errorf("empty statement for node %s", out.ID)
	}
	if !ValidStatus(out.Status) {
		out.Status = StatusProposed
	}
	if out.Strength != "" && !ValidStrength(out.Strength) {
		out.Strength = ""
	}
	if out.Severity != "" && !ValidSeverity(out.Severity) {
		out.Severity = ""
	}
	out.Confidence = Clamp01(out.Confidence, defaultConfidence)
	if out.Importance != nil {
		v := Clamp01(*out.Importance, defaultConfidence)
		out.Importance = &v
	}
	out.Tags = NormalizeTags(out.Tags)
	out.EvidenceIDs = NormalizeRefs(out.EvidenceIDs)
	out.SourceMsgIDs = NormalizeRefs(out.SourceMsgIDs)
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("node %s: %w", out.ID, err)
	}
	return out, nil
}

// NormalizeEdge checks the edge shape; endpoint existence is the caller's job.
func NormalizeEdge(e ConceptEdge) (ConceptEdge, error) {
	out := e
	out.ID = strings.TrimSpace(out.ID)
	out.From = strings.TrimSpace(out.From)
	out.To = strings.TrimSpace(out.To)
	out.Rationale = NormalizeStatement(out.Rationale)
	if !ValidID(out.ID) {
		return out, fmt.Errorf("invalid edge id %q", e.ID)
	}
	if !ValidID(out.From) || !ValidID(out.To) {
		return out, fmt.Errorf("invalid endpoints for edge %s", out.ID)
	}
	if !ValidEdgeType(out.Type) {
		return out, fmt.Errorf("invalid edge type %q", e.Type)
	}
	out.Confidence = Clamp01(out.Confidence, defaultConfidence)
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("edge %s: %w", out.ID, err)
	}
	return out, nil
}

// Normalize drops unusable nodes, duplicate ids and dangling edges. The boolean
// reports whether anything had to be fixed.
func Normalize(g CDG) (CDG, bool) {
	out := CDG{ID: g.ID, Version: g.Version}
	fixed := false
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		nn, err := NormalizeNode(n)
		if err != nil || seen[nn.ID] {
			fixed = true
			continue
		}
		if !nodeFieldsEqual(n, nn) {
			fixed = true
		}
		seen[nn.ID] = true
		out.Nodes = append(out.Nodes, nn)
	}
	seenEdge := map[string]bool{}
	for _, e := range g.Edges {
		ee, err := NormalizeEdge(e)
		if err != nil || seenEdge[ee.ID] || !seen[ee.From] || !seen[ee.To] {
			fixed = true
			continue
		}
		if ee != e {
			fixed = true
		}
		seenEdge[ee.ID] = true
		out.Edges = append(out.Edges, ee)
	}
	return out, fixed
}

// Equal compares two graphs as id-keyed sets; slice order is irrelevant.
func Equal(a, b CDG) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}
	nodes := make(map[string]ConceptNode, len(a.Nodes))
	for _, n := range a.Nodes {
		nodes[n.ID] = n
	}
	for _, n := range b.Nodes {
		other, ok := nodes[n.ID]
		if !ok || !nodeFieldsEqual(other, n) {
			return false
		}
	}
	edges := make(map[string]ConceptEdge, len(a.Edges))
	for _, e := range a.Edges {
		edges[e.ID] = e
	}
	for _, e := range b.Edges {
		other, ok := edges[e.ID]
		if !ok || other != e {
			return false
		}
	}
	return true
}

func nodeFieldsEqual(a, b ConceptNode) bool {
	if a.ID != b.ID || a.Type != b.Type || a.Strength != b.Strength || a.Statement != b.Statement ||
		a.Status != b.Status || a.Confidence != b.Confidence || a.Locked != b.Locked || a.Severity != b.Severity {
		return false
	}
	if (a.Importance == nil) != (b.Importance == nil) {
		return false
	}
	if a.Importance != nil && *a.Importance != *b.Importance {
		return false
	}
	return stringSetEqual(a.Tags, b.Tags) &&
		stringSliceEqual(a.EvidenceIDs, b.EvidenceIDs) &&
		stringSliceEqual(a.SourceMsgIDs, b.SourceMsgIDs)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	return stringSliceEqual(x, y)
}

// NodeFieldsEqual is exported for callers that diff individual nodes.
func NodeFieldsEqual(a, b ConceptNode) bool { return nodeFieldsEqual(a, b) }
