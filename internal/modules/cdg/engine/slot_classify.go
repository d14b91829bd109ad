package engine

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// Slot families.
const (
	FamilyPeople             = "people"
	FamilyDestination        = "destination"
	FamilySubLocation        = "sub_location"
	FamilyDurationTotal      = "duration_total"
	FamilyBudget             = "budget"
	FamilyLodging            = "lodging"
	FamilyScenicPreference   = "scenic_preference"
	FamilyActivityPreference = "activity_preference"
	FamilyMeetingDuration    = "meeting_duration"
	FamilyMeetingCriticalDay = "meeting_critical_day"
	FamilyHealth             = "health"
)

const strongHintScore = 1.0

// SlotKey identifies the concern a node stands for. Qualifier is only set for
// families that can legitimately repeat (destination:paris, destination:kyoto).
type SlotKey struct {
	Family    string
	Qualifier string
}

func (k SlotKey) String() string {
	if k.Qualifier == "" {
		return k.Family
	}
	return k.Family + ":" + k.Qualifier
}

//go:embed slot_rules.yaml
var slotRulesFS embed.FS

type yamlSlotRules struct {
	Rules    string         `yaml:"rules"`
	Version  int            `yaml:"version"`
	Slots    []yamlSlotRule `yaml:"slots"`
	Hints    []yamlHintRule `yaml:"hints"`
	Adjacent [][]string     `yaml:"adjacent"`
}

type yamlSlotRule struct {
	Family      string     `yaml:"family"`
	Types       []string   `yaml:"types"`
	AllOf       [][]string `yaml:"all_of"`
	Patterns    []string   `yaml:"patterns"`
	Capture     bool       `yaml:"capture"`
	NeedsNumber bool       `yaml:"needs_number"`
}

type yamlHintRule struct {
	Family string   `yaml:"family"`
	Weight float64  `yaml:"weight"`
	Risk   bool     `yaml:"risk"`
	Terms  []string `yaml:"terms"`
}

type slotRule struct {
	family      string
	types       map[types.NodeType]bool
	allOf       [][]string
	patterns    []*regexp.Regexp
	capture     bool
	needsNumber bool
}

type hintRule struct {
	family string
	weight float64
	risk   bool
	terms  []string
}

// SlotRules is a compiled rule table.
type SlotRules struct {
	Version  int
	slots    []slotRule
	hints    []hintRule
	families []string
	adjacent map[[2]string]bool
}

var (
	rulesMu     sync.RWMutex
	activeRules *SlotRules
	defaultOnce sync.Once
	defaultErr  error
)

// LoadSlotRules installs the rule table read from path, or the embedded table
// when path is empty. On failure the previously active table stays in place.
func LoadSlotRules(path string) error {
	var data []byte
	var err error
	if path = strings.TrimSpace(path); path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = slotRulesFS.ReadFile("slot_rules.yaml")
	}
	if err != nil {
		return fmt.Errorf("read slot rules: %w", err)
	}
	rules, err := ParseSlotRules(data)
	if err != nil {
		return err
	}
	rulesMu.Lock()
	activeRules = rules
	rulesMu.Unlock()
	return nil
}

func currentRules() *SlotRules {
	defaultOnce.Do(func() {
		rulesMu.RLock()
		ready := activeRules != nil
		rulesMu.RUnlock()
		if !ready {
			defaultErr = LoadSlotRules("")
		}
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded slot rules are invalid: %v", defaultErr))
	}
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	return activeRules
}

// ParseSlotRules compiles a YAML rule document.
func ParseSlotRules(data []byte) (*SlotRules, error) {
	var spec yamlSlotRules
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse slot rules: %w", err)
	}
	if strings.TrimSpace(spec.Rules) != "cdg_slots" {
		return nil, fmt.Errorf("unexpected rule document: %q", spec.Rules)
	}
	if len(spec.Slots) == 0 {
		return nil, errors.New("no slot rules defined")
	}
	out := &SlotRules{Version: spec.Version, adjacent: map[[2]string]bool{}}
	seenFamily := map[string]bool{}
	for i, r := range spec.Slots {
		fam := strings.TrimSpace(r.Family)
		if fam == "" {
			return nil, fmt.Errorf("slot rule %d: family is required", i)
		}
		if len(r.AllOf) == 0 && len(r.Patterns) == 0 {
			return nil, fmt.Errorf("slot rule %s: needs all_of or patterns", fam)
		}
		if r.Capture && len(r.Patterns) == 0 {
			return nil, fmt.Errorf("slot rule %s: capture without patterns", fam)
		}
		rule := slotRule{family: fam, types: map[types.NodeType]bool{}, capture: r.Capture, needsNumber: r.NeedsNumber}
		for _, t := range r.Types {
			nt := types.NodeType(strings.TrimSpace(t))
			if !types.ValidNodeType(nt) || nt == types.NodeGoal {
				return nil, fmt.Errorf("slot rule %s: bad node type %q", fam, t)
			}
			rule.types[nt] = true
		}
		for _, group := range r.AllOf {
			terms := lowerTerms(group)
			if len(terms) == 0 {
				return nil, fmt.Errorf("slot rule %s: empty all_of group", fam)
			}
			rule.allOf = append(rule.allOf, terms)
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("slot rule %s: %w", fam, err)
			}
			if r.Capture && re.NumSubexp() < 1 {
				return nil, fmt.Errorf("slot rule %s: pattern %q has no capture group", fam, p)
			}
			rule.patterns = append(rule.patterns, re)
		}
		out.slots = append(out.slots, rule)
		if !seenFamily[fam] {
			seenFamily[fam] = true
			out.families = append(out.families, fam)
		}
	}
	for _, h := range spec.Hints {
		fam := strings.TrimSpace(h.Family)
		if !seenFamily[fam] {
			return nil, fmt.Errorf("hint rule references unknown family %q", h.Family)
		}
		if h.Weight <= 0 || math.IsNaN(h.Weight) {
			return nil, fmt.Errorf("hint rule %s: weight must be positive", fam)
		}
		out.hints = append(out.hints, hintRule{family: fam, weight: h.Weight, risk: h.Risk, terms: lowerTerms(h.Terms)})
	}
	for _, pair := range spec.Adjacent {
		if len(pair) != 2 || !seenFamily[pair[0]] || !seenFamily[pair[1]] {
			return nil, fmt.Errorf("bad adjacency entry %v", pair)
		}
		out.adjacent[[2]string{pair[0], pair[1]}] = true
		out.adjacent[[2]string{pair[1], pair[0]}] = true
	}
	return out, nil
}

func lowerTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ClassifySlot maps a node to its slot key. Goals never carry a slot.
func ClassifySlot(n types.ConceptNode) (SlotKey, bool) {
	return currentRules().Classify(n)
}

func (r *SlotRules) Classify(n types.ConceptNode) (SlotKey, bool) {
	if n.Type == types.NodeGoal {
		return SlotKey{}, false
	}
	stmt := types.NormalizeStatement(n.Statement)
	lower := strings.ToLower(stmt)
	for _, rule := range r.slots {
		if !rule.types[n.Type] {
			continue
		}
		if !containsAllGroups(lower, rule.allOf) {
			continue
		}
		if rule.needsNumber {
			if _, ok := extractNumber(stmt); !ok {
				continue
			}
		}
		if rule.capture {
			for _, re := range rule.patterns {
				m := re.FindStringSubmatch(stmt)
				if len(m) < 2 {
					continue
				}
				if q := normalizeQualifier(m[1]); q != "" {
					return SlotKey{Family: rule.family, Qualifier: q}, true
				}
			}
			continue
		}
		if len(rule.patterns) > 0 && !anyPattern(stmt, rule.patterns) {
			continue
		}
		return SlotKey{Family: rule.family}, true
	}
	return SlotKey{}, false
}

func containsAllGroups(lower string, groups [][]string) bool {
	for _, g := range groups {
		if !containsAny(lower, g) {
			return false
		}
	}
	return true
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func anyPattern(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func normalizeQualifier(q string) string {
	q = strings.ToLower(strings.Join(strings.Fields(q), " "))
	return strings.TrimFunc(q, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// hintScore is the per-family text evidence for a free node.
type hintScore struct {
	scores map[string]float64
	risk   bool
}

func (h hintScore) best(order []string) (string, float64) {
	bestFam, bestScore := "", 0.0
	for _, fam := range order {
		if s := h.scores[fam]; s > bestScore {
			bestFam, bestScore = fam, s
		}
	}
	return bestFam, bestScore
}

// scoreHints scores text against the hint table. qualifiers lists the slot
// qualifiers already present in the graph per family; a mention adds a full
// point to that family.
func (r *SlotRules) scoreHints(text string, qualifiers map[string][]string) hintScore {
	lower := strings.ToLower(text)
	out := hintScore{scores: map[string]float64{}}
	for _, h := range r.hints {
		for _, t := range h.terms {
			if strings.Contains(lower, t) {
				out.scores[h.family] += h.weight
				if h.risk {
					out.risk = true
				}
			}
		}
	}
	for _, fam := range []string{FamilyDestination, FamilySubLocation} {
		for _, q := range qualifiers[fam] {
			if q != "" && strings.Contains(lower, q) {
				out.scores[fam] += 1.0
				break
			}
		}
	}
	return out
}

func (r *SlotRules) adjacentFamilies(a, b string) bool {
	return r.adjacent[[2]string{a, b}]
}

var numberPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(k|K|千|万|w|W)?`)

// extractNumber returns the largest number embedded in s, honouring k/千/万
// multipliers and thousands separators.
func extractNumber(s string) (float64, bool) {
	found := false
	best := 0.0
	for _, m := range numberPattern.FindAllStringSubmatch(s, -1) {
		v, ok := parseAmount(m[1])
		if !ok {
			continue
		}
		switch m[2] {
		case "k", "K", "千":
			v *= 1000
		case "万", "w", "W":
			v *= 10000
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

func parseAmount(raw string) (float64, bool) {
	clean := raw
	if strings.Count(raw, ",") > 0 {
		clean = strings.ReplaceAll(raw, ",", "")
	}
	if strings.Count(clean, ".") > 1 {
		clean = strings.ReplaceAll(clean, ".", "")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
