package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

func TestEmbeddedSlotRulesParse(t *testing.T) {
	data, err := slotRulesFS.ReadFile("slot_rules.yaml")
	require.NoError(t, err)
	rules, err := ParseSlotRules(data)
	require.NoError(t, err)
	assert.Contains(t, rules.families, FamilyHealth)
	assert.Contains(t, rules.families, FamilyDestination)
	assert.True(t, rules.adjacentFamilies(FamilyBudget, FamilyLodging))
	assert.True(t, rules.adjacentFamilies(FamilyLodging, FamilyBudget))
}

func TestParseSlotRulesRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"wrong kind":       "rules: other\nslots:\n  - family: x\n    types: [fact]\n    all_of: [[a]]\n",
		"no slots":         "rules: cdg_slots\n",
		"bad type":         "rules: cdg_slots\nslots:\n  - family: x\n    types: [goal]\n    all_of: [[a]]\n",
		"bad regex":        "rules: cdg_slots\nslots:\n  - family: x\n    types: [fact]\n    patterns: ['(']\n",
		"capture no group": "rules: cdg_slots\nslots:\n  - family: x\n    types: [fact]\n    capture: true\n    patterns: ['abc']\n",
		"unknown hint":     "rules: cdg_slots\nslots:\n  - family: x\n    types: [fact]\n    all_of: [[a]]\nhints:\n  - family: y\n    weight: 1\n    terms: [b]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSlotRules([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestClassifySlot(t *testing.T) {
	cases := []struct {
		typ  types.NodeType
		stmt string
		want string
	}{
		{types.NodeConstraint, "Budget cap 10000", "budget"},
		{types.NodeConstraint, "预算不超过8000元", "budget"},
		{types.NodeFact, "Trip to Paris", "destination:paris"},
		{types.NodePreference, "I want to visit New York", "destination:new york"},
		{types.NodeFact, "我们想去成都旅游", "destination:成都"},
		{types.NodeFact, "2 adults traveling together", "people"},
		{types.NodeConstraint, "The whole trip is 5 days", "duration_total"},
		{types.NodeConstraint, "I have asthma and need to avoid strenuous hikes", "health"},
		{types.NodePreference, "Prefer a ryokan hotel", "lodging"},
		{types.NodePreference, "Stay near the Gion district", "sub_location:gion"},
		{types.NodePreference, "Love mountain views", "scenic_preference"},
		{types.NodePreference, "Want to try street food", "activity_preference"},
		{types.NodeFact, "The conference lasts 3 days", "meeting_duration"},
		{types.NodeConstraint, "The keynote at the conference is on Tuesday", "meeting_critical_day"},
	}
	for _, tc := range cases {
		t.Run(tc.stmt, func(t *testing.T) {
			key, ok := ClassifySlot(types.ConceptNode{ID: "x", Type: tc.typ, Statement: tc.stmt})
			require.True(t, ok, "expected a slot")
			assert.Equal(t, tc.want, key.String())
		})
	}
}

func TestClassifySlotNoMatch(t *testing.T) {
	for _, n := range []types.ConceptNode{
		{ID: "g", Type: types.NodeGoal, Statement: "Trip to Paris"},
		{ID: "a", Type: types.NodeBelief, Statement: "Alpha consideration"},
		{ID: "b", Type: types.NodeConstraint, Statement: "Avoid high altitude areas, the altitude sickness risk is dangerous"},
		{ID: "c", Type: types.NodeConstraint, Statement: "Budget should stay reasonable"},
	} {
		_, ok := ClassifySlot(n)
		assert.False(t, ok, n.Statement)
	}
}

func TestExtractNumber(t *testing.T) {
	cases := map[string]float64{
		"cap 10000":                10000,
		"between 8,000 and 12,500": 12500,
		"about 15k":                15000,
		"1.5万":                     15000,
		"3千元":                      3000,
	}
	for in, want := range cases {
		got, ok := extractNumber(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, ok := extractNumber("no digits here")
	assert.False(t, ok)
}

func TestHintScoresRiskText(t *testing.T) {
	h := currentRules().scoreHints("Avoid high altitude areas, the altitude sickness risk is dangerous", nil)
	assert.True(t, h.risk)
	fam, score := h.best(currentRules().families)
	assert.Equal(t, FamilyHealth, fam)
	assert.GreaterOrEqual(t, score, strongHintScore)
}

func TestTokenizeMixesScripts(t *testing.T) {
	toks := tokenize("Visit 成都 pandas, sightseeing!")
	assert.True(t, toks["visit"])
	assert.True(t, toks["成都"])
	assert.True(t, toks["pandas"])
	assert.True(t, toks["sightseeing"])
	assert.True(t, toks["#sig"])
	assert.False(t, toks["the"])

	assert.Greater(t, jaccard(tokenize("去成都看熊猫"), tokenize("成都熊猫基地")), 0.0)
	assert.Equal(t, 0.0, jaccard(tokenize("alpha"), tokenize("beta")))
}
