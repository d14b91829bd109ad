package cdg

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-2, 0.5))
	assert.Equal(t, 1.0, Clamp01(7, 0.5))
	assert.Equal(t, 0.25, Clamp01(0.25, 0.5))
	assert.Equal(t, 0.5, Clamp01(math.NaN(), 0.5))
}

func TestNormalizeStatement(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeStatement("  a \n b\t c "))
	long := strings.Repeat("字", MaxStatementRunes+20)
	assert.Len(t, []rune(NormalizeStatement(long)), MaxStatementRunes)
}

func TestNormalizeTags(t *testing.T) {
	assert.Nil(t, NormalizeTags(nil))
	assert.Nil(t, NormalizeTags([]string{" ", ""}))
	assert.Equal(t, []string{"food", "kyoto"}, NormalizeTags([]string{" Food", "kyoto", "FOOD"}))

	many := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, string(rune('a'+i)))
	}
	assert.Len(t, NormalizeTags(many), MaxTags)
}

func TestNormalizeNode(t *testing.T) {
	imp := 3.0
	n, err := NormalizeNode(ConceptNode{
		ID:         " n1 ",
		Type:       NodeFact,
		Statement:  " Trip   to Kyoto ",
		Status:     NodeStatus("maybe"),
		Strength:   Strength("very"),
		Severity:   Severity("extreme"),
		Confidence: 1.4,
		Importance: &imp,
		Tags:       []string{"Trip", "trip"},
	})
	require.NoError(t, err)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "Trip to Kyoto", n.Statement)
	assert.Equal(t, StatusProposed, n.Status)
	assert.Empty(t, n.Strength)
	assert.Empty(t, n.Severity)
	assert.Equal(t, 1.0, n.Confidence)
	assert.Equal(t, 1.0, n.ImportanceOr(0))
	assert.Equal(t, 3.0, imp, "input importance must not be mutated")
	assert.Equal(t, []string{"trip"}, n.Tags)

	for name, bad := range map[string]ConceptNode{
		"empty id":        {Type: NodeFact, Statement: "x"},
		"space in id":     {ID: "a b", Type: NodeFact, Statement: "x"},
		"unknown type":    {ID: "a", Type: NodeType("wish"), Statement: "x"},
		"blank statement": {ID: "a", Type: NodeFact, Statement: "  "},
	} {
		_, err := NormalizeNode(bad)
		assert.Error(t, err, name)
	}
}

func TestNormalizeEdge(t *testing.T) {
	e, err := NormalizeEdge(ConceptEdge{ID: "e", From: "a", To: "b", Type: EdgeEnable, Confidence: -1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Confidence)

	_, err = NormalizeEdge(ConceptEdge{ID: "e", From: "a", To: "", Type: EdgeEnable})
	assert.Error(t, err)
	_, err = NormalizeEdge(ConceptEdge{ID: "e", From: "a", To: "b", Type: EdgeType("causes")})
	assert.Error(t, err)
}

func TestNormalizeDropsBrokenParts(t *testing.T) {
	g := CDG{
		ID: "g",
		Nodes: []ConceptNode{
			{ID: "a", Type: NodeGoal, Statement: "Goal", Status: StatusProposed, Confidence: 0.5},
			{ID: "a", Type: NodeFact, Statement: "Duplicate", Status: StatusProposed, Confidence: 0.5},
			{ID: "b", Type: NodeType("bogus"), Statement: "Bad", Status: StatusProposed},
		},
		Edges: []ConceptEdge{
			{ID: "e1", From: "a", To: "b", Type: EdgeEnable, Confidence: 0.5},
		},
	}
	out, fixed := Normalize(g)
	assert.True(t, fixed)
	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "Goal", out.Nodes[0].Statement)
	assert.Empty(t, out.Edges)

	clean, fixed := Normalize(out)
	assert.False(t, fixed)
	assert.True(t, Equal(out, clean))
}

func TestEqualIgnoresOrderButNotContent(t *testing.T) {
	a := CDG{
		Nodes: []ConceptNode{
			{ID: "x", Type: NodeFact, Statement: "X", Tags: []string{"p", "q"}},
			{ID: "y", Type: NodeFact, Statement: "Y"},
		},
		Edges: []ConceptEdge{{ID: "e", From: "x", To: "y", Type: EdgeEnable, Confidence: 0.5}},
	}
	b := a.Clone()
	b.Nodes[0], b.Nodes[1] = b.Nodes[1], b.Nodes[0]
	assert.True(t, Equal(a, b))

	c := a.Clone()
	c.Edges[0].Confidence = 0.6
	assert.False(t, Equal(a, c))

	d := a.Clone()
	d.Nodes[0].Locked = true
	assert.False(t, Equal(a, d))
}

func TestCloneIsDeep(t *testing.T) {
	imp := 0.4
	g := CDG{Nodes: []ConceptNode{{ID: "x", Importance: &imp, Tags: []string{"t"}}}}
	c := g.Clone()
	*c.Nodes[0].Importance = 0.9
	c.Nodes[0].Tags[0] = "changed"
	assert.Equal(t, 0.4, *g.Nodes[0].Importance)
	assert.Equal(t, "t", g.Nodes[0].Tags[0])
}
