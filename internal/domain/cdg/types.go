package cdg

// NodeType is the role a concept plays in the user's plan.
type NodeType string

const (
	NodeGoal       NodeType = "goal"
	NodeConstraint NodeType = "constraint"
	NodePreference NodeType = "preference"
	NodeBelief     NodeType = "belief"
	NodeFact       NodeType = "fact"
	NodeQuestion   NodeType = "question"
)

type Strength string

const (
	StrengthHard Strength = "hard"
	StrengthSoft Strength = "soft"
)

type NodeStatus string

const (
	StatusProposed  NodeStatus = "proposed"
	StatusConfirmed NodeStatus = "confirmed"
	StatusRejected  NodeStatus = "rejected"
	StatusDisputed  NodeStatus = "disputed"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type EdgeType string

const (
	EdgeEnable        EdgeType = "enable"
	EdgeConstraint    EdgeType = "constraint"
	EdgeDetermine     EdgeType = "determine"
	EdgeConflictsWith EdgeType = "conflicts_with"
)

// Structural reports whether the edge participates in the rooted DAG.
// conflicts_with edges are annotations and are ignored by every topology pass.
func (t EdgeType) Structural() bool { return t != EdgeConflictsWith }

// ConceptNode is one goal/constraint/preference/... inferred from the dialogue.
type ConceptNode struct {
	ID         string     `json:"id" validate:"required,max=128"`
	Type       NodeType   `json:"type" validate:"required,oneof=goal constraint preference belief fact question"`
	Strength   Strength   `json:"strength,omitempty" validate:"omitempty,oneof=hard soft"`
	Statement  string     `json:"statement" validate:"required"`
	Status     NodeStatus `json:"status" validate:"omitempty,oneof=proposed confirmed rejected disputed"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
	Locked     bool       `json:"locked,omitempty"`
	Severity   Severity   `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Importance *float64   `json:"importance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Tags       []string   `json:"tags,omitempty"`

	EvidenceIDs  []string `json:"evidence_ids,omitempty"`
	SourceMsgIDs []string `json:"source_msg_ids,omitempty"`
}

// ImportanceOr returns the node importance, or def when it is unset.
func (n ConceptNode) ImportanceOr(def float64) float64 {
	if n.Importance == nil {
		return def
	}
	return *n.Importance
}

type ConceptEdge struct {
	ID         string   `json:"id" validate:"required,max=128"`
	From       string   `json:"from" validate:"required"`
	To         string   `json:"to" validate:"required"`
	Type       EdgeType `json:"type" validate:"required,oneof=enable constraint determine conflicts_with"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Rationale  string   `json:"rationale,omitempty"`
}

// CDG is a committed concept dependency graph snapshot.
type CDG struct {
	ID      string        `json:"id"`
	Version int64         `json:"version"`
	Nodes   []ConceptNode `json:"nodes"`
	Edges   []ConceptEdge `json:"edges"`
}

// Clone returns a deep copy so callers can treat snapshots as immutable values.
func (g CDG) Clone() CDG {
	out := CDG{ID: g.ID, Version: g.Version}
	out.Nodes = make([]ConceptNode, len(g.Nodes))
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Edges = make([]ConceptEdge, len(g.Edges))
	copy(out.Edges, g.Edges)
	return out
}

func (n ConceptNode) Clone() ConceptNode {
	out := n
	if n.Importance != nil {
		v := *n.Importance
		out.Importance = &v
	}
	out.Tags = cloneStrings(n.Tags)
	out.EvidenceIDs = cloneStrings(n.EvidenceIDs)
	out.SourceMsgIDs = cloneStrings(n.SourceMsgIDs)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
