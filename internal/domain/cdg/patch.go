package cdg

type PatchOpKind string

const (
	OpAddNode    PatchOpKind = "add_node"
	OpUpdateNode PatchOpKind = "update_node"
	OpRemoveNode PatchOpKind = "remove_node"
	OpAddEdge    PatchOpKind = "add_edge"
	OpRemoveEdge PatchOpKind = "remove_edge"
)

// PatchOp is a tagged variant: Op selects which of the payload fields is read.
//
//	add_node    -> Node
//	update_node -> ID + Patch
//	remove_node -> ID
//	add_edge    -> Edge
//	remove_edge -> ID
type PatchOp struct {
	Op    PatchOpKind  `json:"op"`
	Node  *ConceptNode `json:"node,omitempty"`
	Edge  *ConceptEdge `json:"edge,omitempty"`
	ID    string       `json:"id,omitempty"`
	Patch *NodeUpdate  `json:"patch,omitempty"`
}

// NodeUpdate lists the only node fields a patch may change.
// id, type and locked are deliberately absent.
type NodeUpdate struct {
	Statement    *string     `json:"statement,omitempty"`
	Status       *NodeStatus `json:"status,omitempty"`
	Confidence   *float64    `json:"confidence,omitempty"`
	Strength     *Strength   `json:"strength,omitempty"`
	Severity     *Severity   `json:"severity,omitempty"`
	Importance   *float64    `json:"importance,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	EvidenceIDs  []string    `json:"evidence_ids,omitempty"`
	SourceMsgIDs []string    `json:"source_msg_ids,omitempty"`
}

type GraphPatch struct {
	Ops   []PatchOp `json:"ops"`
	Notes string    `json:"notes,omitempty"`
}

func (op PatchOp) Clone() PatchOp {
	out := op
	if op.Node != nil {
		n := op.Node.Clone()
		out.Node = &n
	}
	if op.Edge != nil {
		e := *op.Edge
		out.Edge = &e
	}
	if op.Patch != nil {
		p := *op.Patch
		p.Tags = cloneStrings(op.Patch.Tags)
		p.EvidenceIDs = cloneStrings(op.Patch.EvidenceIDs)
		p.SourceMsgIDs = cloneStrings(op.Patch.SourceMsgIDs)
		out.Patch = &p
	}
	return out
}
