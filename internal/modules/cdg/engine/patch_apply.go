package engine

import (
	"fmt"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

type DropReason string

const (
	DropInvalidNode      DropReason = "invalid_node"
	DropInvalidEdge      DropReason = "invalid_edge"
	DropInvalidUpdate    DropReason = "invalid_update"
	DropLocked           DropReason = "locked"
	DropNotFound         DropReason = "not_found"
	DropDeletesDisabled  DropReason = "deletes_disabled"
	DropDanglingEndpoint DropReason = "dangling_endpoint"
	DropUnknownOp        DropReason = "unknown_op"
	DropNoop             DropReason = "noop"
)

type DroppedOp struct {
	Op     types.PatchOp `json:"op"`
	Reason DropReason    `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// ApplyResult is the outcome of applying one patch without rebalancing.
type ApplyResult struct {
	Graph   types.CDG
	Applied []types.PatchOp
	Dropped []DroppedOp
	IDMap   map[string]string
	Touched map[string]bool
}

// ApplyPatch validates and applies patch to g. It never fails: every op that
// cannot be applied is dropped individually and reported in Dropped.
func ApplyPatch(g types.CDG, patch types.GraphPatch, opts Options) ApplyResult {
	norm, _ := types.Normalize(g.Clone())
	w := newWorkGraph(norm)
	a := newApplicator(w, opts)
	a.run(patch)
	return ApplyResult{
		Graph:   w.snapshot(),
		Applied: a.applied,
		Dropped: a.dropped,
		IDMap:   a.idMap,
		Touched: a.touched,
	}
}

type applicator struct {
	w            *workGraph
	ids          IDGenerator
	allowDeletes bool

	idMap   map[string]string
	applied []types.PatchOp
	dropped []DroppedOp
	touched map[string]bool
}

func newApplicator(w *workGraph, opts Options) *applicator {
	return &applicator{
		w:            w,
		ids:          opts.idGenerator(),
		allowDeletes: opts.AllowDeletes,
		idMap:        map[string]string{},
		touched:      map[string]bool{},
	}
}

func (a *applicator) run(patch types.GraphPatch) {
	for _, raw := range patch.Ops {
		op := raw.Clone()
		switch op.Op {
		case types.OpAddNode:
			a.addNode(op)
		case types.OpUpdateNode:
			a.updateNode(op)
		case types.OpRemoveNode:
			a.removeNode(op)
		case types.OpAddEdge:
			a.addEdge(op)
		case types.OpRemoveEdge:
			a.removeEdge(op)
		default:
			a.drop(op, DropUnknownOp, fmt.Sprintf("unknown op %q", op.Op))
		}
	}
}

func (a *applicator) drop(op types.PatchOp, reason DropReason, detail string) {
	a.dropped = append(a.dropped, DroppedOp{Op: op, Reason: reason, Detail: detail})
}

// lookup rewrites a temporary id bound earlier in this patch. Unbound
// temporary ids come back unchanged and match nothing in the graph.
func (a *applicator) lookup(id string) string {
	if mapped, ok := a.idMap[id]; ok {
		return mapped
	}
	return id
}

// allocate returns the stable id for a temporary id without binding it; the
// caller binds once the op applies.
func (a *applicator) allocate(id string, kind idKind) string {
	if !IsTempID(id) {
		return id
	}
	if mapped, ok := a.idMap[id]; ok {
		return mapped
	}
	return a.ids(string(kind))
}

func (a *applicator) bind(raw, id string) {
	if IsTempID(raw) {
		a.idMap[raw] = id
	}
}

func (a *applicator) addNode(op types.PatchOp) {
	if op.Node == nil {
		a.drop(op, DropInvalidNode, "missing node payload")
		return
	}
	rawID := op.Node.ID
	if IsTempID(rawID) {
		if _, seen := a.idMap[rawID]; !seen {
			if dup := a.findSameContent(*op.Node); dup != "" {
				a.idMap[rawID] = dup
				op.Node.ID = dup
				a.drop(op, DropNoop, "duplicate of "+dup)
				return
			}
		}
	}
	n, err := types.NormalizeNode(*op.Node)
	if err != nil {
		a.drop(op, DropInvalidNode, err.Error())
		return
	}
	key := n.ID
	n.ID = a.allocate(key, kindNode)
	op.Node.ID = n.ID
	if a.w.node(n.ID) != nil {
		a.drop(op, DropNoop, "node exists")
		return
	}
	a.bind(key, n.ID)
	a.w.addNode(n)
	a.touched[n.ID] = true
	op.Node = &n
	a.applied = append(a.applied, op)
}

func (a *applicator) findSameContent(n types.ConceptNode) string {
	stmt := types.NormalizeStatement(n.Statement)
	if stmt == "" {
		return ""
	}
	for _, existing := range a.w.nodeList() {
		if existing.Type == n.Type && existing.Statement == stmt {
			return existing.ID
		}
	}
	return ""
}

func (a *applicator) updateNode(op types.PatchOp) {
	op.ID = a.lookup(op.ID)
	if op.Patch == nil {
		a.drop(op, DropInvalidUpdate, "missing patch payload")
		return
	}
	cur := a.w.node(op.ID)
	if cur == nil {
		a.drop(op, DropNotFound, "node not found")
		return
	}
	if cur.Locked {
		a.drop(op, DropLocked, "node is locked")
		return
	}
	next := cur.Clone()
	p := op.Patch
	if p.Statement != nil {
		if s := types.NormalizeStatement(*p.Statement); s != "" {
			next.Statement = s
		}
	}
	if p.Status != nil && types.ValidStatus(*p.Status) {
		next.Status = *p.Status
	}
	if p.Confidence != nil {
		next.Confidence = types.Clamp01(*p.Confidence, next.Confidence)
	}
	if p.Strength != nil && types.ValidStrength(*p.Strength) {
		next.Strength = *p.Strength
	}
	if p.Severity != nil && types.ValidSeverity(*p.Severity) {
		next.Severity = *p.Severity
	}
	if p.Importance != nil {
		v := types.Clamp01(*p.Importance, next.ImportanceOr(0.5))
		next.Importance = &v
	}
	if p.Tags != nil {
		next.Tags = types.NormalizeTags(p.Tags)
	}
	if p.EvidenceIDs != nil {
		next.EvidenceIDs = types.NormalizeRefs(p.EvidenceIDs)
	}
	if p.SourceMsgIDs != nil {
		next.SourceMsgIDs = types.NormalizeRefs(p.SourceMsgIDs)
	}
	if types.NodeFieldsEqual(*cur, next) {
		a.drop(op, DropNoop, "no field changed")
		return
	}
	*cur = next
	a.touched[cur.ID] = true
	a.applied = append(a.applied, op)
}

func (a *applicator) removeNode(op types.PatchOp) {
	if !a.allowDeletes {
		a.drop(op, DropDeletesDisabled, "remove_node disabled")
		return
	}
	op.ID = a.lookup(op.ID)
	cur := a.w.node(op.ID)
	if cur == nil {
		a.drop(op, DropNotFound, "node not found")
		return
	}
	if cur.Locked {
		a.drop(op, DropLocked, "node is locked")
		return
	}
	a.w.removeNode(op.ID)
	delete(a.touched, op.ID)
	a.applied = append(a.applied, op)
}

func (a *applicator) addEdge(op types.PatchOp) {
	if op.Edge == nil {
		a.drop(op, DropInvalidEdge, "missing edge payload")
		return
	}
	rawID := op.Edge.ID
	op.Edge.From = a.lookup(op.Edge.From)
	op.Edge.To = a.lookup(op.Edge.To)
	if rawID == "" {
		op.Edge.ID = a.ids(string(kindEdge))
	} else {
		op.Edge.ID = a.allocate(rawID, kindEdge)
	}
	e, err := types.NormalizeEdge(*op.Edge)
	if err != nil {
		a.drop(op, DropInvalidEdge, err.Error())
		return
	}
	if e.Type == types.EdgeConflictsWith && e.From == e.To {
		a.drop(op, DropInvalidEdge, "self conflict")
		return
	}
	if a.w.node(e.From) == nil || a.w.node(e.To) == nil {
		a.drop(op, DropDanglingEndpoint, "endpoint missing")
		return
	}
	if a.w.edge(e.ID) != nil {
		a.drop(op, DropNoop, "edge exists")
		return
	}
	if existing := a.w.findEdge(e.From, e.To, e.Type); existing != nil {
		if IsTempID(rawID) {
			a.idMap[rawID] = existing.ID
		}
		if e.Confidence <= existing.Confidence {
			a.drop(op, DropNoop, "duplicate of "+existing.ID)
			return
		}
		existing.Confidence = e.Confidence
		merged := *existing
		op.Edge = &merged
		a.applied = append(a.applied, op)
		return
	}
	a.bind(rawID, e.ID)
	a.w.addEdge(e)
	op.Edge = &e
	a.applied = append(a.applied, op)
}

func (a *applicator) removeEdge(op types.PatchOp) {
	if !a.allowDeletes {
		a.drop(op, DropDeletesDisabled, "remove_edge disabled")
		return
	}
	op.ID = a.lookup(op.ID)
	if a.w.edge(op.ID) == nil {
		a.drop(op, DropNotFound, "edge not found")
		return
	}
	a.w.removeEdge(op.ID)
	a.applied = append(a.applied, op)
}
