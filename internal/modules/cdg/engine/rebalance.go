package engine

import (
	"fmt"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
)

// Options are the only knobs callers control; every threshold is derived.
type Options struct {
	AllowDeletes bool
	NewID        IDGenerator
}

func (o Options) idGenerator() IDGenerator {
	if o.NewID != nil {
		return o.NewID
	}
	return UUIDGenerator
}

// Report carries per-stage counters for logging and metrics.
type Report struct {
	Normalized          bool   `json:"normalized"`
	DuplicatesRemoved   int    `json:"duplicates_removed"`
	RootID              string `json:"root_id"`
	RootSynthesized     bool   `json:"root_synthesized"`
	GoalsRemoved        int    `json:"goals_removed"`
	RootOutEdgesRemoved int    `json:"root_out_edges_removed"`
	SkeletonEdgesAdded  int    `json:"skeleton_edges_added"`
	SkeletonEdgesMerged int    `json:"skeleton_edges_merged"`
	Params              Params `json:"params"`
	AnchorsDirect       int    `json:"anchors_direct"`
	AnchorsSearched     int    `json:"anchors_searched"`
	AnchorSteps         int    `json:"anchor_steps"`
	FanInPruned         int    `json:"fan_in_pruned"`
	CycleRounds         int    `json:"cycle_rounds"`
	CycleEdgesRemoved   int    `json:"cycle_edges_removed"`
	ReducedEdges        int    `json:"reduced_edges"`
	RepairedEdges       int    `json:"repaired_edges"`
	OptimizationSkipped bool   `json:"optimization_skipped"`
}

// Result is the committed outcome of one patch + rebalance cycle.
type Result struct {
	Graph   types.CDG
	Applied []types.PatchOp
	Dropped []DroppedOp
	IDMap   map[string]string
	Touched []string
	Changed bool
	Report  Report
}

// Apply runs the full pipeline: patch application, slot compaction, root
// selection, skeleton wiring, anchoring, cycle breaking, reduction and repair.
// The input graph is never mutated. Version is bumped iff the committed graph
// differs from g.
func Apply(g types.CDG, patch types.GraphPatch, opts Options) (Result, error) {
	norm, fixed := types.Normalize(g.Clone())
	w := newWorkGraph(norm)

	app := newApplicator(w, opts)
	app.run(patch)

	rb := newRebalancer(w, currentRules(), opts.idGenerator(), app.touched)
	rb.report.Normalized = fixed
	if err := rb.run(g); err != nil {
		return Result{}, err
	}

	out := w.snapshot()
	out.Version = g.Version
	changed := !types.Equal(g, out)
	if changed {
		out.Version = g.Version + 1
	}

	touched := make([]string, 0, len(rb.touched))
	for _, id := range w.order {
		if rb.touched[id] {
			touched = append(touched, id)
		}
	}
	return Result{
		Graph:   out,
		Applied: app.applied,
		Dropped: app.dropped,
		IDMap:   app.idMap,
		Touched: touched,
		Changed: changed,
		Report:  rb.report,
	}, nil
}

type rebalancer struct {
	w       *workGraph
	rules   *SlotRules
	ids     IDGenerator
	touched map[string]bool

	slots     map[string]SlotKey
	hints     map[string]hintScore
	protected map[string]bool
	rootID    string
	params    Params
	sim       *textSimilarity

	report Report
}

func newRebalancer(w *workGraph, rules *SlotRules, ids IDGenerator, touched map[string]bool) *rebalancer {
	if touched == nil {
		touched = map[string]bool{}
	}
	return &rebalancer{
		w:         w,
		rules:     rules,
		ids:       ids,
		touched:   touched,
		slots:     map[string]SlotKey{},
		hints:     map[string]hintScore{},
		protected: map[string]bool{},
		sim:       newTextSimilarity(w),
	}
}

func (rb *rebalancer) run(prior types.CDG) error {
	rb.classifySlots()
	rb.compactSlots()
	rb.selectRoot()
	rb.buildSkeleton()
	rb.params = tuneParams(rb.w)
	rb.report.Params = rb.params
	rb.assignAnchors()

	// Lossy passes only run when this cycle already changed something, so a
	// settled graph is a fixed point.
	dirty := !types.Equal(prior, rb.w.snapshot())
	if dirty {
		rb.capRootFanIn()
	} else {
		rb.report.OptimizationSkipped = true
	}
	if err := rb.breakCycles(); err != nil {
		return err
	}
	if dirty {
		rb.reduceTransitive()
	}
	rb.repairConnectivity()
	return nil
}

func (rb *rebalancer) classifySlots() {
	rb.slots = map[string]SlotKey{}
	for _, n := range rb.w.nodeList() {
		if key, ok := rb.rules.Classify(*n); ok {
			rb.slots[n.ID] = key
		}
	}
}

// slotNodes returns the ids of the slot nodes in the family, in node order.
func (rb *rebalancer) slotNodes(family string) []string {
	var out []string
	for _, id := range rb.w.order {
		if k, ok := rb.slots[id]; ok && k.Family == family {
			out = append(out, id)
		}
	}
	return out
}

func (rb *rebalancer) firstSlot(family string) string {
	if ids := rb.slotNodes(family); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func (rb *rebalancer) hintFor(id string) hintScore {
	if h, ok := rb.hints[id]; ok {
		return h
	}
	n := rb.w.node(id)
	if n == nil {
		return hintScore{}
	}
	quals := map[string][]string{}
	for _, nid := range rb.w.order {
		if k, ok := rb.slots[nid]; ok && k.Qualifier != "" && nid != id {
			quals[k.Family] = append(quals[k.Family], k.Qualifier)
		}
	}
	h := rb.rules.scoreHints(n.Statement, quals)
	rb.hints[id] = h
	return h
}

// healthRelated reports whether the node is the health slot or carries risk text.
func (rb *rebalancer) healthRelated(id string) bool {
	if k, ok := rb.slots[id]; ok && k.Family == FamilyHealth {
		return true
	}
	return rb.hintFor(id).risk
}

// ensureEdge adds the (from, to, type) edge or raises the confidence of the
// existing one. The edge is marked protected either way.
func (rb *rebalancer) ensureEdge(from, to string, typ types.EdgeType, conf float64, rationale string) (added, merged bool) {
	if from == to || rb.w.node(from) == nil || rb.w.node(to) == nil {
		return false, false
	}
	if e := rb.w.findEdge(from, to, typ); e != nil {
		rb.protected[e.ID] = true
		if conf > e.Confidence {
			e.Confidence = types.Clamp01(conf, e.Confidence)
			return false, true
		}
		return false, false
	}
	e := rb.w.newEdge(rb.ids, from, to, typ, conf, rationale)
	rb.protected[e.ID] = true
	return true, false
}

func (rb *rebalancer) removeEdge(id string) {
	rb.w.removeEdge(id)
	delete(rb.protected, id)
}

func (rb *rebalancer) removeNode(id string) {
	for _, e := range rb.w.outgoing(id) {
		delete(rb.protected, e.ID)
	}
	for _, e := range rb.w.incoming(id) {
		delete(rb.protected, e.ID)
	}
	rb.w.removeNode(id)
	delete(rb.slots, id)
	delete(rb.hints, id)
	delete(rb.touched, id)
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{cdgerrors.ErrInvariant}, args...)...)
}
