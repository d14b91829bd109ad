package engine

import (
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
)

// TempIDPrefix marks ids that only live inside one patch and must be rewritten.
const TempIDPrefix = "tmp_"

func IsTempID(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

type idKind string

const (
	kindNode idKind = "n"
	kindEdge idKind = "e"
)

// IDGenerator produces collision-free stable ids; kind is "n" or "e".
type IDGenerator func(kind string) string

func UUIDGenerator(kind string) string {
	return kind + "_" + uuid.NewString()
}

// workGraph is the mutable arena the pipeline operates on. Nodes and edges are
// addressed by id only; insertion order is kept so every pass is deterministic.
type workGraph struct {
	id      string
	version int64

	order []string
	nodes map[string]*types.ConceptNode

	edgeOrder []string
	edges     map[string]*types.ConceptEdge
}

func newWorkGraph(g types.CDG) *workGraph {
	w := &workGraph{
		id:      g.ID,
		version: g.Version,
		nodes:   make(map[string]*types.ConceptNode, len(g.Nodes)),
		edges:   make(map[string]*types.ConceptEdge, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		w.addNode(n.Clone())
	}
	for _, e := range g.Edges {
		w.addEdge(e)
	}
	return w
}

func (w *workGraph) snapshot() types.CDG {
	out := types.CDG{
		ID:      w.id,
		Version: w.version,
		Nodes:   make([]types.ConceptNode, 0, len(w.order)),
		Edges:   make([]types.ConceptEdge, 0, len(w.edgeOrder)),
	}
	for _, id := range w.order {
		out.Nodes = append(out.Nodes, w.nodes[id].Clone())
	}
	for _, id := range w.edgeOrder {
		out.Edges = append(out.Edges, *w.edges[id])
	}
	return out
}

func (w *workGraph) node(id string) *types.ConceptNode { return w.nodes[id] }

func (w *workGraph) edge(id string) *types.ConceptEdge { return w.edges[id] }

func (w *workGraph) addNode(n types.ConceptNode) {
	if _, ok := w.nodes[n.ID]; ok {
		return
	}
	c := n
	w.nodes[n.ID] = &c
	w.order = append(w.order, n.ID)
}

// removeNode deletes the node and every incident edge; it returns the number
// of edges removed with it.
func (w *workGraph) removeNode(id string) int {
	if _, ok := w.nodes[id]; !ok {
		return 0
	}
	delete(w.nodes, id)
	w.order = removeString(w.order, id)
	removed := 0
	for _, eid := range append([]string(nil), w.edgeOrder...) {
		e := w.edges[eid]
		if e.From == id || e.To == id {
			w.removeEdge(eid)
			removed++
		}
	}
	return removed
}

func (w *workGraph) addEdge(e types.ConceptEdge) {
	if _, ok := w.edges[e.ID]; ok {
		return
	}
	c := e
	w.edges[e.ID] = &c
	w.edgeOrder = append(w.edgeOrder, e.ID)
}

func (w *workGraph) removeEdge(id string) {
	if _, ok := w.edges[id]; !ok {
		return
	}
	delete(w.edges, id)
	w.edgeOrder = removeString(w.edgeOrder, id)
}

func (w *workGraph) indexOf(id string) int {
	for i, nid := range w.order {
		if nid == id {
			return i
		}
	}
	return -1
}

func (w *workGraph) nodeList() []*types.ConceptNode {
	out := make([]*types.ConceptNode, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.nodes[id])
	}
	return out
}

func (w *workGraph) structuralEdges() []*types.ConceptEdge {
	out := make([]*types.ConceptEdge, 0, len(w.edgeOrder))
	for _, id := range w.edgeOrder {
		if e := w.edges[id]; e.Type.Structural() {
			out = append(out, e)
		}
	}
	return out
}

func (w *workGraph) outgoing(id string) []*types.ConceptEdge {
	var out []*types.ConceptEdge
	for _, eid := range w.edgeOrder {
		if e := w.edges[eid]; e.From == id && e.Type.Structural() {
			out = append(out, e)
		}
	}
	return out
}

func (w *workGraph) incoming(id string) []*types.ConceptEdge {
	var out []*types.ConceptEdge
	for _, eid := range w.edgeOrder {
		if e := w.edges[eid]; e.To == id && e.Type.Structural() {
			out = append(out, e)
		}
	}
	return out
}

// findEdge looks an edge up by its (from, to, type) signature.
func (w *workGraph) findEdge(from, to string, typ types.EdgeType) *types.ConceptEdge {
	for _, eid := range w.edgeOrder {
		e := w.edges[eid]
		if e.From == from && e.To == to && e.Type == typ {
			return e
		}
	}
	return nil
}

// adjacency builds forward structural adjacency, skipping the edge with id skip.
func (w *workGraph) adjacency(skip string) map[string][]string {
	adj := make(map[string][]string, len(w.order))
	for _, eid := range w.edgeOrder {
		if eid == skip {
			continue
		}
		e := w.edges[eid]
		if !e.Type.Structural() {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

func (w *workGraph) reverseAdjacency() map[string][]string {
	adj := make(map[string][]string, len(w.order))
	for _, eid := range w.edgeOrder {
		e := w.edges[eid]
		if !e.Type.Structural() {
			continue
		}
		adj[e.To] = append(adj[e.To], e.From)
	}
	return adj
}

// reaches reports whether to is reachable from from over structural edges,
// ignoring the edge with id skip.
func (w *workGraph) reaches(from, to, skip string) bool {
	if from == to {
		return true
	}
	adj := w.adjacency(skip)
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nxt := range adj[cur] {
			if nxt == to {
				return true
			}
			if !seen[nxt] {
				seen[nxt] = true
				queue = append(queue, nxt)
			}
		}
	}
	return false
}

// ancestors returns every node that can reach target (target included).
func (w *workGraph) ancestors(target string) map[string]bool {
	radj := w.reverseAdjacency()
	seen := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range radj[cur] {
			if !seen[prev] {
				seen[prev] = true
				queue = append(queue, prev)
			}
		}
	}
	return seen
}

func (w *workGraph) newEdge(ids IDGenerator, from, to string, typ types.EdgeType, conf float64, rationale string) *types.ConceptEdge {
	e := types.ConceptEdge{
		ID:         ids(string(kindEdge)),
		From:       from,
		To:         to,
		Type:       typ,
		Confidence: types.Clamp01(conf, 0.5),
		Rationale:  rationale,
	}
	w.addEdge(e)
	return w.edges[e.ID]
}

func removeString(in []string, v string) []string {
	for i, s := range in {
		if s == v {
			return append(in[:i], in[i+1:]...)
		}
	}
	return in
}
