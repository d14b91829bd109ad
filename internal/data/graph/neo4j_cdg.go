package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
	"github.com/yungbote/neurobridge-cdg/internal/platform/neo4jdb"
)

// relTypes maps edge types to relationship types; Cypher cannot parameterize them.
var relTypes = map[types.EdgeType]string{
	types.EdgeEnable:        "CDG_ENABLE",
	types.EdgeConstraint:    "CDG_CONSTRAINT",
	types.EdgeDetermine:     "CDG_DETERMINE",
	types.EdgeConflictsWith: "CDG_CONFLICTS_WITH",
}

// CDGProjector mirrors committed graphs into neo4j for ad-hoc traversal. A nil
// client turns every call into a no-op.
type CDGProjector struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewCDGProjector(client *neo4jdb.Client, log *logger.Logger) *CDGProjector {
	return &CDGProjector{client: client, log: log.With("projector", "Neo4jCDG")}
}

func (p *CDGProjector) Enabled() bool {
	return p != nil && p.client != nil && p.client.Driver != nil
}

func (p *CDGProjector) Project(ctx context.Context, g types.CDG) error {
	if !p.Enabled() {
		return nil
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("neo4j cdg sync: missing graph id")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	nodes, rels := projectionRecords(g, time.Now().UTC())

	session := p.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: p.client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE INDEX cdg_node_graph_idx IF NOT EXISTS FOR (n:CDGNode) ON (n.graph_id, n.id)`, nil); err != nil {
		p.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	nodeIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n["id"].(string))
	}
	edgeIDs := []string{}
	for _, recs := range rels {
		for _, r := range recs {
			edgeIDs = append(edgeIDs, r["id"].(string))
		}
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(query string, params map[string]any) error {
			res, err := tx.Run(ctx, query, params)
			if err != nil {
				return err
			}
			_, err = res.Consume(ctx)
			return err
		}

		if err := run(`
MATCH (n:CDGNode {graph_id: $graph_id})
WHERE NOT n.id IN $ids
DETACH DELETE n
`, map[string]any{"graph_id": g.ID, "ids": nodeIDs}); err != nil {
			return nil, err
		}
		if err := run(`
MATCH (:CDGNode {graph_id: $graph_id})-[r]->(:CDGNode {graph_id: $graph_id})
WHERE NOT r.id IN $ids
DELETE r
`, map[string]any{"graph_id": g.ID, "ids": edgeIDs}); err != nil {
			return nil, err
		}

		if len(nodes) > 0 {
			if err := run(`
UNWIND $nodes AS n
MERGE (c:CDGNode {graph_id: n.graph_id, id: n.id})
SET c += n
`, map[string]any{"nodes": nodes}); err != nil {
				return nil, err
			}
		}

		for typ, recs := range rels {
			if len(recs) == 0 {
				continue
			}
			query := fmt.Sprintf(`
UNWIND $rels AS r
MATCH (a:CDGNode {graph_id: r.graph_id, id: r.from_id})
MATCH (b:CDGNode {graph_id: r.graph_id, id: r.to_id})
MERGE (a)-[e:%s {id: r.id}]->(b)
SET e.confidence = r.confidence,
    e.rationale = r.rationale,
    e.graph_id = r.graph_id,
    e.version = r.version,
    e.synced_at = r.synced_at
`, typ)
			if err := run(query, map[string]any{"rels": recs}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j cdg sync %s v%d: %w", g.ID, g.Version, err)
	}
	p.log.Debug("graph projected", "graph_id", g.ID, "version", g.Version, "nodes", len(nodes), "edges", len(edgeIDs))
	return nil
}

// projectionRecords flattens the graph into driver-friendly maps, grouping
// edges by relationship type.
func projectionRecords(g types.CDG, now time.Time) ([]map[string]any, map[string][]map[string]any) {
	synced := now.Format(time.RFC3339Nano)
	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		rec := map[string]any{
			"graph_id":   g.ID,
			"id":         n.ID,
			"type":       string(n.Type),
			"statement":  n.Statement,
			"status":     string(n.Status),
			"confidence": n.Confidence,
			"locked":     n.Locked,
			"tags":       append([]string{}, n.Tags...),
			"version":    g.Version,
			"synced_at":  synced,
		}
		if n.Strength != "" {
			rec["strength"] = string(n.Strength)
		}
		if n.Severity != "" {
			rec["severity"] = string(n.Severity)
		}
		if n.Importance != nil {
			rec["importance"] = *n.Importance
		}
		nodes = append(nodes, rec)
	}

	rels := map[string][]map[string]any{}
	for _, e := range g.Edges {
		typ, ok := relTypes[e.Type]
		if !ok {
			continue
		}
		rels[typ] = append(rels[typ], map[string]any{
			"graph_id":   g.ID,
			"id":         e.ID,
			"from_id":    e.From,
			"to_id":      e.To,
			"confidence": e.Confidence,
			"rationale":  e.Rationale,
			"version":    g.Version,
			"synced_at":  synced,
		})
	}
	return nodes, rels
}
