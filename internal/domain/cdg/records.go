package cdg

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// GraphSnapshot is the committed graph row. Nodes and edges are stored as JSON
// documents; the version column drives optimistic concurrency.
type GraphSnapshot struct {
	GraphID   string         `gorm:"column:graph_id;type:text;primaryKey" json:"graph_id"`
	Version   int64          `gorm:"column:version;not null;index" json:"version"`
	Nodes     datatypes.JSON `gorm:"column:nodes;type:jsonb" json:"nodes"`
	Edges     datatypes.JSON `gorm:"column:edges;type:jsonb" json:"edges"`
	NodeCount int            `gorm:"column:node_count;not null" json:"node_count"`
	EdgeCount int            `gorm:"column:edge_count;not null" json:"edge_count"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (GraphSnapshot) TableName() string { return "cdg_graph" }

// PatchLogEntry records one committed patch cycle.
type PatchLogEntry struct {
	ID          string         `gorm:"column:id;type:text;primaryKey" json:"id"`
	GraphID     string         `gorm:"column:graph_id;type:text;not null;index:idx_cdg_patch_log_graph,priority:1" json:"graph_id"`
	BaseVersion int64          `gorm:"column:base_version;not null" json:"base_version"`
	Version     int64          `gorm:"column:version;not null;index:idx_cdg_patch_log_graph,priority:2" json:"version"`
	Changed     bool           `gorm:"column:changed;not null" json:"changed"`
	Applied     datatypes.JSON `gorm:"column:applied;type:jsonb" json:"applied"`
	Dropped     datatypes.JSON `gorm:"column:dropped;type:jsonb" json:"dropped"`
	IDMap       datatypes.JSON `gorm:"column:id_map;type:jsonb" json:"id_map"`
	Report      datatypes.JSON `gorm:"column:report;type:jsonb" json:"report"`
	Notes       string         `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (PatchLogEntry) TableName() string { return "cdg_patch_log" }

func NewGraphSnapshot(g CDG) (*GraphSnapshot, error) {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []ConceptNode{}
	}
	edges := g.Edges
	if edges == nil {
		edges = []ConceptEdge{}
	}
	rawNodes, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("encode nodes: %w", err)
	}
	rawEdges, err := json.Marshal(edges)
	if err != nil {
		return nil, fmt.Errorf("encode edges: %w", err)
	}
	return &GraphSnapshot{
		GraphID:   g.ID,
		Version:   g.Version,
		Nodes:     datatypes.JSON(rawNodes),
		Edges:     datatypes.JSON(rawEdges),
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}, nil
}

func (s *GraphSnapshot) CDG() (CDG, error) {
	out := CDG{ID: s.GraphID, Version: s.Version}
	if len(s.Nodes) > 0 {
		if err := json.Unmarshal(s.Nodes, &out.Nodes); err != nil {
			return CDG{}, fmt.Errorf("decode nodes of %s: %w", s.GraphID, err)
		}
	}
	if len(s.Edges) > 0 {
		if err := json.Unmarshal(s.Edges, &out.Edges); err != nil {
			return CDG{}, fmt.Errorf("decode edges of %s: %w", s.GraphID, err)
		}
	}
	return out, nil
}
