package cdg

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

type GraphRepo interface {
	// Get returns nil, nil when the graph has never been committed.
	Get(dbc dbctx.Context, graphID string) (*types.GraphSnapshot, error)
	// Save writes row if the stored version still equals baseVersion.
	// A lost race returns ErrConflict.
	Save(dbc dbctx.Context, row *types.GraphSnapshot, baseVersion int64) error
	// List returns full snapshots, most recently updated first.
	List(dbc dbctx.Context, limit int) ([]*types.GraphSnapshot, error)
}

type graphRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGraphRepo(db *gorm.DB, baseLog *logger.Logger) GraphRepo {
	return &graphRepo{db: db, log: baseLog.With("repo", "CDGGraphRepo")}
}

func (r *graphRepo) Get(dbc dbctx.Context, graphID string) (*types.GraphSnapshot, error) {
	graphID = strings.TrimSpace(graphID)
	if graphID == "" {
		return nil, nil
	}
	row := &types.GraphSnapshot{}
	if err := dbc.DB(r.db).
		Where("graph_id = ?", graphID).
		Limit(1).
		Find(row).Error; err != nil {
		return nil, err
	}
	if row.GraphID == "" {
		return nil, nil
	}
	return row, nil
}

func (r *graphRepo) Save(dbc dbctx.Context, row *types.GraphSnapshot, baseVersion int64) error {
	if row == nil || strings.TrimSpace(row.GraphID) == "" {
		return fmt.Errorf("%w: graph snapshot without id", cdgerrors.ErrInvalidArgument)
	}
	now := time.Now().UTC()
	row.UpdatedAt = now

	if baseVersion == 0 {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		res := dbc.DB(r.db).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "graph_id"}},
				DoNothing: true,
			}).
			Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: graph %s already exists", cdgerrors.ErrConflict, row.GraphID)
		}
		return nil
	}

	res := dbc.DB(r.db).
		Model(&types.GraphSnapshot{}).
		Where("graph_id = ? AND version = ?", row.GraphID, baseVersion).
		Updates(map[string]any{
			"version":    row.Version,
			"nodes":      row.Nodes,
			"edges":      row.Edges,
			"node_count": row.NodeCount,
			"edge_count": row.EdgeCount,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("optimistic version check failed", "graph_id", row.GraphID, "base_version", baseVersion)
		return fmt.Errorf("%w: graph %s moved past version %d", cdgerrors.ErrConflict, row.GraphID, baseVersion)
	}
	return nil
}

func (r *graphRepo) List(dbc dbctx.Context, limit int) ([]*types.GraphSnapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []*types.GraphSnapshot
	if err := dbc.DB(r.db).
		Order("updated_at DESC").
		Order("graph_id").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
