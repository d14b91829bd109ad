package cdg

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

type PatchLogRepo interface {
	Append(dbc dbctx.Context, row *types.PatchLogEntry) error
	ListByGraph(dbc dbctx.Context, graphID string, limit int) ([]*types.PatchLogEntry, error)
}

type patchLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatchLogRepo(db *gorm.DB, baseLog *logger.Logger) PatchLogRepo {
	return &patchLogRepo{db: db, log: baseLog.With("repo", "CDGPatchLogRepo")}
}

func (r *patchLogRepo) Append(dbc dbctx.Context, row *types.PatchLogEntry) error {
	if row == nil || strings.TrimSpace(row.GraphID) == "" {
		return nil
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(row).Error
}

// ListByGraph returns the newest entries first.
func (r *patchLogRepo) ListByGraph(dbc dbctx.Context, graphID string, limit int) ([]*types.PatchLogEntry, error) {
	graphID = strings.TrimSpace(graphID)
	if graphID == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []*types.PatchLogEntry
	if err := dbc.DB(r.db).
		Where("graph_id = ?", graphID).
		Order("created_at DESC").
		Order("version DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
