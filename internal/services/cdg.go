package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	cdgrepo "github.com/yungbote/neurobridge-cdg/internal/data/repos/cdg"
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	cdgmod "github.com/yungbote/neurobridge-cdg/internal/modules/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/engine"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-cdg/internal/platform/graphlock"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

const (
	CycleStatusChanged   = "changed"
	CycleStatusUnchanged = "unchanged"
	CycleStatusConflict  = "conflict"
	CycleStatusError     = "error"
)

// GraphProjector mirrors committed graphs into a secondary store.
type GraphProjector interface {
	Enabled() bool
	Project(ctx context.Context, g types.CDG) error
}

type TurnResult struct {
	Graph   types.CDG          `json:"graph"`
	Applied []types.PatchOp    `json:"applied"`
	Dropped []engine.DroppedOp `json:"dropped"`
	IDMap   map[string]string  `json:"id_map"`
	Changed bool               `json:"changed"`
	Report  engine.Report      `json:"report"`
}

type CDGService interface {
	// ApplyTurn applies one conversational turn's patch to the graph under the
	// per-graph writer lock and commits the result if it changed.
	ApplyTurn(ctx context.Context, graphID string, patch types.GraphPatch) (*TurnResult, error)
	Get(ctx context.Context, graphID string) (types.CDG, error)
	ListPatches(ctx context.Context, graphID string, limit int) ([]*types.PatchLogEntry, error)
}

type cdgService struct {
	db        *gorm.DB
	log       *logger.Logger
	graphs    cdgrepo.GraphRepo
	patchLog  cdgrepo.PatchLogRepo
	lock      graphlock.GraphLock
	usecases  cdgmod.Usecases
	projector GraphProjector
	metrics   *observability.Metrics
}

func NewCDGService(
	db *gorm.DB,
	baseLog *logger.Logger,
	graphs cdgrepo.GraphRepo,
	patchLog cdgrepo.PatchLogRepo,
	lock graphlock.GraphLock,
	usecases cdgmod.Usecases,
	projector GraphProjector,
	metrics *observability.Metrics,
) CDGService {
	log := baseLog.With("service", "CDGService")
	return &cdgService{
		db:        db,
		log:       log,
		graphs:    graphs,
		patchLog:  patchLog,
		lock:      lock,
		usecases:  usecases.WithLog(log),
		projector: projector,
		metrics:   metrics,
	}
}

func (s *cdgService) ApplyTurn(ctx context.Context, graphID string, patch types.GraphPatch) (res *TurnResult, err error) {
	if s == nil || s.db == nil || s.graphs == nil || s.lock == nil {
		return nil, fmt.Errorf("cdg service not configured")
	}
	graphID = strings.TrimSpace(graphID)
	if !types.ValidID(graphID) {
		return nil, fmt.Errorf("%w: graph id %q", cdgerrors.ErrInvalidArgument, graphID)
	}
	ctx = ctxutil.WithGraphID(ctx, graphID)
	log := s.log.WithContext(ctx)

	start := time.Now()
	status := CycleStatusError
	defer func() {
		s.metrics.ObserveCycle(status, time.Since(start))
	}()

	release, err := s.lock.Acquire(ctx, graphID)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, cdgerrors.ErrConflict) {
			status = CycleStatusConflict
		}
		return nil, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			log.Warn("graph lock release failed", "error", relErr)
		}
	}()

	current, err := s.load(ctx, graphID)
	if err != nil {
		return nil, err
	}
	out, err := s.usecases.ApplyPatch(ctx, cdgmod.ApplyPatchInput{Graph: current, Patch: patch})
	if err != nil {
		return nil, err
	}

	if out.Changed {
		if err := s.commit(ctx, current.Version, out, patch.Notes); err != nil {
			if errors.Is(err, cdgerrors.ErrConflict) {
				status = CycleStatusConflict
			}
			return nil, err
		}
		status = CycleStatusChanged
	} else {
		status = CycleStatusUnchanged
	}

	s.afterCommit(ctx, out)

	res = &TurnResult{
		Graph:   out.Graph,
		Applied: out.Applied,
		Dropped: out.Dropped,
		IDMap:   out.IDMap,
		Changed: out.Changed,
		Report:  out.Report,
	}
	if res.Applied == nil {
		res.Applied = []types.PatchOp{}
	}
	if res.Dropped == nil {
		res.Dropped = []engine.DroppedOp{}
	}
	if res.IDMap == nil {
		res.IDMap = map[string]string{}
	}
	return res, nil
}

// load returns the committed graph, or an empty version-0 graph.
func (s *cdgService) load(ctx context.Context, graphID string) (types.CDG, error) {
	row, err := s.graphs.Get(dbctx.Context{Ctx: ctx}, graphID)
	if err != nil {
		return types.CDG{}, err
	}
	if row == nil {
		return types.CDG{ID: graphID}, nil
	}
	return row.CDG()
}

func (s *cdgService) commit(ctx context.Context, baseVersion int64, out cdgmod.ApplyPatchOutput, notes string) error {
	snapshot, err := types.NewGraphSnapshot(out.Graph)
	if err != nil {
		return err
	}
	entry, err := newPatchLogEntry(baseVersion, out, notes)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.graphs.Save(dbc, snapshot, baseVersion); err != nil {
			return err
		}
		if s.patchLog == nil {
			return nil
		}
		return s.patchLog.Append(dbc, entry)
	})
}

// afterCommit fans out the work that must not fail a committed turn.
func (s *cdgService) afterCommit(ctx context.Context, out cdgmod.ApplyPatchOutput) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	if out.Changed && s.projector != nil && s.projector.Enabled() {
		g.Go(func() error {
			err := s.projector.Project(gctx, out.Graph)
			s.metrics.ObserveProjection(err)
			return err
		})
	}
	g.Go(func() error {
		recordTurnMetrics(s.metrics, out)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.WithContext(ctx).Warn("post-commit fan-out failed", "version", out.Graph.Version, "error", err)
	}
}

func recordTurnMetrics(m *observability.Metrics, out cdgmod.ApplyPatchOutput) {
	if m == nil {
		return
	}
	for _, op := range out.Applied {
		m.IncApplied(string(op.Op))
	}
	for _, d := range out.Dropped {
		m.IncDropped(string(d.Reason))
	}
	rep := out.Report
	m.AddStageEdits("duplicate_compaction", rep.DuplicatesRemoved)
	m.AddStageEdits("goal_dedup", rep.GoalsRemoved+rep.RootOutEdgesRemoved)
	m.AddStageEdits("skeleton", rep.SkeletonEdgesAdded+rep.SkeletonEdgesMerged)
	m.AddStageEdits("anchor", rep.AnchorsDirect+rep.AnchorsSearched)
	m.AddStageEdits("fan_in_prune", rep.FanInPruned)
	m.AddStageEdits("cycle_break", rep.CycleEdgesRemoved)
	m.AddStageEdits("transitive_reduce", rep.ReducedEdges)
	m.AddStageEdits("connectivity_repair", rep.RepairedEdges)
	if !rep.OptimizationSkipped {
		m.ObserveParams(rep.Params.Lambda, rep.Params.RootInDegreeCap)
	}
	m.SetGraphSize(len(out.Graph.Nodes), len(out.Graph.Edges))
}

func newPatchLogEntry(baseVersion int64, out cdgmod.ApplyPatchOutput, notes string) (*types.PatchLogEntry, error) {
	encode := func(v any) (datatypes.JSON, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return datatypes.JSON(raw), nil
	}
	applied, err := encode(out.Applied)
	if err != nil {
		return nil, fmt.Errorf("encode applied: %w", err)
	}
	dropped, err := encode(out.Dropped)
	if err != nil {
		return nil, fmt.Errorf("encode dropped: %w", err)
	}
	idMap, err := encode(out.IDMap)
	if err != nil {
		return nil, fmt.Errorf("encode id map: %w", err)
	}
	report, err := encode(out.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return &types.PatchLogEntry{
		GraphID:     out.Graph.ID,
		BaseVersion: baseVersion,
		Version:     out.Graph.Version,
		Changed:     out.Changed,
		Applied:     applied,
		Dropped:     dropped,
		IDMap:       idMap,
		Report:      report,
		Notes:       strings.TrimSpace(notes),
	}, nil
}

func (s *cdgService) Get(ctx context.Context, graphID string) (types.CDG, error) {
	graphID = strings.TrimSpace(graphID)
	if !types.ValidID(graphID) {
		return types.CDG{}, fmt.Errorf("%w: graph id %q", cdgerrors.ErrInvalidArgument, graphID)
	}
	row, err := s.graphs.Get(dbctx.Context{Ctx: ctx}, graphID)
	if err != nil {
		return types.CDG{}, err
	}
	if row == nil {
		return types.CDG{}, fmt.Errorf("%w: graph %s", cdgerrors.ErrNotFound, graphID)
	}
	return row.CDG()
}

func (s *cdgService) ListPatches(ctx context.Context, graphID string, limit int) ([]*types.PatchLogEntry, error) {
	graphID = strings.TrimSpace(graphID)
	if !types.ValidID(graphID) {
		return nil, fmt.Errorf("%w: graph id %q", cdgerrors.ErrInvalidArgument, graphID)
	}
	if s.patchLog == nil {
		return []*types.PatchLogEntry{}, nil
	}
	return s.patchLog.ListByGraph(dbctx.Context{Ctx: ctx}, graphID, limit)
}
