package cdg

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/engine"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/validation"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
	"github.com/yungbote/neurobridge-cdg/internal/platform/apierr"
	"github.com/yungbote/neurobridge-cdg/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

const defaultMaxPatchOps = 256

type UsecasesDeps struct {
	Log *logger.Logger

	AllowDeletes bool
	MaxPatchOps  int
	NewID        engine.IDGenerator

	Metrics *observability.Metrics
	Alerts  *observability.InvariantAlerter
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.MaxPatchOps <= 0 {
		deps.MaxPatchOps = defaultMaxPatchOps
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type ApplyPatchInput struct {
	Graph types.CDG
	Patch types.GraphPatch
}

type ApplyPatchOutput struct {
	engine.Result
	Invariants validation.InvariantReport
}

// ApplyPatch runs one patch + rebalance cycle over an in-memory graph and
// verifies the committed result. A graph that fails its invariants is never
// returned as a success.
func (u Usecases) ApplyPatch(ctx context.Context, in ApplyPatchInput) (ApplyPatchOutput, error) {
	graphID := strings.TrimSpace(in.Graph.ID)
	if !types.ValidID(graphID) {
		return ApplyPatchOutput{}, apierr.New(http.StatusBadRequest, "invalid_graph_id", fmt.Errorf("%w: graph id %q", cdgerrors.ErrInvalidArgument, in.Graph.ID))
	}
	if len(in.Patch.Ops) > u.deps.MaxPatchOps {
		return ApplyPatchOutput{}, apierr.New(http.StatusBadRequest, "patch_too_large",
			fmt.Errorf("%w: %d ops exceeds %d", cdgerrors.ErrInvalidArgument, len(in.Patch.Ops), u.deps.MaxPatchOps))
	}

	ctx, span := otel.Tracer("cdg").Start(ctx, "cdg.ApplyPatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("cdg.graph_id", graphID),
		attribute.Int64("cdg.base_version", in.Graph.Version),
		attribute.Int("cdg.ops", len(in.Patch.Ops)),
	)

	log := u.deps.Log.WithContext(ctxutil.WithGraphID(ctx, graphID)).With("base_version", in.Graph.Version)
	start := time.Now()
	res, err := engine.Apply(in.Graph, in.Patch, engine.Options{
		AllowDeletes: u.deps.AllowDeletes,
		NewID:        u.deps.NewID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebalance failed")
		log.Error("rebalance failed", "error", err)
		return ApplyPatchOutput{}, err
	}

	inv := validation.CheckInvariants(res.Graph)
	if invErr := inv.Err(); invErr != nil {
		failed := inv.Failed()
		alerts := make([]observability.InvariantAlertCheck, 0, len(failed))
		for _, c := range failed {
			u.deps.Metrics.IncInvariantFailure(c.Name)
			alerts = append(alerts, observability.InvariantAlertCheck{Name: c.Name, Count: c.Count, Sample: c.Sample})
		}
		u.deps.Alerts.Report(ctx, log, graphID, res.Graph.Version, alerts)
		span.RecordError(invErr)
		span.SetStatus(codes.Error, "invariant violated")
		log.Error("rebalanced graph failed invariants", "error", invErr)
		return ApplyPatchOutput{}, invErr
	}

	rep := res.Report
	span.SetAttributes(
		attribute.Bool("cdg.changed", res.Changed),
		attribute.Int("cdg.applied", len(res.Applied)),
		attribute.Int("cdg.dropped", len(res.Dropped)),
		attribute.Float64("cdg.lambda", rep.Params.Lambda),
	)
	log.Debug("patch cycle complete",
		"changed", res.Changed,
		"version", res.Graph.Version,
		"applied", len(res.Applied),
		"dropped", len(res.Dropped),
		"root_id", rep.RootID,
		"root_synthesized", rep.RootSynthesized,
		"duplicates_removed", rep.DuplicatesRemoved,
		"skeleton_added", rep.SkeletonEdgesAdded,
		"anchors_direct", rep.AnchorsDirect,
		"anchors_searched", rep.AnchorsSearched,
		"fan_in_pruned", rep.FanInPruned,
		"cycle_edges_removed", rep.CycleEdgesRemoved,
		"reduced_edges", rep.ReducedEdges,
		"repaired_edges", rep.RepairedEdges,
		"lambda", rep.Params.Lambda,
		"root_cap", rep.Params.RootInDegreeCap,
		"optimization_skipped", rep.OptimizationSkipped,
		"took_ms", time.Since(start).Milliseconds(),
	)
	for _, d := range res.Dropped {
		log.Debug("patch op dropped", "op", d.Op.Op, "reason", d.Reason, "detail", d.Detail)
	}
	return ApplyPatchOutput{Result: res, Invariants: inv}, nil
}
