package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-cdg/internal/data/db"
	"github.com/yungbote/neurobridge-cdg/internal/data/graph"
	cdgrepo "github.com/yungbote/neurobridge-cdg/internal/data/repos/cdg"
	httpapi "github.com/yungbote/neurobridge-cdg/internal/http"
	httpH "github.com/yungbote/neurobridge-cdg/internal/http/handlers"
	cdgmod "github.com/yungbote/neurobridge-cdg/internal/modules/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/engine"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	"github.com/yungbote/neurobridge-cdg/internal/platform/graphlock"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
	"github.com/yungbote/neurobridge-cdg/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-cdg/internal/services"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *db.Service
	Lock    graphlock.GraphLock
	Neo4j   *neo4jdb.Client
	Metrics *observability.Metrics
	CDG     services.CDGService
	Server  *httpapi.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New wires the whole service. On error everything opened so far is closed.
func New(ctx context.Context, log *logger.Logger, cfg Config) (_ *App, err error) {
	a := &App{Log: log, Cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.SlotRulesPath != "" {
		if err := engine.LoadSlotRules(cfg.SlotRulesPath); err != nil {
			log.Warn("slot rules override rejected; keeping embedded table", "path", cfg.SlotRulesPath, "error", err)
		} else {
			log.Info("slot rules loaded", "path", cfg.SlotRulesPath)
		}
	}

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)
	a.Metrics = observability.Init(log, cfg.MetricsEnabled)

	a.DB, err = db.NewService(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := a.DB.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	a.Lock, err = graphlock.NewGraphLock(log, cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("init graph lock: %w", err)
	}
	a.Neo4j, err = neo4jdb.New(log, cfg.Neo4j)
	if err != nil {
		return nil, fmt.Errorf("init neo4j: %w", err)
	}

	theDB := a.DB.DB()
	usecases := cdgmod.New(cdgmod.UsecasesDeps{
		Log:          log,
		AllowDeletes: cfg.AllowDeletes,
		MaxPatchOps:  cfg.MaxPatchOps,
		Metrics:      a.Metrics,
		Alerts:       observability.NewInvariantAlerter(cfg.Alerts),
	})
	a.CDG = services.NewCDGService(
		theDB,
		log,
		cdgrepo.NewGraphRepo(theDB, log),
		cdgrepo.NewPatchLogRepo(theDB, log),
		a.Lock,
		usecases,
		graph.NewCDGProjector(a.Neo4j, log),
		a.Metrics,
	)

	var pinger httpH.Pinger
	if sqlDB, err := theDB.DB(); err == nil {
		pinger = sqlDB
	}
	a.Server = httpapi.NewServer(httpapi.RouterConfig{
		Log:           log,
		Metrics:       a.Metrics,
		ServiceName:   cfg.Otel.ServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		HealthHandler: httpH.NewHealthHandler(pinger),
		GraphHandler:  httpH.NewGraphHandler(a.CDG),
	})
	return a, nil
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB.DB(), 15*time.Second)

	a.Log.Info("http server listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.Neo4j != nil {
		if err := a.Neo4j.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.Lock != nil {
		if err := a.Lock.Close(); err != nil {
			a.Log.Warn("graph lock close failed", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
}
