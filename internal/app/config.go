package app

import (
	"strings"
	"time"

	"github.com/yungbote/neurobridge-cdg/internal/data/db"
	"github.com/yungbote/neurobridge-cdg/internal/observability"
	"github.com/yungbote/neurobridge-cdg/internal/platform/envutil"
	"github.com/yungbote/neurobridge-cdg/internal/platform/graphlock"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
	"github.com/yungbote/neurobridge-cdg/internal/platform/neo4jdb"
)

type Config struct {
	LogMode  string
	LogLevel string

	HTTPAddr        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	AllowDeletes  bool
	MaxPatchOps   int
	SlotRulesPath string

	DB    db.Config
	Lock  graphlock.LockConfig
	Neo4j neo4jdb.Config
	Otel  observability.OtelConfig

	MetricsEnabled bool
	Alerts         observability.AlertConfig
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:  envutil.String("LOG_MODE", "development"),
		LogLevel: envutil.String("LOG_LEVEL", ""),

		HTTPAddr:        envutil.String("HTTP_ADDR", ":8080"),
		ShutdownTimeout: envutil.Seconds("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		CORSOrigins:     splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		AllowDeletes:  envutil.Bool("CDG_ALLOW_DELETES", false),
		MaxPatchOps:   envutil.Int("CDG_MAX_PATCH_OPS", 256),
		SlotRulesPath: envutil.String("CDG_SLOT_RULES_YAML", ""),

		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", "postgres"),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "cdg"),
			SQLitePath:       envutil.String("SQLITE_PATH", "cdg.db"),
		},
		Lock: graphlock.LockConfig{
			Addr:      envutil.String("REDIS_ADDR", ""),
			Password:  envutil.String("REDIS_PASSWORD", ""),
			DB:        envutil.Int("REDIS_DB", 0),
			KeyPrefix: envutil.String("CDG_LOCK_PREFIX", "cdg:lock:"),
			TTL:       envutil.Seconds("CDG_LOCK_TTL_SECONDS", 30*time.Second),
			Wait:      envutil.Seconds("CDG_LOCK_WAIT_SECONDS", 5*time.Second),
		},
		Neo4j: neo4jdb.Config{
			URI:         envutil.String("NEO4J_URI", ""),
			User:        envutil.String("NEO4J_USER", ""),
			Password:    envutil.String("NEO4J_PASSWORD", ""),
			Database:    envutil.String("NEO4J_DATABASE", ""),
			Timeout:     envutil.Seconds("NEO4J_TIMEOUT_SECONDS", 10*time.Second),
			MaxPoolSize: envutil.Int("NEO4J_MAX_POOL_SIZE", 0),
		},
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "cdgd"),
			Environment: envutil.String("OTEL_ENVIRONMENT", "dev"),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
		Alerts: observability.AlertConfig{
			WebhookURL:  envutil.String("CDG_INVARIANT_ALERT_WEBHOOK_URL", ""),
			MinInterval: envutil.Seconds("CDG_INVARIANT_ALERT_MIN_INTERVAL_SECONDS", 10*time.Minute),
		},
	}
	if log != nil {
		log.Info("config loaded",
			"http_addr", cfg.HTTPAddr,
			"db_driver", cfg.DB.Driver,
			"allow_deletes", cfg.AllowDeletes,
			"redis_lock", cfg.Lock.Addr != "",
			"neo4j_projection", cfg.Neo4j.URI != "",
			"otel", cfg.Otel.Enabled,
			"metrics", cfg.MetricsEnabled,
		)
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
