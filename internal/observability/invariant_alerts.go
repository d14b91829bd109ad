package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-cdg/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

type InvariantAlertCheck struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Sample  []string `json:"sample,omitempty"`
	Details string   `json:"details,omitempty"`
}

type AlertConfig struct {
	WebhookURL  string
	MinInterval time.Duration
	Timeout     time.Duration
}

// InvariantAlerter posts failed post-rebalance checks to a webhook, at most
// once per graph per MinInterval.
type InvariantAlerter struct {
	cfg    AlertConfig
	client *http.Client

	mu   sync.Mutex
	last map[string]time.Time
}

func NewInvariantAlerter(cfg AlertConfig) *InvariantAlerter {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &InvariantAlerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		last:   map[string]time.Time{},
	}
}

func (a *InvariantAlerter) Enabled() bool {
	return a != nil && strings.TrimSpace(a.cfg.WebhookURL) != ""
}

// Report returns true when an alert was delivered.
func (a *InvariantAlerter) Report(ctx context.Context, log *logger.Logger, graphID string, version int64, checks []InvariantAlertCheck) bool {
	if !a.Enabled() || len(checks) == 0 {
		return false
	}
	a.mu.Lock()
	last := a.last[graphID]
	if !last.IsZero() && time.Since(last) < a.cfg.MinInterval {
		a.mu.Unlock()
		return false
	}
	a.last[graphID] = time.Now()
	a.mu.Unlock()

	meta := map[string]any{}
	fields := ctxutil.GetTraceData(ctx).Fields()
	for i := 0; i+1 < len(fields); i += 2 {
		meta[fields[i].(string)] = fields[i+1]
	}
	meta["graph_id"] = graphID
	meta["version"] = version
	body, _ := json.Marshal(map[string]any{
		"title":     "CDG invariant violated",
		"checks":    checks,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("invariant alert request build failed", "error", err)
		}
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("invariant alert post failed", "error", err)
		}
		return false
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("invariant alert sent", "graph_id", graphID, "status", resp.StatusCode)
	}
	return resp.StatusCode < 300
}
