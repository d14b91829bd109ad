package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yungbote/neurobridge-cdg/internal/app"
	cdgrepo "github.com/yungbote/neurobridge-cdg/internal/data/repos/cdg"
	types "github.com/yungbote/neurobridge-cdg/internal/domain/cdg"
	"github.com/yungbote/neurobridge-cdg/internal/modules/cdg/validation"
	"github.com/yungbote/neurobridge-cdg/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-cdg/internal/platform/logger"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

// verify_graphs re-checks committed graphs against the structural invariants
// and prints one JSON report per graph. Exit status 2 means at least one failed.
func main() {
	var graphs idList
	var limit int
	var failedOnly bool
	flag.Var(&graphs, "graph", "graph id to verify (repeatable)")
	flag.IntVar(&limit, "limit", 100, "max graphs to scan when no -graph is given")
	flag.BoolVar(&failedOnly, "failed-only", false, "print only failing reports")
	flag.Parse()

	log, err := logger.New("development")
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := app.LoadConfig(log)
	cfg.MetricsEnabled = false
	application, err := app.New(context.Background(), log, cfg)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: context.Background()}
	repo := cdgrepo.NewGraphRepo(application.DB.DB(), log)

	rows, err := loadSnapshots(dbc, repo, graphs, limit)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	failed := verifySnapshots(os.Stdout, rows, failedOnly)
	fmt.Printf("verified=%d failed=%d\n", len(rows), failed)
	if failed > 0 {
		application.Close()
		log.Sync()
		os.Exit(2)
	}
}

// loadSnapshots reads the named graphs, or the most recent ones when ids is
// empty. Unknown ids are reported and skipped.
func loadSnapshots(dbc dbctx.Context, repo cdgrepo.GraphRepo, ids []string, limit int) ([]*types.GraphSnapshot, error) {
	if len(ids) == 0 {
		rows, err := repo.List(dbc, limit)
		if err != nil {
			return nil, fmt.Errorf("list graphs: %w", err)
		}
		return rows, nil
	}
	var rows []*types.GraphSnapshot
	for _, id := range ids {
		row, err := repo.Get(dbc, id)
		if err != nil {
			return nil, fmt.Errorf("load graph %s: %w", id, err)
		}
		if row == nil {
			fmt.Printf("graph %s not found\n", id)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// verifySnapshots writes one JSON report per graph and returns how many failed.
func verifySnapshots(out io.Writer, rows []*types.GraphSnapshot, failedOnly bool) int {
	enc := json.NewEncoder(out)
	failed := 0
	for _, row := range rows {
		g, err := row.CDG()
		if err != nil {
			fmt.Fprintf(out, "decode graph %s: %v\n", row.GraphID, err)
			failed++
			continue
		}
		report := validation.CheckInvariants(g)
		if len(report.Failed()) > 0 {
			failed++
		} else if failedOnly {
			continue
		}
		_ = enc.Encode(report)
	}
	return failed
}
