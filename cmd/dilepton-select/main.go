// Command dilepton-select reads a JSON-lines file of event tuples, builds
// the leading dilepton of every event and records the candidates in a
// SQLite database under a fresh run ID.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/dilepton/internal/config"
	"github.com/banshee-data/dilepton/internal/monitoring"
	"github.com/banshee-data/dilepton/internal/version"
)

var (
	inputPath     = flag.String("input", "", "JSON-lines event file (required, - for stdin)")
	configPath    = flag.String("config", "", "selection config (.json, .yaml, .yml); built-in defaults if empty")
	dbPath        = flag.String("db", "dilepton.db", "path to sqlite db")
	workers       = flag.Int("workers", 0, "concurrent event workers (0 uses the config value)")
	preselectExpr = flag.String("preselect", "", "CEL lepton preselection, overrides the config value")
	verbose       = flag.Bool("v", false, "log per-object diagnostics")
	showVersion   = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("dilepton-select", version.String())
		return
	}
	if *inputPath == "" {
		log.Fatal("-input is required")
	}

	cfg := config.DefaultSelectionConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadSelectionConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if *preselectExpr != "" {
		cfg.LeptonPreselection = preselectExpr
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if !*verbose {
		monitoring.SetLogger(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in := os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	res, err := run(ctx, runOptions{
		Input:      in,
		SourcePath: *inputPath,
		DBPath:     *dbPath,
		Config:     cfg,
	})
	if err != nil {
		log.Fatalf("selection failed: %v", err)
	}

	log.Printf("run %s: %d events, %d selected, %d with fewer than 2 leptons",
		res.Run.RunID, res.Run.EventsTotal, res.Run.EventsSelected, res.Run.EventsTooFew)
	for _, cc := range res.Channels {
		log.Printf("  %-5s total=%d z=%d same-sign=%d", cc.Channel, cc.Total, cc.ZWindow, cc.SameSgn)
	}
	c := res.Counters
	log.Printf("counters: incomplete_p4=%d skipped_leptons=%d too_few_leptons=%d",
		c.IncompleteP4, c.SkippedLeptons, c.TooFewLeptons)
}
