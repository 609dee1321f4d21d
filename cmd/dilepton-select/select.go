package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/dilepton/internal/config"
	"github.com/banshee-data/dilepton/internal/db"
	"github.com/banshee-data/dilepton/internal/dilepton"
	"github.com/banshee-data/dilepton/internal/monitoring"
	"github.com/banshee-data/dilepton/internal/objects"
	"github.com/banshee-data/dilepton/internal/preselect"
	"github.com/banshee-data/dilepton/internal/tuple"
)

type runOptions struct {
	Input      io.Reader
	SourcePath string
	DBPath     string
	Config     *config.SelectionConfig
}

type runResult struct {
	Run      *db.SelectionRun
	Channels []db.ChannelCount
	Counters monitoring.CounterSnapshot
}

// selector turns one event into at most one dilepton. Safe for concurrent use.
type selector struct {
	classifier dilepton.Classifier
	filter     *preselect.Filter
	opts       []objects.LeptonOption
}

func newSelector(cfg *config.SelectionConfig) (*selector, error) {
	filter, err := preselect.NewFilter(cfg.GetLeptonPreselection())
	if err != nil {
		return nil, err
	}
	return &selector{
		classifier: dilepton.ClassifierFromConfig(cfg),
		filter:     filter,
		opts:       []objects.LeptonOption{objects.WithSelectionConfig(cfg)},
	}, nil
}

// selectEvent extracts, preselects and pairs the leptons of ev. Events left
// with fewer than two leptons return an error wrapping
// dilepton.ErrTooFewLeptons.
func (s *selector) selectEvent(ev tuple.Event) (*dilepton.Dilepton, error) {
	leptons, err := objects.GetLeptons(ev, s.opts...)
	if err != nil {
		return nil, err
	}
	leptons, err = s.filter.Apply(leptons)
	if err != nil {
		return nil, fmt.Errorf("preselection: %w", err)
	}
	h, err := dilepton.ReadEventHeader(ev)
	if err != nil {
		return nil, err
	}
	return s.classifier.Build(leptons, h)
}

type indexedCandidate struct {
	index int
	cand  db.Candidate
}

type scanResult struct {
	candidates []db.Candidate
	total      int
	tooFew     int
}

// scan runs sel over every event of r with at most workers events in
// flight. Candidates are returned in input order.
func scan(ctx context.Context, sel *selector, r *tuple.JSONLReader, workers int, runID string) (*scanResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu      sync.Mutex
		found   []indexedCandidate
		tooFew  int
		total   int
		readErr error
	)

	for gctx.Err() == nil {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		index := r.Index() - 1
		total++

		g.Go(func() error {
			d, err := sel.selectEvent(ev)
			if errors.Is(err, dilepton.ErrTooFewLeptons) {
				monitoring.Counters.TooFewLeptons.Add(1)
				mu.Lock()
				tooFew++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("event %d: %w", index, err)
			}
			mu.Lock()
			found = append(found, indexedCandidate{index: index, cand: db.NewCandidate(runID, d)})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	res := &scanResult{total: total, tooFew: tooFew}
	res.candidates = make([]db.Candidate, len(found))
	for i, f := range found {
		res.candidates[i] = f.cand
	}
	return res, nil
}

// run records a selection run over opts.Input. A failed scan still leaves
// the run row behind with status failed.
func run(ctx context.Context, opts runOptions) (*runResult, error) {
	sel, err := newSelector(opts.Config)
	if err != nil {
		return nil, err
	}

	database, err := db.NewDB(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer database.Close()

	cfgJSON, err := json.Marshal(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	monitoring.ResetCounters()
	selRun := &db.SelectionRun{SourcePath: opts.SourcePath, ConfigJSON: cfgJSON}
	if err := database.InsertRun(selRun); err != nil {
		return nil, err
	}
	log.Printf("run %s: reading %s with %d workers", selRun.RunID, opts.SourcePath, opts.Config.GetWorkers())

	res, err := scan(ctx, sel, tuple.NewJSONLReader(opts.Input), opts.Config.GetWorkers(), selRun.RunID)
	if err == nil {
		err = database.InsertCandidates(res.candidates)
	}
	if err != nil {
		selRun.Status = db.RunStatusFailed
		if cerr := database.CompleteRun(selRun); cerr != nil {
			log.Printf("mark run %s failed: %v", selRun.RunID, cerr)
		}
		return nil, err
	}

	counters := monitoring.Snapshot()
	selRun.Status = db.RunStatusCompleted
	selRun.EventsTotal = res.total
	selRun.EventsSelected = len(res.candidates)
	selRun.EventsTooFew = res.tooFew
	selRun.IncompleteP4 = int(counters.IncompleteP4)
	if err := database.CompleteRun(selRun); err != nil {
		return nil, err
	}

	channels, err := database.RunSummary(selRun.RunID)
	if err != nil {
		return nil, err
	}
	return &runResult{Run: selRun, Channels: channels, Counters: counters}, nil
}
