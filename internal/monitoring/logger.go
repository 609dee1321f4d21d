// Package monitoring is the diagnostic channel for the selection core.
//
// Recoverable data-quality anomalies (for example a lepton whose
// four-momentum could not be built) are reported through Logf and
// counted in Counters rather than returned as hard failures.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Counters tallies absorbed anomalies across all events processed by the
// process. Safe for concurrent use.
var Counters struct {
	IncompleteP4   atomic.Int64 // objects left without a four-momentum
	SkippedLeptons atomic.Int64 // leptons dropped by the pdgId filter
	TooFewLeptons  atomic.Int64 // events rejected by the dilepton builder
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	IncompleteP4   int64 `json:"incomplete_p4"`
	SkippedLeptons int64 `json:"skipped_leptons"`
	TooFewLeptons  int64 `json:"too_few_leptons"`
}

// Snapshot returns the current counter values.
func Snapshot() CounterSnapshot {
	return CounterSnapshot{
		IncompleteP4:   Counters.IncompleteP4.Load(),
		SkippedLeptons: Counters.SkippedLeptons.Load(),
		TooFewLeptons:  Counters.TooFewLeptons.Load(),
	}
}

// ResetCounters zeroes every counter.
func ResetCounters() {
	Counters.IncompleteP4.Store(0)
	Counters.SkippedLeptons.Store(0)
	Counters.TooFewLeptons.Store(0)
}
