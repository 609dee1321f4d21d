package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("lepton %d: %s", 3, "missing eta")
	if got != "lepton 3: missing eta" {
		t.Errorf("custom logger got %q", got)
	}

	// nil installs a no-op; the previous logger must not be called
	got = ""
	SetLogger(nil)
	Logf("ignored")
	if got != "" {
		t.Errorf("no-op logger forwarded message: %q", got)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestCounters(t *testing.T) {
	ResetCounters()
	defer ResetCounters()

	Counters.IncompleteP4.Add(2)
	Counters.SkippedLeptons.Add(1)
	Counters.TooFewLeptons.Add(5)

	snap := Snapshot()
	want := CounterSnapshot{IncompleteP4: 2, SkippedLeptons: 1, TooFewLeptons: 5}
	if snap != want {
		t.Errorf("Snapshot() = %+v, want %+v", snap, want)
	}

	ResetCounters()
	if snap := Snapshot(); snap != (CounterSnapshot{}) {
		t.Errorf("after reset Snapshot() = %+v", snap)
	}
}
