// Package testutil provides shared test fixtures for building event tuples.
package testutil

import (
	"testing"

	"github.com/banshee-data/dilepton/internal/tuple"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Lepton describes one lepton row of a fixture tuple. Zero-valued
// auxiliary branches are written as zeros.
type Lepton struct {
	PDGID   int
	Charge  int
	Pt      float64
	CalPt   float64 // 0 means "same as Pt"
	Eta     float64
	Phi     float64
	Matched bool
	MiniIso float64
}

// Jet describes one jet row of a fixture tuple.
type Jet struct {
	Pt, Eta, Phi, Mass float64
	CSVv2              float64
	GenPt              float64
	Flavor             int
}

// Header holds the event identifiers and global fields of a fixture.
type Header struct {
	Run, Lumi int
	Event     int64
	CenBin    float64
	NcollWgt  float64
}

var leptonAux = []string{
	"idflags", "d0", "d0err", "dz",
	"phiso", "chiso", "nhiso", "rho",
	"isofull", "isofull20", "isofull25", "isofull30",
}

// LeptonEvent builds a tuple with the given leptons and no jets.
func LeptonEvent(h Header, leptons ...Lepton) *tuple.MapEvent {
	ev := tuple.NewMapEvent().
		SetScalar("run", float64(h.Run)).
		SetScalar("event", float64(h.Event)).
		SetScalar("lumi", float64(h.Lumi)).
		SetScalar("cenbin", h.CenBin).
		SetScalar("ncollWgt", h.NcollWgt).
		SetScalar("nlep", float64(len(leptons))).
		SetScalar("nbjet", 0)

	col := func(f func(Lepton) float64) []float64 {
		out := make([]float64, len(leptons))
		for i, l := range leptons {
			out[i] = f(l)
		}
		return out
	}

	ev.SetArray("lep_pt", col(func(l Lepton) float64 { return l.Pt })...)
	ev.SetArray("lep_calpt", col(func(l Lepton) float64 {
		if l.CalPt == 0 {
			return l.Pt
		}
		return l.CalPt
	})...)
	ev.SetArray("lep_eta", col(func(l Lepton) float64 { return l.Eta })...)
	ev.SetArray("lep_phi", col(func(l Lepton) float64 { return l.Phi })...)
	ev.SetArray("lep_pdgId", col(func(l Lepton) float64 { return float64(l.PDGID) })...)
	ev.SetArray("lep_charge", col(func(l Lepton) float64 { return float64(l.Charge) })...)
	ev.SetArray("lep_miniiso", col(func(l Lepton) float64 { return l.MiniIso })...)
	ev.SetArray("lep_matched", col(func(l Lepton) float64 {
		if l.Matched {
			return 1
		}
		return 0
	})...)
	for _, name := range leptonAux {
		ev.SetArray("lep_"+name, make([]float64, len(leptons))...)
	}
	for _, name := range []string{"bjet_pt", "bjet_eta", "bjet_phi", "bjet_mass", "bjet_csvv2",
		"bjet_genpt", "bjet_geneta", "bjet_genphi", "bjet_genmass", "bjet_flavor", "bjet_flavorB"} {
		ev.SetArray(name)
	}
	return ev
}

// WithJets adds jet branches to ev and returns it.
func WithJets(ev *tuple.MapEvent, jets ...Jet) *tuple.MapEvent {
	n := len(jets)
	cols := map[string][]float64{}
	for _, name := range []string{"pt", "eta", "phi", "mass", "csvv2",
		"genpt", "geneta", "genphi", "genmass", "flavor", "flavorB"} {
		cols[name] = make([]float64, n)
	}
	for i, j := range jets {
		cols["pt"][i] = j.Pt
		cols["eta"][i] = j.Eta
		cols["phi"][i] = j.Phi
		cols["mass"][i] = j.Mass
		cols["csvv2"][i] = j.CSVv2
		cols["genpt"][i] = j.GenPt
		cols["geneta"][i] = j.Eta
		cols["genphi"][i] = j.Phi
		cols["genmass"][i] = j.Mass
		cols["flavor"][i] = float64(j.Flavor)
		cols["flavorB"][i] = float64(j.Flavor)
	}
	for name, vals := range cols {
		ev.SetArray("bjet_"+name, vals...)
	}
	ev.SetScalar("nbjet", float64(n))
	return ev
}
