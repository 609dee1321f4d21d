package objects

import (
	"errors"
	"fmt"

	"github.com/banshee-data/dilepton/internal/config"
	"github.com/banshee-data/dilepton/internal/monitoring"
	"github.com/banshee-data/dilepton/internal/tuple"
)

// Branch naming.
const (
	LeptonPrefix = "lep_"
	JetPrefix    = "bjet_"

	LeptonCountBranch = "nlep"
	JetCountBranch    = "nbjet"
	MatchedBranch     = "matched"
)

// Particle codes and the masses assigned to leptons (GeV).
const (
	PDGElectron = 11
	PDGMuon     = 13

	ElectronMass = config.DefaultElectronMass
	MuonMass     = config.DefaultMuonMass
)

// LeptonBranches are copied from lep_<name>[i] onto every lepton.
var LeptonBranches = []string{
	"pt", "calpt", "eta", "phi",
	"idflags", "d0", "d0err", "dz",
	"phiso", "chiso", "nhiso", "rho",
	"pdgId", "charge",
	"isofull", "isofull20", "isofull25", "isofull30", "miniiso",
}

// optionalLeptonBranches may be absent from a tuple; the lepton then falls
// back to its raw value (calpt -> pt).
var optionalLeptonBranches = map[string]bool{"calpt": true}

// JetBranches are copied from bjet_<name>[i] onto every jet.
var JetBranches = []string{
	"pt", "eta", "phi", "mass", "csvv2",
	"genpt", "geneta", "genphi", "genmass",
	"flavor", "flavorB",
}

type leptonOptions struct {
	pdgIDs       map[int]bool
	electronMass float64
	muonMass     float64
}

// LeptonOption customises GetLeptons.
type LeptonOption func(*leptonOptions)

// WithPDGIDs restricts extraction to leptons whose |pdgId| is listed.
func WithPDGIDs(ids ...int) LeptonOption {
	return func(o *leptonOptions) {
		o.pdgIDs = make(map[int]bool, len(ids))
		for _, id := range ids {
			o.pdgIDs[id] = true
		}
	}
}

// WithLeptonMasses overrides the electron and muon masses (GeV).
func WithLeptonMasses(electron, muon float64) LeptonOption {
	return func(o *leptonOptions) {
		o.electronMass = electron
		o.muonMass = muon
	}
}

// WithSelectionConfig applies the pdgId filter and masses from cfg.
func WithSelectionConfig(cfg *config.SelectionConfig) LeptonOption {
	return func(o *leptonOptions) {
		WithPDGIDs(cfg.GetAcceptedPDGIDs()...)(o)
		WithLeptonMasses(cfg.GetElectronMass(), cfg.GetMuonMass())(o)
	}
}

// ReadEventContext reads the per-event fields copied into each lepton.
func ReadEventContext(ev tuple.Event) (EventContext, error) {
	cenbin, err := ev.Scalar("cenbin")
	if err != nil {
		return EventContext{}, err
	}
	wgt, err := ev.Scalar("ncollWgt")
	if err != nil {
		return EventContext{}, err
	}
	return EventContext{CenBin: cenbin, NcollWgt: wgt}, nil
}

// checkCount validates the object count n read from countBranch against
// the length of arrayBranch, before n sizes any allocation.
func checkCount(ev tuple.Event, countBranch, arrayBranch string, n int) error {
	if n < 0 {
		return fmt.Errorf("negative %s=%d", countBranch, n)
	}
	arr, err := ev.Array(arrayBranch)
	if err != nil {
		return err
	}
	if n > len(arr) {
		return fmt.Errorf("%s=%d exceeds len(%s)=%d: %w", countBranch, n, arrayBranch, len(arr), tuple.ErrIndexOutOfRange)
	}
	return nil
}

// GetLeptons returns one lepton per tuple entry whose |pdgId| is accepted
// (muons and electrons by default), in tuple index order.
//
// Masses are assigned by flavour (electron, else muon) rather than read
// from the tuple. A lepton whose four-momentum cannot be built is still
// returned, marked P4Incomplete, and reported on the diagnostic channel.
// Missing mandatory branches are returned as errors.
func GetLeptons(ev tuple.Event, opts ...LeptonOption) ([]*PhysicsObject, error) {
	o := leptonOptions{electronMass: ElectronMass, muonMass: MuonMass}
	WithPDGIDs(config.DefaultAcceptedPDGIDs...)(&o)
	for _, opt := range opts {
		opt(&o)
	}

	n, err := tuple.Int(ev, LeptonCountBranch)
	if err != nil {
		return nil, fmt.Errorf("get leptons: %w", err)
	}
	if err := checkCount(ev, LeptonCountBranch, LeptonPrefix+"pdgId", n); err != nil {
		return nil, fmt.Errorf("get leptons: %w", err)
	}
	ctx, err := ReadEventContext(ev)
	if err != nil {
		return nil, fmt.Errorf("get leptons: %w", err)
	}

	leptons := make([]*PhysicsObject, 0, n)
	for il := 0; il < n; il++ {
		pdgID, err := tuple.At(ev, LeptonPrefix+"pdgId", il)
		if err != nil {
			return nil, fmt.Errorf("get leptons: %w", err)
		}
		absID := int(pdgID)
		if absID < 0 {
			absID = -absID
		}
		if !o.pdgIDs[absID] {
			monitoring.Counters.SkippedLeptons.Add(1)
			continue
		}

		lep := NewPhysicsObject(TagLepton)
		lep.SetEventContext(ctx)
		for _, name := range LeptonBranches {
			val, err := tuple.At(ev, LeptonPrefix+name, il)
			if err != nil {
				if optionalLeptonBranches[name] && errors.Is(err, tuple.ErrMissingBranch) {
					continue
				}
				return nil, fmt.Errorf("get leptons: lepton %d: %w", il, err)
			}
			lep.AddProperty(name, val)
		}

		mass := o.muonMass
		if absID == PDGElectron {
			mass = o.electronMass
		}
		lep.AddProperty("mass", mass)

		matched, err := tuple.At(ev, LeptonPrefix+MatchedBranch, il)
		if err != nil {
			return nil, fmt.Errorf("get leptons: lepton %d: %w", il, err)
		}
		lep.AddProperty(MatchedBranch, matched)

		if err := lep.BuildP4(); err != nil {
			monitoring.Counters.IncompleteP4.Add(1)
			monitoring.Logf("[objects] lepton %d: %v", il, err)
		}
		leptons = append(leptons, lep)
	}

	return leptons, nil
}

// GetJets returns one jet per tuple entry in index order. Jets carry no
// event context and keep Matched false.
func GetJets(ev tuple.Event) ([]*PhysicsObject, error) {
	n, err := tuple.Int(ev, JetCountBranch)
	if err != nil {
		return nil, fmt.Errorf("get jets: %w", err)
	}
	if err := checkCount(ev, JetCountBranch, JetPrefix+"pt", n); err != nil {
		return nil, fmt.Errorf("get jets: %w", err)
	}

	jets := make([]*PhysicsObject, 0, n)
	for ij := 0; ij < n; ij++ {
		jet := NewPhysicsObject(TagJet)
		for _, name := range JetBranches {
			val, err := tuple.At(ev, JetPrefix+name, ij)
			if err != nil {
				return nil, fmt.Errorf("get jets: jet %d: %w", ij, err)
			}
			jet.AddProperty(name, val)
		}
		if err := jet.BuildP4(); err != nil {
			monitoring.Counters.IncompleteP4.Add(1)
			monitoring.Logf("[objects] jet %d: %v", ij, err)
		}
		jets = append(jets, jet)
	}

	return jets, nil
}

// BTaggedJets returns the jets whose csvv2 discriminant exceeds wp.
func BTaggedJets(jets []*PhysicsObject, wp float64) []*PhysicsObject {
	var out []*PhysicsObject
	for _, j := range jets {
		if j.IsBTagged(wp) {
			out = append(out, j)
		}
	}
	return out
}
