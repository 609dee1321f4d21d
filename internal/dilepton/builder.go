package dilepton

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/dilepton/internal/config"
	"github.com/banshee-data/dilepton/internal/objects"
	"github.com/banshee-data/dilepton/internal/tuple"
)

// ErrTooFewLeptons is returned when fewer than two leptons are supplied.
var ErrTooFewLeptons = errors.New("less than 2 leptons")

// Classifier holds the constants of the pair classification.
type Classifier struct {
	ZMass                  float64 // GeV
	ZWindow                float64 // |m - ZMass| < ZWindow
	OppositeFlavourProduct int     // |pdgId1 * pdgId2| for an e-mu pair
}

// DefaultClassifier returns the classifier with the built-in constants
// (91 ± 15 GeV, e-mu product 143).
func DefaultClassifier() Classifier {
	return Classifier{
		ZMass:                  config.DefaultZMass,
		ZWindow:                config.DefaultZWindow,
		OppositeFlavourProduct: config.DefaultOppositeFlavourProduct,
	}
}

// ClassifierFromConfig builds a Classifier from a loaded SelectionConfig.
func ClassifierFromConfig(cfg *config.SelectionConfig) Classifier {
	return Classifier{
		ZMass:                  cfg.GetZMass(),
		ZWindow:                cfg.GetZWindow(),
		OppositeFlavourProduct: cfg.GetOppositeFlavourProduct(),
	}
}

// Flags are the pair classification results.
type Flags struct {
	IsOF bool
	IsSS bool
	IsZ  bool
}

// Classify evaluates the flags for a and b.
func (c Classifier) Classify(a, b *objects.PhysicsObject) Flags {
	var f Flags
	product := a.PDGID * b.PDGID
	if product < 0 {
		product = -product
	}
	f.IsOF = product == c.OppositeFlavourProduct
	f.IsSS = a.Charge*b.Charge > 0
	mass := a.P4.Add(b.P4).M()
	f.IsZ = math.Abs(mass-c.ZMass) < c.ZWindow && !f.IsSS && !f.IsOF
	return f
}

// Build classifies the first two leptons of the sequence and returns the
// resulting Dilepton. Any further leptons are ignored; the sequence is not
// re-sorted.
func (c Classifier) Build(leptons []*objects.PhysicsObject, h EventHeader) (*Dilepton, error) {
	if len(leptons) < 2 {
		return nil, fmt.Errorf("build dilepton for event %s: got %d: %w", h, len(leptons), ErrTooFewLeptons)
	}
	f := c.Classify(leptons[0], leptons[1])
	return NewDilepton(leptons[0], leptons[1], f.IsOF, f.IsSS, f.IsZ, h), nil
}

// Select extracts leptons from ev and builds the event's dilepton.
func (c Classifier) Select(ev tuple.Event, opts ...objects.LeptonOption) (*Dilepton, error) {
	leptons, err := objects.GetLeptons(ev, opts...)
	if err != nil {
		return nil, err
	}
	h, err := ReadEventHeader(ev)
	if err != nil {
		return nil, err
	}
	return c.Build(leptons, h)
}

// BuildDilepton builds a dilepton with the default classifier.
func BuildDilepton(leptons []*objects.PhysicsObject, h EventHeader) (*Dilepton, error) {
	return DefaultClassifier().Build(leptons, h)
}

// GetDilepton extracts leptons (muons and electrons unless opts say
// otherwise) and builds the event's dilepton with the default classifier.
func GetDilepton(ev tuple.Event, opts ...objects.LeptonOption) (*Dilepton, error) {
	return DefaultClassifier().Select(ev, opts...)
}

// ReadEventHeader reads (run, event, lumi) from ev.
func ReadEventHeader(ev tuple.Event) (EventHeader, error) {
	run, err := tuple.Int(ev, "run")
	if err != nil {
		return EventHeader{}, fmt.Errorf("read event header: %w", err)
	}
	event, err := tuple.Int64(ev, "event")
	if err != nil {
		return EventHeader{}, fmt.Errorf("read event header: %w", err)
	}
	lumi, err := tuple.Int(ev, "lumi")
	if err != nil {
		return EventHeader{}, fmt.Errorf("read event header: %w", err)
	}
	return EventHeader{Run: run, Event: event, Lumi: lumi}, nil
}
