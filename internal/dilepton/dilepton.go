package dilepton

import (
	"fmt"
	"math"

	"github.com/banshee-data/dilepton/internal/lorentz"
	"github.com/banshee-data/dilepton/internal/objects"
)

// Flavour codes: the product of the two absolute pdgIds.
const (
	FlavourMuMu = objects.PDGMuon * objects.PDGMuon
	FlavourEE   = objects.PDGElectron * objects.PDGElectron
	FlavourEMu  = objects.PDGElectron * objects.PDGMuon
)

// EventHeader identifies the event a dilepton was built from.
type EventHeader struct {
	Run   int   `json:"run"`
	Event int64 `json:"event"`
	Lumi  int   `json:"lumi"`
}

func (h EventHeader) String() string {
	return fmt.Sprintf("%d:%d:%d", h.Run, h.Lumi, h.Event)
}

// Dilepton is the selected leading lepton pair of one event. It is not
// modified after NewDilepton returns.
type Dilepton struct {
	L1      *objects.PhysicsObject // leading pT
	L2      *objects.PhysicsObject // trailing pT
	P4      lorentz.Vector
	Flavour int
	IsOF    bool // opposite flavour (e mu)
	IsSS    bool // same-sign charges
	IsZ     bool // same-flavour, opposite-sign, inside the Z window
	Header  EventHeader
}

// NewDilepton orders l1 and l2 by built pT and records the given flags.
// On a pT tie l2 becomes the leading lepton.
func NewDilepton(l1, l2 *objects.PhysicsObject, isOF, isSS, isZ bool, h EventHeader) *Dilepton {
	lead, trail := l2, l1
	if l1.Pt() > l2.Pt() {
		lead, trail = l1, l2
	}
	flavour := l1.PDGID * l2.PDGID
	if flavour < 0 {
		flavour = -flavour
	}
	return &Dilepton{
		L1:      lead,
		L2:      trail,
		P4:      lead.P4.Add(trail.P4),
		Flavour: flavour,
		IsOF:    isOF,
		IsSS:    isSS,
		IsZ:     isZ,
		Header:  h,
	}
}

// Channel names the flavour combination: "mumu", "ee", "emu" or "other".
func (d *Dilepton) Channel() string {
	switch d.Flavour {
	case FlavourMuMu:
		return "mumu"
	case FlavourEE:
		return "ee"
	case FlavourEMu:
		return "emu"
	default:
		return "other"
	}
}

// Mass returns the invariant mass of the pair.
func (d *Dilepton) Mass() float64 {
	return d.P4.M()
}

// Summary holds the pair-level kinematic variables written alongside each
// dilepton candidate.
type Summary struct {
	LLPt   float64 `json:"llpt"`
	LLEta  float64 `json:"lleta"`
	LLPhi  float64 `json:"llphi"`
	LLM    float64 `json:"llm"`
	DPhi   float64 `json:"dphi"`   // |Δφ(l1, l2)|
	DEta   float64 `json:"deta"`   // |η1 - η2|
	SumEta float64 `json:"sumeta"` // η1 + η2
	APt    float64 `json:"apt"`    // (pt1 - pt2) / (pt1 + pt2)
}

// Summary computes the pair-level kinematics from the ordered leptons.
func (d *Dilepton) Summary() Summary {
	p1, p2 := d.L1.P4, d.L2.P4
	s := Summary{
		LLPt:   d.P4.Pt(),
		LLEta:  d.P4.Eta(),
		LLPhi:  d.P4.Phi(),
		LLM:    d.P4.M(),
		DPhi:   math.Abs(p1.DeltaPhi(p2)),
		DEta:   math.Abs(p1.Eta() - p2.Eta()),
		SumEta: p1.Eta() + p2.Eta(),
	}
	if sum := p1.Pt() + p2.Pt(); sum > 0 {
		s.APt = (p1.Pt() - p2.Pt()) / sum
	}
	return s
}

func (d *Dilepton) String() string {
	return fmt.Sprintf("dilepton{%s %s m=%.2f OF=%t SS=%t Z=%t}",
		d.Header, d.Channel(), d.Mass(), d.IsOF, d.IsSS, d.IsZ)
}
