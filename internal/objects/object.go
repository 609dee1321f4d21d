package objects

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/banshee-data/dilepton/internal/lorentz"
)

// Record tags.
const (
	TagLepton = "lepton"
	TagJet    = "jet"
)

// ErrIncompleteKinematics is matched by every error BuildP4 returns.
var ErrIncompleteKinematics = errors.New("incomplete kinematics")

// IncompleteError lists the kinematic fields that were missing or
// non-finite when BuildP4 ran.
type IncompleteError struct {
	Tag     string
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: unable to set p4: missing %s", e.Tag, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrIncompleteKinematics }

// P4State records whether a record's four-momentum has been built.
type P4State int

const (
	P4Unset      P4State = iota // BuildP4 not called yet
	P4Built                     // P4 derived from the current kinematics
	P4Incomplete                // last BuildP4 failed; P4 holds its prior value
)

func (s P4State) String() string {
	switch s {
	case P4Unset:
		return "unset"
	case P4Built:
		return "built"
	case P4Incomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("P4State(%d)", int(s))
	}
}

// Kinematics is the core (pt, eta, phi, mass) parameterisation.
type Kinematics struct {
	Pt   float64
	Eta  float64
	Phi  float64
	Mass float64
}

type fieldMask uint16

const (
	hasPt fieldMask = 1 << iota
	hasEta
	hasPhi
	hasMass
	hasPDGID
	hasCharge
	hasMatched
	hasCenBin
	hasNcollWgt
)

// EventContext carries the per-event fields copied into each lepton.
type EventContext struct {
	CenBin   float64 // centrality bin
	NcollWgt float64 // normalisation weight
}

// Properties returns the context under its branch names.
func (c EventContext) Properties() map[string]float64 {
	return map[string]float64{
		"cenbin":   c.CenBin,
		"ncollWgt": c.NcollWgt,
	}
}

// PhysicsObject is one reconstructed particle.
//
// The kinematic core, calibrated pt, particle id, charge, truth-matching
// flag and event context have dedicated fields; every other branch lands
// in Props. A record is filled with AddProperty and then BuildP4 is called
// once; consumers may keep attaching fields afterwards.
type PhysicsObject struct {
	Tag     string
	Kin     Kinematics
	CalPt   *float64 // calibrated pt, preferred over Kin.Pt when set
	PDGID   int
	Charge  int
	Matched bool
	Context EventContext
	Props   map[string]float64

	P4      lorentz.Vector
	P4State P4State

	has fieldMask
}

// NewPhysicsObject returns an empty record with the given tag.
func NewPhysicsObject(tag string) *PhysicsObject {
	return &PhysicsObject{
		Tag:   tag,
		Props: make(map[string]float64),
	}
}

// AddProperty attaches or overwrites a named field.
func (o *PhysicsObject) AddProperty(name string, val float64) {
	switch name {
	case "pt":
		o.Kin.Pt = val
		o.has |= hasPt
	case "eta":
		o.Kin.Eta = val
		o.has |= hasEta
	case "phi":
		o.Kin.Phi = val
		o.has |= hasPhi
	case "mass":
		o.Kin.Mass = val
		o.has |= hasMass
	case "calpt":
		v := val
		o.CalPt = &v
	case "pdgId":
		o.PDGID = int(val)
		o.has |= hasPDGID
	case "charge":
		o.Charge = int(val)
		o.has |= hasCharge
	case "matched":
		o.Matched = val != 0
		o.has |= hasMatched
	case "cenbin":
		o.Context.CenBin = val
		o.has |= hasCenBin
	case "ncollWgt":
		o.Context.NcollWgt = val
		o.has |= hasNcollWgt
	default:
		if o.Props == nil {
			o.Props = make(map[string]float64)
		}
		o.Props[name] = val
	}
}

// Property returns a field previously set by AddProperty.
func (o *PhysicsObject) Property(name string) (float64, bool) {
	switch name {
	case "pt":
		return o.Kin.Pt, o.has&hasPt != 0
	case "eta":
		return o.Kin.Eta, o.has&hasEta != 0
	case "phi":
		return o.Kin.Phi, o.has&hasPhi != 0
	case "mass":
		return o.Kin.Mass, o.has&hasMass != 0
	case "calpt":
		if o.CalPt == nil {
			return 0, false
		}
		return *o.CalPt, true
	case "pdgId":
		return float64(o.PDGID), o.has&hasPDGID != 0
	case "charge":
		return float64(o.Charge), o.has&hasCharge != 0
	case "matched":
		if o.Matched {
			return 1, o.has&hasMatched != 0
		}
		return 0, o.has&hasMatched != 0
	case "cenbin":
		return o.Context.CenBin, o.has&hasCenBin != 0
	case "ncollWgt":
		return o.Context.NcollWgt, o.has&hasNcollWgt != 0
	}
	v, ok := o.Props[name]
	return v, ok
}

// Fields returns every field that has been set, keyed by branch name.
func (o *PhysicsObject) Fields() map[string]float64 {
	out := make(map[string]float64, len(o.Props)+10)
	for k, v := range o.Props {
		out[k] = v
	}
	for _, name := range []string{"pt", "eta", "phi", "mass", "calpt", "pdgId", "charge", "matched", "cenbin", "ncollWgt"} {
		if v, ok := o.Property(name); ok {
			out[name] = v
		}
	}
	return out
}

// FieldNames returns the sorted names of every set field.
func (o *PhysicsObject) FieldNames() []string {
	fields := o.Fields()
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetEventContext stores ctx on the record.
func (o *PhysicsObject) SetEventContext(ctx EventContext) {
	o.Context = ctx
	o.has |= hasCenBin | hasNcollWgt
}

// SetGlobalEventProperties copies every entry of props onto the record,
// overwriting same-named fields.
func (o *PhysicsObject) SetGlobalEventProperties(props map[string]float64) {
	for k, v := range props {
		o.AddProperty(k, v)
	}
}

// BuildP4 derives the four-momentum from (calpt or pt, eta, phi, mass).
//
// When a required field is missing or non-finite, or the resulting
// momentum overflows, the record is marked P4Incomplete, P4 keeps its prior value and an *IncompleteError is
// returned.
func (o *PhysicsObject) BuildP4() error {
	var missing []string

	pt, ptOK := o.Kin.Pt, o.has&hasPt != 0
	if o.CalPt != nil {
		pt, ptOK = *o.CalPt, true
	}
	check := func(name string, v float64, ok bool) {
		switch {
		case !ok:
			missing = append(missing, name)
		case math.IsNaN(v) || math.IsInf(v, 0):
			missing = append(missing, fmt.Sprintf("%s (%v)", name, v))
		}
	}
	check("pt", pt, ptOK)
	check("eta", o.Kin.Eta, o.has&hasEta != 0)
	check("phi", o.Kin.Phi, o.has&hasPhi != 0)
	check("mass", o.Kin.Mass, o.has&hasMass != 0)

	if len(missing) > 0 {
		o.P4State = P4Incomplete
		return &IncompleteError{Tag: o.Tag, Missing: missing}
	}

	p4 := lorentz.FromPtEtaPhiM(pt, o.Kin.Eta, o.Kin.Phi, o.Kin.Mass)
	if !isFinite(p4.E) || !isFinite(p4.P.X) || !isFinite(p4.P.Y) || !isFinite(p4.P.Z) {
		// e.g. |eta| large enough to overflow sinh
		o.P4State = P4Incomplete
		return &IncompleteError{Tag: o.Tag, Missing: []string{fmt.Sprintf("finite p4 (eta=%v)", o.Kin.Eta)}}
	}
	o.P4 = p4
	o.P4State = P4Built
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Pt returns the transverse momentum of the built four-momentum.
func (o *PhysicsObject) Pt() float64 {
	return o.P4.Pt()
}

// AbsPDGID returns |pdgId|.
func (o *PhysicsObject) AbsPDGID() int {
	if o.PDGID < 0 {
		return -o.PDGID
	}
	return o.PDGID
}

// Isolation returns the isolation value of the given type. Isolation is
// not computed yet; every type reports 0 and isoType is reserved for the
// isofull/miniiso variants.
func (o *PhysicsObject) Isolation(isoType string) float64 {
	return 0
}

// IsIsolated reports whether the record passes the given isolation type.
// Always true until Isolation is implemented; isoType is reserved as for
// Isolation.
func (o *PhysicsObject) IsIsolated(isoType string) bool {
	return true
}

// IsBTagged reports whether the csvv2 discriminant exceeds wp.
func (o *PhysicsObject) IsBTagged(wp float64) bool {
	v, ok := o.Props["csvv2"]
	return ok && v > wp
}

func (o *PhysicsObject) String() string {
	return fmt.Sprintf("%s{pdgId=%d charge=%d p4=%s}", o.Tag, o.PDGID, o.Charge, o.P4)
}
