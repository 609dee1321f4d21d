package objects

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dilepton/internal/lorentz"
)

func kinematicObject(pt, eta, phi, mass float64) *PhysicsObject {
	o := NewPhysicsObject(TagLepton)
	o.AddProperty("pt", pt)
	o.AddProperty("eta", eta)
	o.AddProperty("phi", phi)
	o.AddProperty("mass", mass)
	return o
}

func TestNewPhysicsObject_Defaults(t *testing.T) {
	o := NewPhysicsObject(TagLepton)

	assert.Equal(t, TagLepton, o.Tag)
	assert.True(t, o.P4.IsZero())
	assert.Equal(t, P4Unset, o.P4State)
	assert.False(t, o.Matched)
	assert.Empty(t, o.FieldNames())
}

func TestAddProperty_RoutesAndOverwrites(t *testing.T) {
	o := NewPhysicsObject(TagLepton)
	o.AddProperty("pdgId", -13)
	o.AddProperty("charge", 1)
	o.AddProperty("miniiso", 0.12)
	o.AddProperty("miniiso", 0.08)
	o.AddProperty("matched", 1)

	assert.Equal(t, -13, o.PDGID)
	assert.Equal(t, 13, o.AbsPDGID())
	assert.Equal(t, 1, o.Charge)
	assert.True(t, o.Matched)

	v, ok := o.Property("miniiso")
	require.True(t, ok)
	assert.Equal(t, 0.08, v)

	_, ok = o.Property("eta")
	assert.False(t, ok, "eta was never set")
	_, ok = o.Property("calpt")
	assert.False(t, ok)
	_, ok = o.Property("nosuch")
	assert.False(t, ok)

	want := []string{"charge", "matched", "miniiso", "pdgId"}
	if diff := cmp.Diff(want, o.FieldNames()); diff != "" {
		t.Errorf("FieldNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildP4_PrefersCalibratedPt(t *testing.T) {
	o := kinematicObject(40, 0, 0, 0.10566)
	o.AddProperty("calpt", 45)

	require.NoError(t, o.BuildP4())
	assert.Equal(t, P4Built, o.P4State)
	assert.InDelta(t, 45.0, o.P4.Pt(), 1e-9)
	assert.InDelta(t, 45.0, o.Pt(), 1e-9)
	assert.InDelta(t, 0.10566, o.P4.M(), 1e-6)
}

func TestBuildP4_FallsBackToRawPt(t *testing.T) {
	o := kinematicObject(40, 1.2, -0.4, 0.105658)

	require.NoError(t, o.BuildP4())
	assert.InDelta(t, 40.0, o.P4.Pt(), 1e-9)
	assert.InDelta(t, 1.2, o.P4.Eta(), 1e-9)
	assert.InDelta(t, -0.4, o.P4.Phi(), 1e-9)
}

func TestBuildP4_CalPtWithoutRawPt(t *testing.T) {
	o := NewPhysicsObject(TagLepton)
	o.AddProperty("calpt", 30)
	o.AddProperty("eta", 0)
	o.AddProperty("phi", 0)
	o.AddProperty("mass", 0)

	require.NoError(t, o.BuildP4())
	assert.InDelta(t, 30.0, o.P4.Pt(), 1e-9)
}

func TestBuildP4_Incomplete(t *testing.T) {
	tests := []struct {
		name        string
		build       func() *PhysicsObject
		wantMissing []string
	}{
		{
			name: "missing eta and mass",
			build: func() *PhysicsObject {
				o := NewPhysicsObject(TagJet)
				o.AddProperty("pt", 30)
				o.AddProperty("phi", 0)
				return o
			},
			wantMissing: []string{"eta", "mass"},
		},
		{
			name:        "empty record",
			build:       func() *PhysicsObject { return NewPhysicsObject(TagLepton) },
			wantMissing: []string{"pt", "eta", "phi", "mass"},
		},
		{
			name:        "non-finite eta",
			build:       func() *PhysicsObject { return kinematicObject(30, math.NaN(), 0, 0) },
			wantMissing: []string{"eta (NaN)"},
		},
		{
			name: "infinite calibrated pt",
			build: func() *PhysicsObject {
				o := kinematicObject(30, 0, 0, 0)
				o.AddProperty("calpt", math.Inf(1))
				return o
			},
			wantMissing: []string{"pt (+Inf)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.build()
			err := o.BuildP4()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncompleteKinematics))

			var inc *IncompleteError
			require.True(t, errors.As(err, &inc))
			assert.Equal(t, tt.wantMissing, inc.Missing)
			assert.Equal(t, P4Incomplete, o.P4State)
			assert.True(t, o.P4.IsZero(), "P4 must keep its prior (zero) value")
		})
	}
}

func TestBuildP4_FailureKeepsPriorMomentum(t *testing.T) {
	o := kinematicObject(20, 0, 0, 0)
	require.NoError(t, o.BuildP4())
	prior := o.P4

	o.AddProperty("eta", math.NaN())
	require.Error(t, o.BuildP4())
	assert.Equal(t, prior, o.P4)
	assert.Equal(t, P4Incomplete, o.P4State)
}

func TestBuildP4_OverflowIsIncomplete(t *testing.T) {
	o := kinematicObject(20, 0.5, 0, 0)
	require.NoError(t, o.BuildP4())
	prior := o.P4

	// sinh(800) overflows float64
	o.AddProperty("eta", 800)
	err := o.BuildP4()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteKinematics))

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"finite p4 (eta=800)"}, incomplete.Missing)
	assert.Equal(t, P4Incomplete, o.P4State)
	assert.Equal(t, prior, o.P4)
	assert.False(t, math.IsNaN(o.P4.M()))
}

func TestIncompleteError_Message(t *testing.T) {
	err := &IncompleteError{Tag: TagJet, Missing: []string{"eta", "phi"}}
	assert.Equal(t, "jet: unable to set p4: missing eta, phi", err.Error())
}

func TestSetGlobalEventProperties(t *testing.T) {
	o := NewPhysicsObject(TagLepton)
	o.AddProperty("cenbin", 1)

	o.SetGlobalEventProperties(map[string]float64{"cenbin": 12, "ncollWgt": 0.25, "hiHF": 3000})

	assert.Equal(t, 12.0, o.Context.CenBin)
	assert.Equal(t, 0.25, o.Context.NcollWgt)
	v, ok := o.Property("hiHF")
	require.True(t, ok)
	assert.Equal(t, 3000.0, v)
}

func TestSetEventContext(t *testing.T) {
	o := NewPhysicsObject(TagLepton)
	ctx := EventContext{CenBin: 4, NcollWgt: 1.5}
	o.SetEventContext(ctx)

	assert.Equal(t, ctx, o.Context)
	assert.Equal(t, map[string]float64{"cenbin": 4, "ncollWgt": 1.5}, o.Fields())
	assert.Equal(t, ctx.Properties(), o.Fields())
}

func TestIsolationStub(t *testing.T) {
	o := kinematicObject(20, 0, 0, 0)
	for _, iso := range []string{"isofull", "miniiso", "anything"} {
		assert.Equal(t, 0.0, o.Isolation(iso))
		assert.True(t, o.IsIsolated(iso))
	}
}

func TestIsBTagged(t *testing.T) {
	jet := NewPhysicsObject(TagJet)
	assert.False(t, jet.IsBTagged(0.8838), "no discriminant")

	jet.AddProperty("csvv2", 0.9)
	assert.True(t, jet.IsBTagged(0.8838))
	jet.AddProperty("csvv2", 0.8838)
	assert.False(t, jet.IsBTagged(0.8838), "working point is exclusive")
}

func TestP4StateString(t *testing.T) {
	assert.Equal(t, "unset", P4Unset.String())
	assert.Equal(t, "built", P4Built.String())
	assert.Equal(t, "incomplete", P4Incomplete.String())
	assert.Equal(t, "P4State(9)", P4State(9).String())
}

func TestString(t *testing.T) {
	o := kinematicObject(45, 0, 0, 0)
	o.AddProperty("pdgId", 11)
	o.AddProperty("charge", -1)
	require.NoError(t, o.BuildP4())

	want := "lepton{pdgId=11 charge=-1 p4=" + lorentz.FromPtEtaPhiM(45, 0, 0, 0).String() + "}"
	assert.Equal(t, want, o.String())
}
