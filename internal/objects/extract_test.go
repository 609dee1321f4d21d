package objects

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dilepton/internal/config"
	"github.com/banshee-data/dilepton/internal/monitoring"
	"github.com/banshee-data/dilepton/internal/testutil"
	"github.com/banshee-data/dilepton/internal/tuple"
)

// captureLogs redirects the diagnostic channel for the duration of a test.
func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	monitoring.ResetCounters()
	t.Cleanup(func() {
		monitoring.Logf = original
		monitoring.ResetCounters()
	})
	return &lines
}

var mixedHeader = testutil.Header{Run: 326381, Event: 9001, Lumi: 12, CenBin: 30, NcollWgt: 0.75}

func mixedEvent() *tuple.MapEvent {
	return testutil.LeptonEvent(mixedHeader,
		testutil.Lepton{PDGID: 13, Charge: -1, Pt: 35, CalPt: 36, Eta: 0.3, Phi: 1.0, Matched: true},
		testutil.Lepton{PDGID: 15, Charge: 1, Pt: 60, Eta: 0.1, Phi: 0.2},
		testutil.Lepton{PDGID: -11, Charge: 1, Pt: 50, Eta: -1.1, Phi: -2.0, MiniIso: 0.04},
		testutil.Lepton{PDGID: 13, Charge: 1, Pt: 20, Eta: 2.0, Phi: 3.0},
	)
}

func TestGetLeptons_DefaultFilterPreservesOrder(t *testing.T) {
	captureLogs(t)

	leptons, err := GetLeptons(mixedEvent())
	require.NoError(t, err)
	require.Len(t, leptons, 3)

	// tau skipped, no sorting by pt
	assert.Equal(t, 13, leptons[0].PDGID)
	assert.Equal(t, -11, leptons[1].PDGID)
	assert.Equal(t, 13, leptons[2].PDGID)
	assert.InDelta(t, 36.0, leptons[0].Pt(), 1e-9, "calpt preferred")
	assert.InDelta(t, 50.0, leptons[1].Pt(), 1e-9)
	assert.InDelta(t, 20.0, leptons[2].Pt(), 1e-9)

	assert.Equal(t, int64(1), monitoring.Snapshot().SkippedLeptons)
}

func TestGetLeptons_FieldsAndMasses(t *testing.T) {
	captureLogs(t)

	leptons, err := GetLeptons(mixedEvent())
	require.NoError(t, err)

	mu, el := leptons[0], leptons[1]

	assert.Equal(t, TagLepton, mu.Tag)
	assert.Equal(t, MuonMass, mu.Kin.Mass)
	assert.Equal(t, 0.105658, mu.Kin.Mass)
	assert.Equal(t, ElectronMass, el.Kin.Mass)
	assert.Equal(t, 0.511e-3, el.Kin.Mass)
	assert.InDelta(t, 0.511e-3, el.P4.M(), 1e-6)

	assert.True(t, mu.Matched)
	assert.False(t, el.Matched)
	assert.Equal(t, -1, mu.Charge)
	assert.Equal(t, 1, el.Charge)

	miniiso, ok := el.Property("miniiso")
	require.True(t, ok)
	assert.Equal(t, 0.04, miniiso)
	for _, name := range LeptonBranches {
		_, ok := mu.Property(name)
		assert.True(t, ok, "branch %s not copied", name)
	}

	// event context is copied by value into each lepton
	assert.Equal(t, EventContext{CenBin: 30, NcollWgt: 0.75}, mu.Context)
	assert.Equal(t, mu.Context, el.Context)
	el.Context.CenBin = 99
	assert.Equal(t, 30.0, mu.Context.CenBin)
}

func TestGetLeptons_TupleMassIgnored(t *testing.T) {
	captureLogs(t)
	ev := testutil.LeptonEvent(mixedHeader, testutil.Lepton{PDGID: 11, Pt: 30})
	ev.SetArray("lep_mass", 5.0)

	leptons, err := GetLeptons(ev)
	require.NoError(t, err)
	require.Len(t, leptons, 1)
	assert.Equal(t, 0.511e-3, leptons[0].Kin.Mass)
}

func TestGetLeptons_FilterCounts(t *testing.T) {
	captureLogs(t)

	tests := []struct {
		name string
		ids  []int
		want int
	}{
		{"muons", []int{13}, 2},
		{"electrons", []int{11}, 1},
		{"muons and electrons", []int{13, 11}, 3},
		{"taus", []int{15}, 1},
		{"all", []int{11, 13, 15}, 4},
		{"none", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leptons, err := GetLeptons(mixedEvent(), WithPDGIDs(tt.ids...))
			require.NoError(t, err)
			assert.Len(t, leptons, tt.want)
			for _, l := range leptons {
				assert.Contains(t, tt.ids, l.AbsPDGID())
			}
		})
	}
}

func TestGetLeptons_NonElectronGetsMuonMass(t *testing.T) {
	captureLogs(t)
	leptons, err := GetLeptons(mixedEvent(), WithPDGIDs(15))
	require.NoError(t, err)
	require.Len(t, leptons, 1)
	assert.Equal(t, MuonMass, leptons[0].Kin.Mass)
}

func TestGetLeptons_SelectionConfig(t *testing.T) {
	captureLogs(t)
	cfg := config.EmptySelectionConfig()
	cfg.AcceptedPDGIDs = []int{11}
	em := 0.0005
	cfg.ElectronMass = &em

	leptons, err := GetLeptons(mixedEvent(), WithSelectionConfig(cfg))
	require.NoError(t, err)
	require.Len(t, leptons, 1)
	assert.Equal(t, 0.0005, leptons[0].Kin.Mass)
}

func TestGetLeptons_EmptyEvent(t *testing.T) {
	captureLogs(t)
	leptons, err := GetLeptons(testutil.LeptonEvent(mixedHeader))
	require.NoError(t, err)
	assert.NotNil(t, leptons)
	assert.Empty(t, leptons)
}

func TestGetLeptons_OptionalCalPt(t *testing.T) {
	captureLogs(t)
	ev := testutil.LeptonEvent(mixedHeader, testutil.Lepton{PDGID: 13, Pt: 33})
	delete(ev.Arrays, "lep_calpt")

	leptons, err := GetLeptons(ev)
	require.NoError(t, err)
	require.Len(t, leptons, 1)
	assert.Nil(t, leptons[0].CalPt)
	assert.InDelta(t, 33.0, leptons[0].Pt(), 1e-9)
}

func TestGetLeptons_IncompleteP4IsLoggedNotFatal(t *testing.T) {
	logs := captureLogs(t)
	ev := testutil.LeptonEvent(mixedHeader,
		testutil.Lepton{PDGID: 13, Pt: 30, Eta: math.NaN()},
		testutil.Lepton{PDGID: 11, Pt: 25},
	)

	leptons, err := GetLeptons(ev)
	require.NoError(t, err)
	require.Len(t, leptons, 2)

	assert.Equal(t, P4Incomplete, leptons[0].P4State)
	assert.True(t, leptons[0].P4.IsZero())
	assert.Equal(t, P4Built, leptons[1].P4State)

	require.Len(t, *logs, 1)
	assert.Contains(t, (*logs)[0], "lepton 0")
	assert.Contains(t, (*logs)[0], "eta (NaN)")
	assert.Equal(t, int64(1), monitoring.Snapshot().IncompleteP4)
}

func TestGetLeptons_MissingBranches(t *testing.T) {
	captureLogs(t)

	tests := []struct {
		name   string
		mutate func(ev *tuple.MapEvent)
	}{
		{"nlep", func(ev *tuple.MapEvent) { delete(ev.Scalars, "nlep") }},
		{"cenbin", func(ev *tuple.MapEvent) { delete(ev.Scalars, "cenbin") }},
		{"ncollWgt", func(ev *tuple.MapEvent) { delete(ev.Scalars, "ncollWgt") }},
		{"lep_pdgId", func(ev *tuple.MapEvent) { delete(ev.Arrays, "lep_pdgId") }},
		{"lep_eta", func(ev *tuple.MapEvent) { delete(ev.Arrays, "lep_eta") }},
		{"lep_matched", func(ev *tuple.MapEvent) { delete(ev.Arrays, "lep_matched") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mixedEvent()
			tt.mutate(ev)
			_, err := GetLeptons(ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tuple.ErrMissingBranch))
			assert.Contains(t, err.Error(), tt.name)
		})
	}
}

func TestGetLeptons_ShortArray(t *testing.T) {
	captureLogs(t)
	ev := mixedEvent()
	ev.SetArray("lep_dz", 0, 0)

	_, err := GetLeptons(ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tuple.ErrIndexOutOfRange))
}

func TestGetLeptons_NegativeCount(t *testing.T) {
	captureLogs(t)
	ev := mixedEvent().SetScalar("nlep", -1)
	_, err := GetLeptons(ev)
	require.Error(t, err)
}

func TestGetLeptons_CountExceedsArrays(t *testing.T) {
	captureLogs(t)

	for _, n := range []float64{5, 1e18} {
		ev := mixedEvent().SetScalar("nlep", n)
		leptons, err := GetLeptons(ev)
		require.Error(t, err)
		assert.Nil(t, leptons)
		assert.True(t, errors.Is(err, tuple.ErrIndexOutOfRange))
		assert.Contains(t, err.Error(), "lep_pdgId")
	}

	// nothing else in the event is needed to reject the count
	ev := tuple.NewMapEvent().
		SetScalar("nlep", 1e18).
		SetScalar("cenbin", 0).
		SetScalar("ncollWgt", 1).
		SetArray("lep_pdgId")
	_, err := GetLeptons(ev)
	assert.True(t, errors.Is(err, tuple.ErrIndexOutOfRange))
}

func TestGetLeptons_FreshObjectsPerCall(t *testing.T) {
	captureLogs(t)
	ev := mixedEvent()
	a, err := GetLeptons(ev)
	require.NoError(t, err)
	b, err := GetLeptons(ev)
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.NotSame(t, a[i], b[i])
	}
	a[0].AddProperty("miniiso", 42)
	v, _ := b[0].Property("miniiso")
	assert.Equal(t, 0.0, v)
}

func TestGetJets(t *testing.T) {
	captureLogs(t)
	ev := testutil.WithJets(testutil.LeptonEvent(mixedHeader),
		testutil.Jet{Pt: 80, Eta: 0.5, Phi: 1.0, Mass: 10, CSVv2: 0.95, GenPt: 78, Flavor: 5},
		testutil.Jet{Pt: 40, Eta: -2.0, Phi: -1.0, Mass: 6, CSVv2: 0.2, GenPt: 0, Flavor: 0},
	)

	jets, err := GetJets(ev)
	require.NoError(t, err)
	require.Len(t, jets, 2)

	j := jets[0]
	assert.Equal(t, TagJet, j.Tag)
	assert.Equal(t, P4Built, j.P4State)
	assert.InDelta(t, 80.0, j.Pt(), 1e-9)
	assert.InDelta(t, 10.0, j.P4.M(), 1e-6, "jet mass comes from the tuple")
	assert.False(t, j.Matched)
	_, ok := j.Property("cenbin")
	assert.False(t, ok, "jets carry no event context")
	for _, name := range JetBranches {
		_, ok := j.Property(name)
		assert.True(t, ok, "branch %s not copied", name)
	}
	genpt, _ := j.Property("genpt")
	assert.Equal(t, 78.0, genpt)

	tagged := BTaggedJets(jets, config.DefaultBTagWorkingPoint)
	require.Len(t, tagged, 1)
	assert.Same(t, jets[0], tagged[0])
}

func TestGetJets_Errors(t *testing.T) {
	captureLogs(t)

	ev := testutil.WithJets(testutil.LeptonEvent(mixedHeader), testutil.Jet{Pt: 30})
	delete(ev.Arrays, "bjet_flavorB")
	_, err := GetJets(ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tuple.ErrMissingBranch))

	ev = testutil.LeptonEvent(mixedHeader)
	delete(ev.Scalars, "nbjet")
	_, err = GetJets(ev)
	require.Error(t, err)

	ev = testutil.LeptonEvent(mixedHeader).SetScalar("nbjet", -2)
	_, err = GetJets(ev)
	require.Error(t, err)
}

func TestGetJets_CountExceedsArrays(t *testing.T) {
	captureLogs(t)

	for _, n := range []float64{2, 1e18} {
		ev := testutil.WithJets(testutil.LeptonEvent(mixedHeader), testutil.Jet{Pt: 30}).SetScalar("nbjet", n)
		jets, err := GetJets(ev)
		require.Error(t, err)
		assert.Nil(t, jets)
		assert.True(t, errors.Is(err, tuple.ErrIndexOutOfRange))
		assert.Contains(t, err.Error(), "bjet_pt")
	}
}

func TestGetJets_Empty(t *testing.T) {
	captureLogs(t)
	jets, err := GetJets(testutil.LeptonEvent(mixedHeader))
	require.NoError(t, err)
	assert.Empty(t, jets)
}

func TestReadEventContext(t *testing.T) {
	ctx, err := ReadEventContext(mixedEvent())
	require.NoError(t, err)
	assert.Equal(t, EventContext{CenBin: 30, NcollWgt: 0.75}, ctx)
}
