package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical selection defaults file.
const DefaultConfigPath = "config/selection.defaults.json"

// Built-in defaults. These reproduce the fixed constants of the original
// dilepton selection and are used whenever a field is left unset.
const (
	DefaultZMass                  = 91.0
	DefaultZWindow                = 15.0
	DefaultOppositeFlavourProduct = 143
	DefaultElectronMass           = 0.511e-3
	DefaultMuonMass               = 0.105658
	DefaultBTagWorkingPoint       = 0.8838
	DefaultWorkers                = 1
)

// DefaultAcceptedPDGIDs is the lepton filter used when none is configured:
// muons first, then electrons.
var DefaultAcceptedPDGIDs = []int{13, 11}

// SelectionConfig holds the tunable constants of the object and dilepton
// selection. Unset (nil) fields fall back to the Default* values via the
// Get* accessors, so partial files are safe.
type SelectionConfig struct {
	// Dilepton classification
	ZMass                  *float64 `json:"z_mass,omitempty" yaml:"z_mass,omitempty"`
	ZWindow                *float64 `json:"z_window,omitempty" yaml:"z_window,omitempty"`
	OppositeFlavourProduct *int     `json:"opposite_flavour_product,omitempty" yaml:"opposite_flavour_product,omitempty"`

	// Lepton extraction
	AcceptedPDGIDs     []int    `json:"accepted_pdg_ids,omitempty" yaml:"accepted_pdg_ids,omitempty"`
	ElectronMass       *float64 `json:"electron_mass,omitempty" yaml:"electron_mass,omitempty"`
	MuonMass           *float64 `json:"muon_mass,omitempty" yaml:"muon_mass,omitempty"`
	LeptonPreselection *string  `json:"lepton_preselection,omitempty" yaml:"lepton_preselection,omitempty"` // CEL expression over `lep`

	// Jets
	BTagWorkingPoint *float64 `json:"btag_working_point,omitempty" yaml:"btag_working_point,omitempty"`

	// Batch processing
	Workers *int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptySelectionConfig returns a SelectionConfig with all fields unset.
func EmptySelectionConfig() *SelectionConfig {
	return &SelectionConfig{}
}

// DefaultSelectionConfig returns a SelectionConfig with every field set to
// its built-in default.
func DefaultSelectionConfig() *SelectionConfig {
	return &SelectionConfig{
		ZMass:                  ptrFloat64(DefaultZMass),
		ZWindow:                ptrFloat64(DefaultZWindow),
		OppositeFlavourProduct: ptrInt(DefaultOppositeFlavourProduct),
		AcceptedPDGIDs:         append([]int(nil), DefaultAcceptedPDGIDs...),
		ElectronMass:           ptrFloat64(DefaultElectronMass),
		MuonMass:               ptrFloat64(DefaultMuonMass),
		LeptonPreselection:     ptrString(""),
		BTagWorkingPoint:       ptrFloat64(DefaultBTagWorkingPoint),
		Workers:                ptrInt(DefaultWorkers),
	}
}

// LoadSelectionConfig loads a SelectionConfig from a .json, .yaml or .yml
// file. The file must be under 1MB. Omitted fields keep their defaults.
func LoadSelectionConfig(path string) (*SelectionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySelectionConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SelectionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadSelectionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SelectionConfig) Validate() error {
	if c.ZMass != nil && *c.ZMass <= 0 {
		return fmt.Errorf("z_mass must be positive, got %f", *c.ZMass)
	}
	if c.ZWindow != nil && *c.ZWindow <= 0 {
		return fmt.Errorf("z_window must be positive, got %f", *c.ZWindow)
	}
	if c.OppositeFlavourProduct != nil && *c.OppositeFlavourProduct <= 0 {
		return fmt.Errorf("opposite_flavour_product must be positive, got %d", *c.OppositeFlavourProduct)
	}
	for _, id := range c.AcceptedPDGIDs {
		if id <= 0 {
			return fmt.Errorf("accepted_pdg_ids must hold absolute codes, got %d", id)
		}
	}
	if c.ElectronMass != nil && *c.ElectronMass < 0 {
		return fmt.Errorf("electron_mass must be non-negative, got %f", *c.ElectronMass)
	}
	if c.MuonMass != nil && *c.MuonMass < 0 {
		return fmt.Errorf("muon_mass must be non-negative, got %f", *c.MuonMass)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetZMass returns the z_mass value or the default.
func (c *SelectionConfig) GetZMass() float64 {
	if c.ZMass == nil {
		return DefaultZMass
	}
	return *c.ZMass
}

// GetZWindow returns the z_window value or the default.
func (c *SelectionConfig) GetZWindow() float64 {
	if c.ZWindow == nil {
		return DefaultZWindow
	}
	return *c.ZWindow
}

// GetOppositeFlavourProduct returns the opposite_flavour_product value or the default.
func (c *SelectionConfig) GetOppositeFlavourProduct() int {
	if c.OppositeFlavourProduct == nil {
		return DefaultOppositeFlavourProduct
	}
	return *c.OppositeFlavourProduct
}

// GetAcceptedPDGIDs returns a copy of the accepted_pdg_ids list or the default.
func (c *SelectionConfig) GetAcceptedPDGIDs() []int {
	if len(c.AcceptedPDGIDs) == 0 {
		return append([]int(nil), DefaultAcceptedPDGIDs...)
	}
	return append([]int(nil), c.AcceptedPDGIDs...)
}

// GetElectronMass returns the electron_mass value or the default.
func (c *SelectionConfig) GetElectronMass() float64 {
	if c.ElectronMass == nil {
		return DefaultElectronMass
	}
	return *c.ElectronMass
}

// GetMuonMass returns the muon_mass value or the default.
func (c *SelectionConfig) GetMuonMass() float64 {
	if c.MuonMass == nil {
		return DefaultMuonMass
	}
	return *c.MuonMass
}

// GetLeptonPreselection returns the lepton_preselection expression or "".
func (c *SelectionConfig) GetLeptonPreselection() string {
	if c.LeptonPreselection == nil {
		return ""
	}
	return *c.LeptonPreselection
}

// GetBTagWorkingPoint returns the btag_working_point value or the default.
func (c *SelectionConfig) GetBTagWorkingPoint() float64 {
	if c.BTagWorkingPoint == nil {
		return DefaultBTagWorkingPoint
	}
	return *c.BTagWorkingPoint
}

// GetWorkers returns the workers value or the default.
func (c *SelectionConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}
