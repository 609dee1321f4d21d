package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dilepton/internal/dilepton"
	"github.com/banshee-data/dilepton/internal/objects"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SelectionRun is one pass of the selector over an input file.
type SelectionRun struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	SourcePath     string    `json:"source_path"`
	ConfigJSON     []byte    `json:"config_json,omitempty"`
	Status         string    `json:"status"`
	EventsTotal    int       `json:"events_total"`
	EventsSelected int       `json:"events_selected"`
	EventsTooFew   int       `json:"events_too_few"`
	IncompleteP4   int       `json:"incomplete_p4"`
}

// Candidate is the stored form of one selected dilepton.
type Candidate struct {
	CandidateID string `json:"candidate_id"`
	RunID       string `json:"run_id"`

	dilepton.EventHeader
	Channel string `json:"channel"`
	Flavour int    `json:"flavour"`
	IsOF    bool   `json:"is_of"`
	IsSS    bool   `json:"is_ss"`
	IsZ     bool   `json:"is_z"`

	L1 CandidateLepton `json:"l1"`
	L2 CandidateLepton `json:"l2"`

	dilepton.Summary
	CenBin   float64 `json:"cenbin"`
	NcollWgt float64 `json:"ncoll_wgt"`
}

// CandidateLepton is the stored kinematics of one constituent lepton.
type CandidateLepton struct {
	PDGID  int     `json:"pdg_id"`
	Charge int     `json:"charge"`
	Pt     float64 `json:"pt"`
	Eta    float64 `json:"eta"`
	Phi    float64 `json:"phi"`
}

// NewCandidate flattens d for storage under runID.
func NewCandidate(runID string, d *dilepton.Dilepton) Candidate {
	return Candidate{
		RunID:       runID,
		EventHeader: d.Header,
		Channel:     d.Channel(),
		Flavour:     d.Flavour,
		IsOF:        d.IsOF,
		IsSS:        d.IsSS,
		IsZ:         d.IsZ,
		L1:          newCandidateLepton(d.L1),
		L2:          newCandidateLepton(d.L2),
		Summary:     d.Summary(),
		CenBin:      d.L1.Context.CenBin,
		NcollWgt:    d.L1.Context.NcollWgt,
	}
}

func newCandidateLepton(o *objects.PhysicsObject) CandidateLepton {
	return CandidateLepton{
		PDGID:  o.PDGID,
		Charge: o.Charge,
		Pt:     o.P4.Pt(),
		Eta:    o.P4.Eta(),
		Phi:    o.P4.Phi(),
	}
}

// InsertRun records a new selection run. If run.RunID is empty, a new UUID
// is generated; a zero CreatedAt is set to now.
func (db *DB) InsertRun(run *SelectionRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	_, err := db.Exec(`
		INSERT INTO selection_runs (
			run_id, created_at, source_path, config_json, status,
			events_total, events_selected, events_too_few, incomplete_p4
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.CreatedAt.UnixNano(),
		run.SourcePath,
		nullBytes(run.ConfigJSON),
		run.Status,
		run.EventsTotal,
		run.EventsSelected,
		run.EventsTooFew,
		run.IncompleteP4,
	)
	if err != nil {
		return fmt.Errorf("insert selection run: %w", err)
	}
	return nil
}

// CompleteRun stores the final counters and status of a run.
func (db *DB) CompleteRun(run *SelectionRun) error {
	res, err := db.Exec(`
		UPDATE selection_runs
		SET status = ?, events_total = ?, events_selected = ?, events_too_few = ?, incomplete_p4 = ?
		WHERE run_id = ?`,
		run.Status, run.EventsTotal, run.EventsSelected, run.EventsTooFew, run.IncompleteP4, run.RunID,
	)
	if err != nil {
		return fmt.Errorf("complete selection run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete selection run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("complete selection run %s: %w", run.RunID, sql.ErrNoRows)
	}
	return nil
}

// GetRun loads a run by ID. Returns sql.ErrNoRows (wrapped) if absent.
func (db *DB) GetRun(runID string) (*SelectionRun, error) {
	var (
		run       SelectionRun
		createdNs int64
		cfg       sql.NullString
	)
	err := db.QueryRow(`
		SELECT run_id, created_at, source_path, config_json, status,
		       events_total, events_selected, events_too_few, incomplete_p4
		FROM selection_runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &createdNs, &run.SourcePath, &cfg, &run.Status,
		&run.EventsTotal, &run.EventsSelected, &run.EventsTooFew, &run.IncompleteP4)
	if err != nil {
		return nil, fmt.Errorf("get selection run %s: %w", runID, err)
	}
	run.CreatedAt = time.Unix(0, createdNs)
	if cfg.Valid {
		run.ConfigJSON = []byte(cfg.String)
	}
	return &run, nil
}

// InsertCandidates stores cands in one transaction, assigning a UUID to
// every candidate without one.
func (db *DB) InsertCandidates(cands []Candidate) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert candidates: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO dilepton_candidates (
			candidate_id, run_id, run, lumi, event, channel, flavour, is_of, is_ss, is_z,
			l1_pdg_id, l1_charge, l1_pt, l1_eta, l1_phi,
			l2_pdg_id, l2_charge, l2_pt, l2_eta, l2_phi,
			llpt, lleta, llphi, llm, dphi, deta, sumeta, apt,
			cenbin, ncoll_wgt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert candidates: %w", err)
	}
	defer stmt.Close()

	for i := range cands {
		c := &cands[i]
		if c.CandidateID == "" {
			c.CandidateID = uuid.New().String()
		}
		_, err := stmt.Exec(
			c.CandidateID, c.RunID, c.Run, c.Lumi, c.Event, c.Channel, c.Flavour,
			boolToInt(c.IsOF), boolToInt(c.IsSS), boolToInt(c.IsZ),
			c.L1.PDGID, c.L1.Charge, c.L1.Pt, c.L1.Eta, c.L1.Phi,
			c.L2.PDGID, c.L2.Charge, c.L2.Pt, c.L2.Eta, c.L2.Phi,
			c.LLPt, c.LLEta, c.LLPhi, c.LLM, c.DPhi, c.DEta, c.SumEta, c.APt,
			c.CenBin, c.NcollWgt,
		)
		if err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.EventHeader, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert candidates: %w", err)
	}
	return nil
}

// Candidates returns every candidate of a run ordered by (run, lumi, event).
func (db *DB) Candidates(runID string) ([]Candidate, error) {
	rows, err := db.Query(`
		SELECT candidate_id, run_id, run, lumi, event, channel, flavour, is_of, is_ss, is_z,
		       l1_pdg_id, l1_charge, l1_pt, l1_eta, l1_phi,
		       l2_pdg_id, l2_charge, l2_pt, l2_eta, l2_phi,
		       llpt, lleta, llphi, llm, dphi, deta, sumeta, apt,
		       cenbin, ncoll_wgt
		FROM dilepton_candidates
		WHERE run_id = ?
		ORDER BY run, lumi, event`, runID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c              Candidate
			isOF, isSS, iZ int
		)
		if err := rows.Scan(
			&c.CandidateID, &c.RunID, &c.Run, &c.Lumi, &c.Event, &c.Channel, &c.Flavour,
			&isOF, &isSS, &iZ,
			&c.L1.PDGID, &c.L1.Charge, &c.L1.Pt, &c.L1.Eta, &c.L1.Phi,
			&c.L2.PDGID, &c.L2.Charge, &c.L2.Pt, &c.L2.Eta, &c.L2.Phi,
			&c.LLPt, &c.LLEta, &c.LLPhi, &c.LLM, &c.DPhi, &c.DEta, &c.SumEta, &c.APt,
			&c.CenBin, &c.NcollWgt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.IsOF, c.IsSS, c.IsZ = isOF != 0, isSS != 0, iZ != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// ChannelCount is the number of candidates (and Z-window candidates) in
// one flavour channel.
type ChannelCount struct {
	Channel string `json:"channel"`
	Total   int    `json:"total"`
	ZWindow int    `json:"z_window"`
	SameSgn int    `json:"same_sign"`
}

// RunSummary returns per-channel candidate counts for a run, ordered by
// channel name.
func (db *DB) RunSummary(runID string) ([]ChannelCount, error) {
	rows, err := db.Query(`
		SELECT channel, COUNT(*), SUM(is_z), SUM(is_ss)
		FROM dilepton_candidates
		WHERE run_id = ?
		GROUP BY channel
		ORDER BY channel`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	var out []ChannelCount
	for rows.Next() {
		var cc ChannelCount
		if err := rows.Scan(&cc.Channel, &cc.Total, &cc.ZWindow, &cc.SameSgn); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
