package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MeshRun is one reconstruction of a scan: the parameters used, a digest of
// the result and the encoded STL.
type MeshRun struct {
	RunID         string          `json:"run_id"`
	ScanID        string          `json:"scan_id"`
	CreatedAt     int64           `json:"created_at"`
	ParamsJSON    json.RawMessage `json:"params,omitempty"`
	SummaryJSON   json.RawMessage `json:"summary,omitempty"`
	Rows          int             `json:"rows"`
	Cols          int             `json:"cols"`
	TriangleCount int             `json:"triangle_count"`
	MissingCells  int             `json:"missing_cells"`
	STLFormat     string          `json:"stl_format"`
	STL           []byte          `json:"-"`
}

// MeshRunStore provides persistence for mesh runs.
type MeshRunStore struct {
	db *sql.DB
}

// NewMeshRunStore creates a new MeshRunStore.
func NewMeshRunStore(db *sql.DB) *MeshRunStore {
	return &MeshRunStore{db: db}
}

const meshRunColumns = `run_id, scan_id, created_unix_nanos, params_json, summary_json,
		       grid_rows, grid_cols, triangle_count, missing_cells, stl_format, stl_blob`

// Insert persists a mesh run. If RunID is empty, a UUID is generated.
func (s *MeshRunStore) Insert(run *MeshRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	if run.STLFormat == "" {
		run.STLFormat = "binary"
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO mesh_runs (`+meshRunColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.ScanID, run.CreatedAt, nullJSON(run.ParamsJSON), nullJSON(run.SummaryJSON),
			run.Rows, run.Cols, run.TriangleCount, run.MissingCells, run.STLFormat, run.STL,
		)
		return err
	})
}

// Get returns a single mesh run by ID.
func (s *MeshRunStore) Get(runID string) (*MeshRun, error) {
	row := s.db.QueryRow(`SELECT `+meshRunColumns+` FROM mesh_runs WHERE run_id = ?`, runID)
	run, err := scanMeshRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mesh run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// LatestForScan returns the newest mesh run reconstructed from scanID.
func (s *MeshRunStore) LatestForScan(scanID string) (*MeshRun, error) {
	row := s.db.QueryRow(`
		SELECT `+meshRunColumns+`
		FROM mesh_runs
		WHERE scan_id = ?
		ORDER BY created_unix_nanos DESC
		LIMIT 1`, scanID)
	run, err := scanMeshRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mesh run for scan %s: %w", scanID, ErrNotFound)
	}
	return run, err
}

// ListByScan returns the runs for a scan without STL bytes, newest first.
func (s *MeshRunStore) ListByScan(scanID string) ([]*MeshRun, error) {
	rows, err := s.db.Query(`
		SELECT `+meshRunColumns+`
		FROM mesh_runs
		WHERE scan_id = ?
		ORDER BY created_unix_nanos DESC`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query mesh runs: %w", err)
	}
	defer rows.Close()

	var runs []*MeshRun
	for rows.Next() {
		run, err := scanMeshRun(rows)
		if err != nil {
			return nil, err
		}
		run.STL = nil
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeshRun(r rowScanner) (*MeshRun, error) {
	var run MeshRun
	var params, summary sql.NullString
	err := r.Scan(
		&run.RunID, &run.ScanID, &run.CreatedAt, &params, &summary,
		&run.Rows, &run.Cols, &run.TriangleCount, &run.MissingCells, &run.STLFormat, &run.STL,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan mesh run: %w", err)
	}
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	if summary.Valid {
		run.SummaryJSON = json.RawMessage(summary.String)
	}
	return &run, nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
