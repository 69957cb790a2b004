package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scan is one captured or uploaded block of scanner text.
type Scan struct {
	ScanID    string `json:"scan_id"`
	CreatedAt int64  `json:"created_at"`
	Source    string `json:"source"`
	RawText   string `json:"raw_text,omitempty"`
	LineCount int    `json:"line_count"`
}

// ScanStore provides persistence for raw scans.
type ScanStore struct {
	db *sql.DB
}

// NewScanStore creates a new ScanStore.
func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db}
}

// Insert persists a scan. ScanID, CreatedAt and LineCount are filled in when
// zero.
func (s *ScanStore) Insert(scan *Scan) error {
	if scan.ScanID == "" {
		scan.ScanID = uuid.New().String()
	}
	if scan.CreatedAt == 0 {
		scan.CreatedAt = time.Now().UnixNano()
	}
	if scan.Source == "" {
		scan.Source = "upload"
	}
	if scan.LineCount == 0 {
		scan.LineCount = countLines(scan.RawText)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO scans (scan_id, created_unix_nanos, source, raw_text, line_count)
			VALUES (?, ?, ?, ?, ?)`,
			scan.ScanID, scan.CreatedAt, scan.Source, scan.RawText, scan.LineCount,
		)
		return err
	})
}

// Get returns a scan including its raw text.
func (s *ScanStore) Get(scanID string) (*Scan, error) {
	row := s.db.QueryRow(`
		SELECT scan_id, created_unix_nanos, source, raw_text, line_count
		FROM scans
		WHERE scan_id = ?`, scanID)

	var sc Scan
	err := row.Scan(&sc.ScanID, &sc.CreatedAt, &sc.Source, &sc.RawText, &sc.LineCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scan %s: %w", scanID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan scan: %w", err)
	}
	return &sc, nil
}

// List returns the most recent scans without their raw text, newest first.
func (s *ScanStore) List(limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT scan_id, created_unix_nanos, source, line_count
		FROM scans
		ORDER BY created_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ScanID, &sc.CreatedAt, &sc.Source, &sc.LineCount); err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		scans = append(scans, &sc)
	}
	return scans, rows.Err()
}

// Delete removes a scan and, through the foreign key, its mesh runs.
func (s *ScanStore) Delete(scanID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM scans WHERE scan_id = ?`, scanID)
		if err != nil {
			return fmt.Errorf("delete scan: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("scan %s: %w", scanID, ErrNotFound)
		}
		return nil
	})
}

func countLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
