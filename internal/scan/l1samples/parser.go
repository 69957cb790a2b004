package l1samples

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/scanmesh/internal/monitoring"
	"github.com/banshee-data/scanmesh/internal/scan"
)

// maxLineBytes bounds a single input line. Scanner firmware emits short
// lines; anything longer is corrupt and aborts the parse.
const maxLineBytes = 64 * 1024

// RaggedPolicy selects what happens when complete slices differ in length.
type RaggedPolicy int

const (
	// RaggedReject fails the parse with scan.ErrNonRectangularScan.
	RaggedReject RaggedPolicy = iota
	// RaggedTruncate shortens every slice to the shortest one.
	RaggedTruncate
)

// ParseRaggedPolicy maps a config string onto a RaggedPolicy.
func ParseRaggedPolicy(s string) (RaggedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RaggedReject, nil
	case "truncate":
		return RaggedTruncate, nil
	default:
		return RaggedReject, fmt.Errorf("%w: unknown ragged slice policy %q", scan.ErrInvalidConfig, s)
	}
}

// Options controls slice assembly.
type Options struct {
	Ragged RaggedPolicy
}

// ParseStats counts how each input line was classified.
type ParseStats struct {
	Lines           int `json:"lines"`
	Blank           int `json:"blank"`
	Values          int `json:"values"`
	Salvaged        int `json:"salvaged"`
	Dropped         int `json:"dropped"`
	Sentinels       int `json:"sentinels"`
	EmptySlices     int `json:"empty_slices"`
	TrailingSamples int `json:"trailing_samples"`
	TruncatedCells  int `json:"truncated_cells"`
}

// Result is the output of Parse: equal-length slices in input order.
type Result struct {
	Slices []scan.Slice
	Stats  ParseStats
}

// Cols returns the angular bin count shared by every slice.
func (r *Result) Cols() int {
	if r == nil || len(r.Slices) == 0 {
		return 0
	}
	return len(r.Slices[0])
}

// Parse reads scanner output and splits it into slices at each sentinel.
// A trailing run of samples with no closing sentinel is discarded, as are
// zero-length slices between consecutive sentinels.
func Parse(r io.Reader, opts Options) (*Result, error) {
	res := &Result{}
	var current scan.Slice

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		res.Stats.Lines++
		v, kind := ClassifyLine(sc.Text())
		switch kind {
		case LineBlank:
			res.Stats.Blank++
		case LineDropped:
			res.Stats.Dropped++
		case LineValue:
			res.Stats.Values++
			current = append(current, v)
		case LineSalvaged:
			res.Stats.Salvaged++
			current = append(current, v)
		case LineSentinel:
			res.Stats.Sentinels++
			if len(current) == 0 {
				res.Stats.EmptySlices++
				continue
			}
			res.Slices = append(res.Slices, current)
			current = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	res.Stats.TrailingSamples = len(current)

	if res.Stats.Dropped > 0 || res.Stats.Salvaged > 0 {
		monitoring.Logf("[l1samples] %d lines: %d salvaged, %d dropped", res.Stats.Lines, res.Stats.Salvaged, res.Stats.Dropped)
	}

	if len(res.Slices) == 0 {
		return nil, fmt.Errorf("%w: %d lines, %d sentinels", scan.ErrEmptyScan, res.Stats.Lines, res.Stats.Sentinels)
	}
	if err := rectangularize(res, opts.Ragged); err != nil {
		return nil, err
	}
	return res, nil
}

// ParseLines is Parse over an in-memory line slice.
func ParseLines(lines []string, opts Options) (*Result, error) {
	return Parse(strings.NewReader(strings.Join(lines, "\n")), opts)
}

func rectangularize(res *Result, policy RaggedPolicy) error {
	want := len(res.Slices[0])
	shortest := want
	ragged := false
	for _, s := range res.Slices[1:] {
		if len(s) != want {
			ragged = true
		}
		if len(s) < shortest {
			shortest = len(s)
		}
	}
	if !ragged {
		return nil
	}

	if policy != RaggedTruncate {
		for i, s := range res.Slices {
			if len(s) != want {
				return fmt.Errorf("%w: slice %d has %d samples, slice 0 has %d", scan.ErrNonRectangularScan, i, len(s), want)
			}
		}
	}

	for i, s := range res.Slices {
		res.Stats.TruncatedCells += len(s) - shortest
		res.Slices[i] = s[:shortest:shortest]
	}
	monitoring.Logf("[l1samples] truncated %d slices to %d samples (%d cells dropped)", len(res.Slices), shortest, res.Stats.TruncatedCells)
	return nil
}
