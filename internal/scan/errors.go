package scan

import "errors"

// Sentinel errors returned by the pipeline stages. Callers match them with
// errors.Is; stages wrap them with fmt.Errorf to add the offending index or
// value.
var (
	// ErrEmptyScan is returned when the input yields no complete slice.
	ErrEmptyScan = errors.New("scan: no complete slice found")

	// ErrNonRectangularScan is returned when retained slices differ in length.
	ErrNonRectangularScan = errors.New("scan: slices differ in length")

	// ErrInvalidResampleFactor is returned for an upsampling factor below 1
	// or one whose output grid would exceed MaxGridCells.
	ErrInvalidResampleFactor = errors.New("scan: invalid resample factor")

	// ErrAllMissingRow is returned by the projector when a row has no valid
	// cell and the configured policy refuses to synthesise one.
	ErrAllMissingRow = errors.New("scan: row has no valid radius")

	// ErrInvalidConfig is returned for out-of-range stage parameters.
	ErrInvalidConfig = errors.New("scan: invalid configuration")
)
