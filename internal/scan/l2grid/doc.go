// Package l2grid owns Layer 2 (Grid) of the scan pipeline: converting raw
// rangefinder slices into a radius grid around the turntable axis.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2grid
