// Package l4surface owns Layer 4 (Surface) of the scan pipeline: projecting
// the polar radius grid onto Cartesian vertices, filling missing cells,
// closing the angular loop and synthesising the cap row.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+.
package l4surface
