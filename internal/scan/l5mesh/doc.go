// Package l5mesh owns Layer 5 (Mesh) of the scan pipeline: turning the
// closed vertex grid into an ordered triangle soup.
//
// Dependency rule: L5 may depend on L1-L4 types, but never on export,
// storage or transport code.
package l5mesh
