// Package l3profile owns Layer 3 (Profile) of the scan pipeline: vertical
// resampling and 2D Gaussian smoothing of the radius grid.
//
// Both operations treat missing cells explicitly. Resampling propagates
// missingness to any output cell that draws on a missing input; smoothing
// excludes missing neighbours and renormalises the kernel over the valid
// ones. A missing cell never becomes valid in this layer.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3profile
