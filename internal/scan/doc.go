// Package scan holds the shared data model of the scan reconstruction
// pipeline: slices of raw distance samples, the radius grid with explicit
// missing cells, the projected vertex grid and the triangle-soup mesh.
//
// Stage logic lives in the layer packages:
//
//	l1samples  raw text -> slices
//	l2grid     slices -> radius grid (inversion, range gating)
//	l3profile  radius grid -> resampled / smoothed radius grid
//	l4surface  radius grid -> vertex grid (fill, loop closure, cap)
//	l5mesh     vertex grid -> triangles
//
// Dependency rule: layer N may import this package and layers below N,
// never layers above it. No SQL or HTTP code is allowed in these packages.
package scan
