// Package pipeline runs the scan reconstruction end to end: text in,
// triangle soup out.
//
// This package is the composition root: it imports the layer packages
// (l1samples .. l5mesh), the STL exporter and the config schema, but none
// of those packages import pipeline/.
package pipeline
