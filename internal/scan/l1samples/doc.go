// Package l1samples owns Layer 1 (Samples) of the scan pipeline: turning the
// scanner's line-oriented text output into rectangular slices.
//
// Accepted line grammar, applied after trimming whitespace and stripping
// non-ASCII bytes:
//
//	blank      ""                               dropped
//	number     strconv.ParseFloat accepts line  value (9999 is the sentinel)
//	sentinel   "9999" delimited by non-digits   slice boundary
//	salvaged   first DIGITS "." DIGITS run      value
//	anything else                               dropped
//
// Dropped and salvaged lines are not errors; they are counted in ParseStats.
package l1samples
