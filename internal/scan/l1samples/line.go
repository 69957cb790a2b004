package l1samples

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/scanmesh/internal/scan"
)

// LineKind classifies one input line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineValue
	LineSalvaged
	LineSentinel
	LineDropped
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineValue:
		return "value"
	case LineSalvaged:
		return "salvaged"
	case LineSentinel:
		return "sentinel"
	case LineDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// ClassifyLine applies the line grammar to a single line. The returned value
// is only meaningful for LineValue and LineSalvaged.
func ClassifyLine(line string) (float64, LineKind) {
	s := strings.TrimSpace(asciiOnly(line))
	if s == "" {
		return 0, LineBlank
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		if v == scan.Sentinel {
			return 0, LineSentinel
		}
		return v, LineValue
	}
	if hasSentinelToken(s) {
		return 0, LineSentinel
	}
	if sub, ok := firstDecimal(s); ok {
		v, err := strconv.ParseFloat(sub, 64)
		if err == nil {
			if v == scan.Sentinel {
				return 0, LineSentinel
			}
			return v, LineSalvaged
		}
	}
	return 0, LineDropped
}

func asciiOnly(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			var b strings.Builder
			b.Grow(len(s))
			for j := 0; j < len(s); j++ {
				if s[j] < 0x80 {
					b.WriteByte(s[j])
				}
			}
			return b.String()
		}
	}
	return s
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// hasSentinelToken reports whether s contains "9999" as a complete run of
// digits, e.g. "END 9999" but not "19999.2".
func hasSentinelToken(s string) bool {
	for i := 0; i < len(s); {
		if !isDigit(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if s[i:j] == "9999" && (j == len(s) || s[j] != '.') && (i == 0 || s[i-1] != '.') {
			return true
		}
		i = j
	}
	return false
}

// firstDecimal returns the first DIGITS "." DIGITS substring of s.
func firstDecimal(s string) (string, bool) {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) || (i > 0 && isDigit(s[i-1])) {
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j+1 < len(s) && s[j] == '.' && isDigit(s[j+1]) {
			k := j + 1
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			return s[i:k], true
		}
	}
	return "", false
}
