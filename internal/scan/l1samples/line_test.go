package l1samples

import "testing"

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want LineKind
		val  float64
	}{
		{"", LineBlank, 0},
		{"   \t", LineBlank, 0},
		{"1.5", LineValue, 1.5},
		{"  2.25\r", LineValue, 2.25},
		{"-0.5", LineValue, -0.5},
		{"7", LineValue, 7},
		{"9999", LineSentinel, 0},
		{"9999.0", LineSentinel, 0},
		{"END 9999", LineSentinel, 0},
		{"9999\x00", LineSentinel, 0},
		{"dist: 12.75 cm", LineSalvaged, 12.75},
		{"\xef\xbb\xbf3.5", LineValue, 3.5},
		{"a1b23.4c5.6", LineSalvaged, 23.4},
		{"x 9999.5", LineSalvaged, 9999.5},
		{"reading 9999.0!", LineSentinel, 0},
		{"19999.2 noise", LineSalvaged, 19999.2},
		{"dist 12 cm", LineDropped, 0},
		{"NaN", LineDropped, 0},
		{"+Inf", LineDropped, 0},
		{"garbage", LineDropped, 0},
		{".5 cm", LineDropped, 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			v, kind := ClassifyLine(tt.line)
			if kind != tt.want {
				t.Fatalf("ClassifyLine(%q) kind = %v, want %v", tt.line, kind, tt.want)
			}
			if v != tt.val {
				t.Errorf("ClassifyLine(%q) value = %v, want %v", tt.line, v, tt.val)
			}
		})
	}
}

func TestLineKindString(t *testing.T) {
	if LineSalvaged.String() != "salvaged" {
		t.Errorf("got %q", LineSalvaged.String())
	}
	if LineKind(42).String() != "unknown" {
		t.Errorf("got %q", LineKind(42).String())
	}
}
