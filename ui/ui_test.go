package ui

import (
	"testing"
	"unicode/utf8"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"rising", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 10, "▁▂▃▄▅▆▇█"},
		{"flat", []float64{5, 5, 5}, 10, "▄▄▄"},
		{"single column", []float64{1, 9, 3}, 1, "▄"},
	}
	for _, tc := range tests {
		if got := Sparkline(tc.values, tc.width); got != tc.want {
			t.Errorf("Test(%s): Sparkline() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestSparklineResamples(t *testing.T) {
	values := make([]float64, 252)
	for i := range values {
		values[i] = float64(i)
	}
	got := Sparkline(values, 60)
	if n := utf8.RuneCountInString(got); n != 60 {
		t.Errorf("Sparkline() width = %d, want 60", n)
	}
	if r, _ := utf8.DecodeLastRuneInString(got); r != '█' {
		t.Errorf("Sparkline() ends with %q, want the last point at the top", r)
	}
}

func TestFormatCompact(t *testing.T) {
	tests := map[float64]string{
		999:     "999",
		1500:    "1.5K",
		2500000: "2.5M",
		7.1e9:   "7.1B",
		3e12:    "3.0T",
	}
	for in, want := range tests {
		if got := FormatCompact(in); got != want {
			t.Errorf("FormatCompact(%v) = %q, want %q", in, got, want)
		}
	}
}
