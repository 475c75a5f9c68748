package sampler

import "testing"

func TestAxisIndex(t *testing.T) {
	asc := []float64{0.5, 1.5, 2.5, 3.5}
	desc := []float64{-10.5, -11.5, -12.5}

	tests := []struct {
		name   string
		axis   []float64
		q      float64
		method Method
		tol    float64
		want   int
		ok     bool
	}{
		{name: "nearest asc", axis: asc, q: 1.9, method: Nearest, want: 1, ok: true},
		{name: "nearest tie goes low", axis: asc, q: 2.0, method: Nearest, want: 1, ok: true},
		{name: "nearest below range", axis: asc, q: -5, method: Nearest, want: 0, ok: true},
		{name: "nearest above range", axis: asc, q: 50, method: Nearest, want: 3, ok: true},
		{name: "nearest tolerance", axis: asc, q: 50, method: Nearest, tol: 1, ok: false},
		{name: "forward asc", axis: asc, q: 2.4, method: Forward, want: 1, ok: true},
		{name: "forward exact", axis: asc, q: 2.5, method: Forward, want: 2, ok: true},
		{name: "forward none", axis: asc, q: 0.1, method: Forward, ok: false},
		{name: "backward asc", axis: asc, q: 2.4, method: Backward, want: 2, ok: true},
		{name: "backward none", axis: asc, q: 3.6, method: Backward, ok: false},
		{name: "nearest desc", axis: desc, q: -11.2, method: Nearest, want: 1, ok: true},
		{name: "forward desc", axis: desc, q: -11.2, method: Forward, want: 1, ok: true},
		{name: "backward desc", axis: desc, q: -11.2, method: Backward, want: 0, ok: true},
		{name: "single", axis: []float64{7}, q: 100, method: Nearest, want: 0, ok: true},
		{name: "empty", axis: nil, q: 1, method: Nearest, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := axisIndex(tt.axis, tt.q, tt.method, tt.tol)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("axisIndex(%v) = %d, %v; want %d, %v", tt.q, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{"": Index, "index": Index, "Nearest": Nearest, "ffill": Forward, "bfill": Backward}
	for in, want := range tests {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMethod("bilinear"); err == nil {
		t.Error("expected error for bilinear")
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := map[string]DuplicatePolicy{"": DuplicateSuffix, "suffix": DuplicateSuffix, "keep_first": DuplicateKeepFirst, "error": DuplicateError}
	for in, want := range tests {
		got, err := ParseDuplicatePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseDuplicatePolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDuplicatePolicy("merge"); err == nil {
		t.Error("expected error for merge")
	}
}
