package humanfmt

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KiB"},
		{1536, "1.50 KiB"},
		{1572864, "1.50 MiB"},
		{1610612736, "1.50 GiB"},
		{1649267441664, "1.50 TiB"},
		{-100, "-100 B"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.input); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Microsecond, "1.5ms"},
		{1230 * time.Millisecond, "1.23s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{135 * time.Minute, "2h15m"},
		{3 * time.Hour, "3h"},
	}
	for _, tt := range tests {
		if got := Duration(tt.input); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestThroughput(t *testing.T) {
	if got := Throughput(100*MiB, 2*time.Second); got != "50.00 MiB/s" {
		t.Errorf("Throughput() = %q", got)
	}
	if got := Throughput(10, 0); got != "∞" {
		t.Errorf("Throughput(0s) = %q", got)
	}
	if got := Throughput(500, time.Second); got != "500 B/s" {
		t.Errorf("Throughput() = %q", got)
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{789, "789"},
		{456000, "456.00K"},
		{1230000, "1.23M"},
		{2500000000, "2.50B"},
	}
	for _, tt := range tests {
		if got := Count(tt.input); got != tt.want {
			t.Errorf("Count(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtentFormatting(t *testing.T) {
	if got := BBox([4]float64{140, -31.5, 141.25, -30}); got != "[140.0000, -31.5000, 141.2500, -30.0000]" {
		t.Errorf("BBox() = %q", got)
	}
	if got := Resolution(1); got != `1" (~31 m)` {
		t.Errorf("Resolution(1) = %q", got)
	}
	if got := Resolution(100); got != `100" (~3.1 km)` {
		t.Errorf("Resolution(100) = %q", got)
	}
}
