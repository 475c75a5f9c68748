// Package humanfmt formats sizes, durations and extents for logs and the
// run summary.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

var byteUnits = []struct {
	size float64
	name string
}{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}}

// Bytes formats a byte count like "1.23 GiB".
func Bytes(b int64) string {
	for _, u := range byteUnits {
		if float64(b) >= u.size {
			return fmt.Sprintf("%.2f %s", float64(b)/u.size, u.name)
		}
	}
	return fmt.Sprintf("%d B", b)
}

// Throughput formats bytes per duration like "123.40 MiB/s".
func Throughput(b int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	rate := float64(b) / d.Seconds()
	for _, u := range byteUnits {
		if rate >= u.size {
			return fmt.Sprintf("%.2f %s/s", rate/u.size, u.name)
		}
	}
	return fmt.Sprintf("%.0f B/s", rate)
}

// Duration formats d compactly: "1.23s", "45.6ms", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return compound(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return compound(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	}
	return fmt.Sprintf("%dns", d.Nanoseconds())
}

func compound(major time.Duration, majorUnit string, minor time.Duration, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}

// Count formats n like "1.23M", "456K" or "789".
func Count(n int64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2fK", float64(n)/1e3)
	}
	return strconv.FormatInt(n, 10)
}

// BBox formats a (minx, miny, maxx, maxy) extent in degrees.
func BBox(b [4]float64) string {
	return fmt.Sprintf("[%.4f, %.4f, %.4f, %.4f]", b[0], b[1], b[2], b[3])
}

// Resolution formats an arc-second resolution with its approximate size at
// the equator, e.g. "1\" (~31 m)".
func Resolution(arcsec float64) string {
	const metresPerArcsec = 30.87
	m := arcsec * metresPerArcsec
	if m >= 1000 {
		return fmt.Sprintf("%g\" (~%.1f km)", arcsec, m/1000)
	}
	return fmt.Sprintf("%g\" (~%.0f m)", arcsec, m)
}
