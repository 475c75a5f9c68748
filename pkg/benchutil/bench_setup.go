package benchutil

import (
	"os"
	"testing"
)

// SkipIfNoLongBench skips the benchmark unless GEOHARVEST_LONG_BENCH is set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("GEOHARVEST_LONG_BENCH") == "" {
		b.Skip("set GEOHARVEST_LONG_BENCH=1 to run scaling benchmark")
	}
}
