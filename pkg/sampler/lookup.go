package sampler

import (
	"math"
	"sort"
)

// axisIndex finds the position on a monotonic coordinate axis matching q.
// Ties in nearest mode go to the lower coordinate. It reports false when no
// coordinate qualifies.
func axisIndex(axis []float64, q float64, m Method, tol float64) (int, bool) {
	n := len(axis)
	if n == 0 || math.IsNaN(q) {
		return 0, false
	}
	descending := n > 1 && axis[n-1] < axis[0]
	at := func(i int) float64 {
		if descending {
			return axis[n-1-i]
		}
		return axis[i]
	}
	pos := func(i int) int {
		if descending {
			return n - 1 - i
		}
		return i
	}

	// first ascending position with coordinate >= q
	hi := sort.Search(n, func(i int) bool { return at(i) >= q })

	var i int
	switch m {
	case Forward:
		if hi < n && at(hi) == q {
			i = hi
		} else if hi == 0 {
			return 0, false
		} else {
			i = hi - 1
		}
	case Backward:
		if hi == n {
			return 0, false
		}
		i = hi
	default:
		switch {
		case hi == 0:
			i = 0
		case hi == n:
			i = n - 1
		case q-at(hi-1) <= at(hi)-q:
			i = hi - 1
		default:
			i = hi
		}
	}
	if tol > 0 && math.Abs(at(i)-q) > tol {
		return 0, false
	}
	return pos(i), true
}
