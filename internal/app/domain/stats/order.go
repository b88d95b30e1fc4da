package stats

import "strconv"

// IDLess orders entity ids numerically when both parse as integers and
// lexically otherwise. The in-memory backends issue ids from a shared
// counter, so numeric order is insertion order there; uuid backends fall
// through to the lexical branch.
func IDLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
