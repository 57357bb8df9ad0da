// internal/points/levels.go
package points

import "sort"

// levelTable is an ascending list of lifetime-earned thresholds. thresholds[i]
// is the floor of level i+2; lifetime below thresholds[0] is level 1.
type levelTable struct {
	thresholds []int64
}

func newLevelTable(thresholds []int64) levelTable {
	return levelTable{thresholds: append([]int64(nil), thresholds...)}
}

// levelFor is a pure O(log n) lookup; monotonically non-decreasing in its
// argument.
func (t levelTable) levelFor(lifetimeEarned int64) int {
	// First threshold strictly greater than lifetimeEarned.
	idx := sort.Search(len(t.thresholds), func(i int) bool {
		return t.thresholds[i] > lifetimeEarned
	})
	return idx + 1
}
