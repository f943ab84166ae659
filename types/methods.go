package types

import "sort"

// Add increments the count of every unit in units by one.
func (counts Counts) Add(units ...string) {
	for idx := range units {
		counts[units[idx]]++
	}
}

// Merge adds every count in other into counts. Merging is commutative and
// associative, so the order in which partial counts are merged never changes
// the result.
func (counts Counts) Merge(other Counts) {
	for unit, count := range other {
		counts[unit] += count
	}
}

// Total returns the sum of all counts.
func (counts Counts) Total() (total int64) {
	for _, count := range counts {
		total += count
	}
	return total
}

// Keys returns the units in lexicographic order.
func (counts Counts) Keys() []string {
	keys := make([]string, 0, len(counts))
	for unit := range counts {
		keys = append(keys, unit)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both maps hold the same units with the same counts.
func (counts Counts) Equal(other Counts) bool {
	if len(counts) != len(other) {
		return false
	}
	for unit, count := range counts {
		if otherCount, ok := other[unit]; !ok || otherCount != count {
			return false
		}
	}
	return true
}
