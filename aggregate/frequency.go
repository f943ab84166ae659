// Package aggregate reduces ordered dispatch results into the run artifacts:
// one corpus-wide frequency table, or one statistics table per group.
package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/types"
)

var ErrIncompatible = errors.New("frequency tables cover different units")

// FrequencyTable maps every vocabulary unit to its occurrence count. It is
// created with every unit at zero, so its key set is fixed at construction.
type FrequencyTable struct {
	units  []string
	counts types.Counts
}

// NewFrequencyTable returns a table covering units, in that order, all zero.
func NewFrequencyTable(units []string) *FrequencyTable {
	table := &FrequencyTable{
		units:  make([]string, len(units)),
		counts: make(types.Counts, len(units)),
	}
	copy(table.units, units)
	for _, unit := range units {
		table.counts[unit] = 0
	}
	return table
}

// Add accumulates counts into the table. Units the table does not cover are
// ignored and their occurrences returned.
func (table *FrequencyTable) Add(counts types.Counts) (ignored int64) {
	for unit, count := range counts {
		if _, ok := table.counts[unit]; !ok {
			ignored += count
			continue
		}
		table.counts[unit] += count
	}
	return ignored
}

// Merge adds other into table. Both must cover the same units.
func (table *FrequencyTable) Merge(other *FrequencyTable) error {
	if len(other.counts) != len(table.counts) {
		return ErrIncompatible
	}
	for unit := range other.counts {
		if _, ok := table.counts[unit]; !ok {
			return fmt.Errorf("%w: %q", ErrIncompatible, unit)
		}
	}
	table.counts.Merge(other.counts)
	return nil
}

// Count returns the count of unit and whether the table covers it.
func (table *FrequencyTable) Count(unit string) (int64, bool) {
	count, ok := table.counts[unit]
	return count, ok
}

// Counts returns a copy of the table as a plain mapping.
func (table *FrequencyTable) Counts() types.Counts {
	counts := make(types.Counts, len(table.counts))
	counts.Merge(table.counts)
	return counts
}

func (table *FrequencyTable) Total() int64 {
	return table.counts.Total()
}

func (table *FrequencyTable) Len() int {
	return len(table.units)
}

// MarshalJSON writes the table as one JSON object, keys in vocabulary order.
func (table *FrequencyTable) MarshalJSON() ([]byte, error) {
	var out bytes.Buffer
	out.WriteString("{\n")
	for idx, unit := range table.units {
		key, err := json.Marshal(unit)
		if err != nil {
			return nil, err
		}
		out.WriteString("  ")
		out.Write(key)
		fmt.Fprintf(&out, ": %d", table.counts[unit])
		if idx < len(table.units)-1 {
			out.WriteByte(',')
		}
		out.WriteByte('\n')
	}
	out.WriteString("}\n")
	return out.Bytes(), nil
}

// Tally is the per-item record of a token tally: unit counts for one text,
// plus the characters dropped because the vocabulary does not know them.
type Tally struct {
	Counts  types.Counts `json:"counts"`
	Unknown int64        `json:"unknown,omitempty"`
}

// AddTally accumulates one item's tally and returns the occurrences the table
// could not place, unknown characters included.
func (table *FrequencyTable) AddTally(tally Tally) int64 {
	return table.Add(tally.Counts) + tally.Unknown
}

// Frequencies reduces tally results into a table over units. Only succeeded
// results contribute; the order of results does not matter. The second value
// is the number of occurrences left out of the table.
func Frequencies(units []string,
	results []dispatch.Result[Tally]) (*FrequencyTable, int64) {
	table := NewFrequencyTable(units)
	var unknown int64
	for idx := range results {
		if results[idx].Status != dispatch.Succeeded {
			continue
		}
		unknown += table.AddTally(results[idx].Record)
	}
	return table, unknown
}
