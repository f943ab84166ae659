package types

import "path/filepath"

// Item is one file-level unit of work, identified by its group folder and its
// member name within that folder.
type Item struct {
	GroupID  string
	MemberID string
	Path     string
}

// Key returns a stable identity for the item, independent of where the
// corpus root lives on disk.
func (item Item) Key() string {
	return filepath.ToSlash(filepath.Join(item.GroupID, item.MemberID))
}

func (item Item) String() string {
	return item.Key()
}

// Pair is an adjacent pair of vocabulary units.
type Pair struct {
	Left  string
	Right string
}

// Merged returns the unit produced by merging the pair.
func (pair Pair) Merged() string {
	return pair.Left + pair.Right
}

// Less orders pairs lexicographically, left unit first.
func (pair Pair) Less(other Pair) bool {
	if pair.Left != other.Left {
		return pair.Left < other.Left
	}
	return pair.Right < other.Right
}

// Counts maps a unit to its number of occurrences.
type Counts map[string]int64
