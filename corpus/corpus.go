// Package corpus enumerates a two-level corpus tree: root/<group>/<member>.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rcap107/study-gittables/types"
	"github.com/yargevad/filepathx"
)

var ErrEnumeration = errors.New("cannot enumerate corpus")

// Options select which members of each group are enumerated.
type Options struct {
	// MemberPattern is matched inside each group folder and may use `**`.
	// Empty means `*`.
	MemberPattern string
	// TrimSuffix is removed from member ids, so `t.parquet.txt` in a text
	// rendering shares the id `t.parquet` with its source table.
	TrimSuffix string
}

// Listing is the result of enumerating a corpus root.
type Listing struct {
	Root   string
	Groups []string
	Items  []types.Item
}

// EmptyGroups returns the groups that yielded no members.
func (listing *Listing) EmptyGroups() []string {
	populated := make(map[string]struct{}, len(listing.Groups))
	for _, item := range listing.Items {
		populated[item.GroupID] = struct{}{}
	}
	empty := make([]string, 0)
	for _, group := range listing.Groups {
		if _, ok := populated[group]; !ok {
			empty = append(empty, group)
		}
	}
	return empty
}

// ByGroup splits the items by group, keeping enumeration order.
func (listing *Listing) ByGroup() map[string][]types.Item {
	groups := make(map[string][]types.Item, len(listing.Groups))
	for _, item := range listing.Items {
		groups[item.GroupID] = append(groups[item.GroupID], item)
	}
	return groups
}

// Enumerate lists every regular file under root/<group>/ matching the member
// pattern. Items come out in directory-listing order, groups first. A root
// that yields no items at all is an ErrEnumeration.
func Enumerate(root string, opts Options) (*Listing, error) {
	stat, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnumeration, err)
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrEnumeration,
			root)
	}
	pattern := opts.MemberPattern
	if pattern == "" {
		pattern = "*"
	}

	groupPaths, err := filepathx.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnumeration, err)
	}
	listing := &Listing{Root: root}
	for _, groupPath := range groupPaths {
		if groupStat, statErr := os.Stat(groupPath); statErr != nil ||
			!groupStat.IsDir() {
			continue
		}
		groupId := filepath.Base(groupPath)
		listing.Groups = append(listing.Groups, groupId)

		memberPaths, globErr := filepathx.Glob(filepath.Join(groupPath,
			pattern))
		if globErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrEnumeration, globErr)
		}
		sort.Strings(memberPaths)
		for _, memberPath := range memberPaths {
			memberStat, statErr := os.Stat(memberPath)
			if statErr != nil || !memberStat.Mode().IsRegular() {
				continue
			}
			memberId, relErr := filepath.Rel(groupPath, memberPath)
			if relErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrEnumeration, relErr)
			}
			memberId = filepath.ToSlash(memberId)
			if opts.TrimSuffix != "" {
				memberId = strings.TrimSuffix(memberId, opts.TrimSuffix)
			}
			listing.Items = append(listing.Items, types.Item{
				GroupID:  groupId,
				MemberID: memberId,
				Path:     memberPath,
			})
		}
	}
	if len(listing.Groups) == 0 {
		return nil, fmt.Errorf("%w: %s contains no group folders",
			ErrEnumeration, root)
	} else if len(listing.Items) == 0 {
		return nil, fmt.Errorf("%w: no member of %d groups under %s "+
			"matches %q", ErrEnumeration, len(listing.Groups), root, pattern)
	}
	return listing, nil
}
