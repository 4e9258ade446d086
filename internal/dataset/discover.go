package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

// digitShard matches shard-NNNNNN.tar, the naming used for digit shards.
var digitShard = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// DiscoverShards lists the digit shards beneath root in lexical path order,
// which is the order LoadShards reads them in. A missing root or a tree
// without shards is reported as ErrNotFound.
func DiscoverShards(root string) ([]string, error) {
	var shards []string
	walk := func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir():
			return nil
		case digitShard.MatchString(d.Name()):
			shards = append(shards, path)
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: shard root %s does not exist", ErrNotFound, root)
		}
		return nil, fmt.Errorf("discover shards under %s: %w", root, err)
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("%w: no shard-NNNNNN.tar files under %s", ErrNotFound, root)
	}
	sort.Strings(shards)
	return shards, nil
}
