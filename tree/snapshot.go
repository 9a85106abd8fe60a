package tree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	hiddenPrefix    = "."
	defaultMaxDepth = 128
)

// DefaultExcluded are the entry names that never appear in a snapshot, in addition to hidden entries.
var DefaultExcluded = []string{"node_modules", "dist"}

// Snapshotter takes filtered snapshots of a directory tree.
type Snapshotter struct {
	// Exclude lists extra entry names to skip, on top of hidden entries and DefaultExcluded.
	Exclude []string

	// MaxDepth bounds the recursion when symbolic links form a cycle. Zero means 128.
	MaxDepth int
}

// Excluded reports whether an entry with the given base name is left out of snapshots.
func (s *Snapshotter) Excluded(name string) bool {
	if strings.HasPrefix(name, hiddenPrefix) {
		return true
	}

	for _, v := range DefaultExcluded {
		if name == v {
			return true
		}
	}

	if s == nil {
		return false
	}

	for _, v := range s.Exclude {
		if name == v {
			return true
		}
	}

	return false
}

// Excluded reports whether an entry with the given base name is left out of snapshots by default.
func Excluded(name string) bool {
	return (*Snapshotter)(nil).Excluded(name)
}

// Snapshot builds a fresh tree for the given path with the default filters.
func Snapshot(root string) (*Node, error) {
	return (&Snapshotter{}).Snapshot(root)
}

// Snapshot builds a fresh tree for the given path. A regular path yields a single file node, a directory
// yields a directory node whose children follow the directory listing order. Any stat or listing failure
// aborts the whole snapshot with an *AccessError.
func (s *Snapshotter) Snapshot(root string) (*Node, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	maxDepth := s.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	return s.build(root, maxDepth)
}

func (s *Snapshotter) build(path string, depth int) (*Node, error) {
	if depth < 0 {
		return nil, errors.Errorf("max depth exceeded at %s, possible symbolic link cycle", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &AccessError{Op: "stat", Path: path, Err: err}
	}

	name := filepath.Base(path)
	if !info.IsDir() {
		return NewFileNode(name), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &AccessError{Op: "readdir", Path: path, Err: err}
	}

	children := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		if s.Excluded(entry.Name()) {
			continue
		}

		child, err := s.build(filepath.Join(path, entry.Name()), depth-1)
		if err != nil {
			return nil, err
		}

		children = append(children, child)
	}

	return NewDirNode(name, children), nil
}
