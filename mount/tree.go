// Package mount defines the content bearing tree handed to a sandbox mount call, and a way to materialize
// it on a host directory.
package mount

import (
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrNotFound     = errors.New("entry not found")
	ErrExists       = errors.New("entry already exists")
	ErrInvalidEntry = errors.New("entry must be either a file or a directory")
)

// Tree is one level of a mount tree, keyed by entry name.
type Tree map[string]*Entry

// FileEntry holds the textual contents of a file.
type FileEntry struct {
	Contents string `json:"contents"`
}

// Entry is either a file with contents or a directory with a nested level.
type Entry struct {
	File      *FileEntry `json:"file,omitempty"`
	Directory Tree       `json:"directory,omitempty"`
}

// NewFile returns a file entry.
func NewFile(contents string) *Entry {
	return &Entry{File: &FileEntry{Contents: contents}}
}

// NewDirectory returns an empty directory entry.
func NewDirectory() *Entry {
	return &Entry{Directory: Tree{}}
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.File == nil
}

// MarshalJSON keeps empty directories as `{"directory": {}}`.
func (e *Entry) MarshalJSON() ([]byte, error) {
	if e.File != nil {
		return json.Marshal(struct {
			File *FileEntry `json:"file"`
		}{e.File})
	}

	dir := e.Directory
	if dir == nil {
		dir = Tree{}
	}

	return json.Marshal(struct {
		Directory Tree `json:"directory"`
	}{dir})
}

// UnmarshalJSON rejects entries that are neither or both a file and a directory.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		File      *FileEntry `json:"file"`
		Directory *Tree      `json:"directory"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if (raw.File == nil) == (raw.Directory == nil) {
		return ErrInvalidEntry
	}

	e.File = raw.File
	e.Directory = nil
	if raw.Directory != nil {
		e.Directory = *raw.Directory
		if e.Directory == nil {
			e.Directory = Tree{}
		}
	}

	return nil
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(path.Clean("/"+p), "/") {
		if len(part) > 0 {
			parts = append(parts, part)
		}
	}
	return parts
}

// Lookup returns the entry at a slash separated path.
func (t Tree) Lookup(p string) (*Entry, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return &Entry{Directory: t}, nil
	}

	level := t
	for i, part := range parts {
		entry, ok := level[part]
		if !ok {
			return nil, errors.WithMessagef(ErrNotFound, "path '%s'", p)
		}

		if i == len(parts)-1 {
			return entry, nil
		}

		if !entry.IsDir() {
			return nil, errors.WithMessagef(ErrNotDirectory, "path '%s'", path.Join(parts[:i+1]...))
		}

		level = entry.Directory
	}

	return nil, errors.WithMessagef(ErrNotFound, "path '%s'", p)
}

// Insert adds an entry at a slash separated path. The parent directory must already exist and the name
// must be free.
func (t Tree) Insert(p string, entry *Entry) error {
	parts := splitPath(p)
	if len(parts) == 0 {
		return errors.New("cannot insert at root")
	}

	level := t
	if len(parts) > 1 {
		parent, err := t.Lookup(path.Join(parts[:len(parts)-1]...))
		if err != nil {
			return err
		}

		if !parent.IsDir() {
			return errors.WithMessagef(ErrNotDirectory, "parent of '%s'", p)
		}

		if parent.Directory == nil {
			parent.Directory = Tree{}
		}
		level = parent.Directory
	}

	name := parts[len(parts)-1]
	if _, ok := level[name]; ok {
		return errors.WithMessagef(ErrExists, "path '%s'", p)
	}

	level[name] = entry
	return nil
}

// Walk visits every entry depth first with names sorted at each level.
func (t Tree) Walk(fn func(relpath string, entry *Entry) error) error {
	return t.walk("", fn)
}

func (t Tree) walk(baseDir string, fn func(relpath string, entry *Entry) error) error {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := t[name]
		relpath := path.Join(baseDir, name)

		if err := fn(relpath, entry); err != nil {
			return err
		}

		if entry.IsDir() {
			if err := entry.Directory.walk(relpath, fn); err != nil {
				return err
			}
		}
	}

	return nil
}
