package tree

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// NodeType represents the type of a node in the tree.
type NodeType string

const (
	File      NodeType = "file"
	Directory NodeType = "directory"
)

var (
	ErrDirectoryRequired = errors.New("operation supported only on directories")
	ErrEntryNotFound     = errors.New("directory entry not found")
)

// Node represents one entry of the template project tree.
type Node struct {
	Name     string   `json:"name"`               // Base name of the entry
	Type     NodeType `json:"type"`               // File or directory
	Children []*Node  `json:"children,omitempty"` // Directory entries in listing order (only for directories)
}

// NewFileNode creates a new Node representing a file.
func NewFileNode(name string) *Node {
	return &Node{
		Name: name,
		Type: File,
	}
}

// NewDirNode creates a new Node representing a directory. Children keep the given order.
func NewDirNode(name string, children []*Node) *Node {
	if children == nil {
		children = []*Node{}
	}

	return &Node{
		Name:     name,
		Type:     Directory,
		Children: children,
	}
}

// Search looks for a direct child by name.
func (node *Node) Search(name string) (*Node, bool) {
	for _, child := range node.Children {
		if child.Name == name {
			return child, true
		}
	}

	return nil, false
}

// Equal compares the name, type and nesting of two trees, including the order of children.
func (node *Node) Equal(rhs *Node) bool {
	if node == nil || rhs == nil {
		return node == rhs
	}

	if node.Type != rhs.Type || node.Name != rhs.Name {
		return false
	}

	if node.Type != Directory {
		return true
	}

	if len(node.Children) != len(rhs.Children) {
		return false
	}

	for i := range node.Children {
		if !node.Children[i].Equal(rhs.Children[i]) {
			return false
		}
	}

	return true
}

// Locate finds a sub-node by a slash separated path relative to the current node.
func (node *Node) Locate(relpath string) (*Node, error) {
	var parts []string
	for _, part := range strings.Split(path.Clean("/"+relpath), "/") {
		if len(part) > 0 {
			parts = append(parts, part)
		}
	}

	current := node
	for _, part := range parts {
		if current.Type != Directory {
			return nil, errors.WithMessagef(ErrDirectoryRequired, "cannot locate '%s' under '%s'", part, current.Name)
		}

		child, found := current.Search(part)
		if !found {
			return nil, errors.WithMessagef(ErrEntryNotFound, "path not found: '%s'", part)
		}

		current = child
	}

	return current, nil
}

// Traverse walks the descendants of the node depth first in listing order, calling actionFunc with each
// node and its slash separated path relative to this node. The node itself is not visited.
func (node *Node) Traverse(actionFunc func(node *Node, relpath string) error) error {
	for _, child := range node.Children {
		if err := child.traverse("", actionFunc); err != nil {
			return err
		}
	}

	return nil
}

func (node *Node) traverse(baseDir string, actionFunc func(node *Node, relpath string) error) error {
	relpath := path.Join(baseDir, node.Name)

	if err := actionFunc(node, relpath); err != nil {
		return err
	}

	for _, child := range node.Children {
		if err := child.traverse(relpath, actionFunc); err != nil {
			return err
		}
	}

	return nil
}

// Flatten collects the descendants of the node with their relative paths. The optional filterFunc decides
// which nodes are included.
func (node *Node) Flatten(filterFunc ...func(*Node) bool) (result []*Node, relpaths []string) {
	node.Traverse(func(n *Node, p string) error {
		if len(filterFunc) == 0 || filterFunc[0](n) {
			result = append(result, n)
			relpaths = append(relpaths, p)
		}
		return nil
	})

	return result, relpaths
}

// Count returns the number of files and directories below the node.
func (node *Node) Count() (files, dirs int) {
	node.Traverse(func(n *Node, _ string) error {
		if n.Type == Directory {
			dirs++
		} else {
			files++
		}
		return nil
	})

	return files, dirs
}

// Validate checks the structural invariants of a manifest tree: the root is a directory, files have no
// children, names are non-empty base names and unique among siblings.
func (node *Node) Validate() error {
	if node.Type != Directory {
		return errors.Errorf("root '%s' is not a directory", node.Name)
	}

	return node.validate()
}

func (node *Node) validate() error {
	switch node.Type {
	case File:
		if len(node.Children) > 0 {
			return errors.Errorf("file '%s' has children", node.Name)
		}
		return nil
	case Directory:
	default:
		return errors.Errorf("unknown node type '%s' for '%s'", node.Type, node.Name)
	}

	names := make(map[string]struct{}, len(node.Children))
	for _, child := range node.Children {
		if child == nil {
			return errors.Errorf("nil entry in directory '%s'", node.Name)
		}

		if len(child.Name) == 0 || child.Name == "." || child.Name == ".." || strings.Contains(child.Name, "/") {
			return errors.Errorf("invalid entry name '%s' in directory '%s'", child.Name, node.Name)
		}

		if _, ok := names[child.Name]; ok {
			return errors.Errorf("duplicate entry '%s' in directory '%s'", child.Name, node.Name)
		}
		names[child.Name] = struct{}{}

		if err := child.validate(); err != nil {
			return err
		}
	}

	return nil
}

// MarshalJSON always emits `children` for directories, even empty ones, and never for files.
func (node *Node) MarshalJSON() ([]byte, error) {
	type manifestNode struct {
		Name     string   `json:"name"`
		Type     NodeType `json:"type"`
		Children *[]*Node `json:"children,omitempty"`
	}

	out := manifestNode{Name: node.Name, Type: node.Type}
	if node.Type == Directory {
		children := node.Children
		if children == nil {
			children = []*Node{}
		}
		out.Children = &children
	}

	return json.Marshal(out)
}
