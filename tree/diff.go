package tree

import (
	"path"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// DiffStatus represents the status of a node in the diff.
type DiffStatus string

const (
	Added     DiffStatus = "added"
	Removed   DiffStatus = "removed"
	Modified  DiffStatus = "modified"
	Unchanged DiffStatus = "unchanged"
)

// DiffNode represents a node in the diff structure with its status.
type DiffNode struct {
	Node     *Node                    // The original node, or the new one for added entries
	Status   DiffStatus               // Diff status of the node
	Children *btree.BTreeG[*DiffNode] // Directory entries ordered by name
}

// Change is a single changed path reported by DiffNode.Changes.
type Change struct {
	Path   string
	Status DiffStatus
}

// NewDiffNode creates a new DiffNode.
func NewDiffNode(node *Node, status DiffStatus) *DiffNode {
	diffNode := &DiffNode{
		Node:   node,
		Status: status,
	}

	if node.Type == Directory {
		diffNode.Children = btree.NewG(2, func(a, b *DiffNode) bool {
			return a.Node.Name < b.Node.Name
		})
	}

	return diffNode
}

// Diff compares the shape of two directory snapshots. File contents are not part of a snapshot, so a
// node is modified only when its type changed or, for directories, when anything below it changed.
func Diff(current, next *Node) (*DiffNode, error) {
	if current.Type != Directory || next.Type != Directory {
		return nil, errors.New("diff is only supported for directories")
	}

	return diff(current, next), nil
}

func diff(current, next *Node) *DiffNode {
	root := NewDiffNode(current, Unchanged)

	for _, currentChild := range current.Children {
		nextChild, found := next.Search(currentChild.Name)
		if !found {
			root.Children.ReplaceOrInsert(NewDiffNode(currentChild, Removed))
			root.Status = Modified
			continue
		}

		if currentChild.Type != nextChild.Type {
			root.Children.ReplaceOrInsert(NewDiffNode(nextChild, Modified))
			root.Status = Modified
			continue
		}

		if currentChild.Type != Directory {
			root.Children.ReplaceOrInsert(NewDiffNode(currentChild, Unchanged))
			continue
		}

		subDiff := diff(currentChild, nextChild)
		if subDiff.Status != Unchanged {
			root.Status = Modified
		}
		root.Children.ReplaceOrInsert(subDiff)
	}

	for _, nextChild := range next.Children {
		if _, found := current.Search(nextChild.Name); !found {
			root.Children.ReplaceOrInsert(NewDiffNode(nextChild, Added))
			root.Status = Modified
		}
	}

	return root
}

// Changes lists every added, removed or type-changed path below the diff root, ordered by path.
func (node *DiffNode) Changes() []Change {
	var changes []Change
	node.collect("", &changes)
	return changes
}

func (node *DiffNode) collect(baseDir string, changes *[]Change) {
	if node.Children == nil {
		return
	}

	node.Children.Ascend(func(child *DiffNode) bool {
		relpath := path.Join(baseDir, child.Node.Name)

		switch {
		case child.Status == Unchanged:
		case child.Status == Modified && child.Node.Type == Directory && child.Children.Len() > 0:
			child.collect(relpath, changes)
		default:
			*changes = append(*changes, Change{Path: relpath, Status: child.Status})
		}

		return true
	})
}
