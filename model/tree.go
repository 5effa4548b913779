package model

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// NotFoundError reports a dataset path that doesn't exist within a tree.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset '%s' does not exist", DisplayPath(e.Path))
}

// DisplayPath renders a tree-relative path for humans. The empty path is the
// tree's root dataset.
func DisplayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

// Join appends a child name to a tree-relative dataset path.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Dataset is one node of a tree: a slash-delimited path relative to the
// tree's root ("" is the root itself), its snapshots in creation order, and
// arena indexes linking it to its parent and children.
type Dataset struct {
	Path      string
	Snapshots []*Snapshot

	parent   int // arena index, -1 for the root
	children map[string]int
}

// Name returns the last path component, or "" for the root.
func (ds *Dataset) Name() string {
	if i := strings.LastIndexByte(ds.Path, '/'); i >= 0 {
		return ds.Path[i+1:]
	}
	return ds.Path
}

func (ds *Dataset) String() string {
	return fmt.Sprintf("<%s: %d snaps>", DisplayPath(ds.Path), len(ds.Snapshots))
}

// Latest returns the newest snapshot, or nil if the dataset has none.
func (ds *Dataset) Latest() *Snapshot {
	if len(ds.Snapshots) == 0 {
		return nil
	}
	return ds.Snapshots[len(ds.Snapshots)-1]
}

func (ds *Dataset) HasSnapshot(name string) bool {
	for _, snap := range ds.Snapshots {
		if snap.Name == name {
			return true
		}
	}
	return false
}

// LatestCommon returns the newest snapshot of ds whose name also appears in
// other, or nil if the two histories share nothing. Both snapshot lists are
// chronological, and a shared snapshot is expected to be recent, so this
// scans ds from the tail.
func (ds *Dataset) LatestCommon(other *Dataset) *Snapshot {
	names := make(map[string]struct{}, len(other.Snapshots))
	for _, snap := range other.Snapshots {
		names[snap.Name] = struct{}{}
	}
	for i := len(ds.Snapshots) - 1; i >= 0; i-- {
		if _, ok := names[ds.Snapshots[i].Name]; ok {
			return ds.Snapshots[i]
		}
	}
	return nil
}

// SnapshotsAfter returns the snapshots strictly newer than the named base,
// or all snapshots when base is "".
func (ds *Dataset) SnapshotsAfter(base string) []*Snapshot {
	if base == "" {
		return ds.Snapshots
	}
	for i, snap := range ds.Snapshots {
		if snap.Name == base {
			return ds.Snapshots[i+1:]
		}
	}
	return nil
}

// Tree is a host's dataset hierarchy, built fresh per run from a
// connection's enumeration. Datasets live in an arena; parent and child
// links are indexes into it. Removed datasets leave nil slots so the
// surviving indexes stay valid.
type Tree struct {
	nodes []*Dataset
}

func NewTree() *Tree {
	return &Tree{}
}

// Root returns the root dataset, or nil for an empty tree.
func (t *Tree) Root() *Dataset {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.nodes[0]
}

// Insert adds a dataset at path, creating missing ancestors with empty
// snapshot lists. Inserting an existing path replaces its snapshots.
func (t *Tree) Insert(path string, snaps []*Snapshot) *Dataset {
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, &Dataset{
			Path:     "",
			parent:   -1,
			children: map[string]int{},
		})
	}
	if path == "" {
		t.nodes[0].Snapshots = snaps
		return t.nodes[0]
	}

	at := 0
	for _, name := range strings.Split(path, "/") {
		node := t.nodes[at]
		child, ok := node.children[name]
		if !ok {
			child = len(t.nodes)
			t.nodes = append(t.nodes, &Dataset{
				Path:     Join(node.Path, name),
				parent:   at,
				children: map[string]int{},
			})
			node.children[name] = child
		}
		at = child
	}
	t.nodes[at].Snapshots = snaps
	return t.nodes[at]
}

// Get returns the dataset at path, or nil if absent. Cost is O(depth).
func (t *Tree) Get(path string) *Dataset {
	if len(t.nodes) == 0 {
		return nil
	}
	if path == "" {
		return t.nodes[0]
	}
	at := 0
	for _, name := range strings.Split(path, "/") {
		child, ok := t.nodes[at].children[name]
		if !ok {
			return nil
		}
		at = child
	}
	return t.nodes[at]
}

// Lookup is Get with a NotFoundError for absent paths.
func (t *Tree) Lookup(path string) (*Dataset, error) {
	ds := t.Get(path)
	if ds == nil {
		return nil, &NotFoundError{Path: path}
	}
	return ds, nil
}

// Children returns a dataset's children ordered by name, for deterministic
// walks.
func (t *Tree) Children(ds *Dataset) []*Dataset {
	names := make([]string, 0, len(ds.children))
	for name := range ds.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Dataset, len(names))
	for i, name := range names {
		out[i] = t.nodes[ds.children[name]]
	}
	return out
}

// Parent returns a dataset's parent, or nil for the root.
func (t *Tree) Parent(ds *Dataset) *Dataset {
	if ds.parent < 0 {
		return nil
	}
	return t.nodes[ds.parent]
}

// All yields every dataset in parent-before-child (pre-order) sequence,
// siblings ordered by name.
func (t *Tree) All() iter.Seq[*Dataset] {
	return func(yield func(*Dataset) bool) {
		if len(t.nodes) == 0 {
			return
		}
		var walk func(ds *Dataset) bool
		walk = func(ds *Dataset) bool {
			if !yield(ds) {
				return false
			}
			for _, child := range t.Children(ds) {
				if !walk(child) {
					return false
				}
			}
			return true
		}
		walk(t.nodes[0])
	}
}

// Subtree yields the dataset at path and all of its descendants, pre-order.
func (t *Tree) Subtree(path string) iter.Seq[*Dataset] {
	return func(yield func(*Dataset) bool) {
		root := t.Get(path)
		if root == nil {
			return
		}
		var walk func(ds *Dataset) bool
		walk = func(ds *Dataset) bool {
			if !yield(ds) {
				return false
			}
			for _, child := range t.Children(ds) {
				if !walk(child) {
					return false
				}
			}
			return true
		}
		walk(root)
	}
}

// Remove drops the dataset at path. It fails if the dataset has children;
// use RemoveRecursively for subtrees. Removing the root empties the tree.
func (t *Tree) Remove(path string) error {
	ds := t.Get(path)
	if ds == nil {
		return &NotFoundError{Path: path}
	}
	if len(ds.children) > 0 {
		return fmt.Errorf("dataset '%s' has children", DisplayPath(path))
	}
	return t.drop(ds)
}

// RemoveRecursively drops the dataset at path and its whole subtree.
func (t *Tree) RemoveRecursively(path string) error {
	ds := t.Get(path)
	if ds == nil {
		return &NotFoundError{Path: path}
	}
	for _, child := range t.Children(ds) {
		if err := t.RemoveRecursively(child.Path); err != nil {
			return err
		}
	}
	return t.drop(ds)
}

func (t *Tree) drop(ds *Dataset) error {
	if ds.parent < 0 {
		t.nodes = nil
		return nil
	}
	parent := t.nodes[ds.parent]
	for name, i := range parent.children {
		if t.nodes[i] == ds {
			delete(parent.children, name)
			break
		}
	}
	for i, node := range t.nodes {
		if node == ds {
			t.nodes[i] = nil
			break
		}
	}
	return nil
}

// Len returns the number of live datasets.
func (t *Tree) Len() int {
	n := 0
	for _, node := range t.nodes {
		if node != nil {
			n++
		}
	}
	return n
}

func (t *Tree) String() string {
	return fmt.Sprintf("<tree: %d datasets>", t.Len())
}
