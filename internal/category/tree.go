// Package category holds the pack's category menu as an id-indexed tree.
package category

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/OCAP2/markerpack/pkg/core"
)

// MaxCategories is the size of the id space.
const MaxCategories = math.MaxUint16 + 1

var (
	ErrIDSpaceExhausted = errors.New("category id space exhausted")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrDuplicateID      = errors.New("duplicate category id")
	ErrCycle            = errors.New("category cannot be moved under its own descendant")
)

// IDError ties an error to the category id that caused it.
type IDError struct {
	ID  core.CategoryID
	Err error
}

func (e *IDError) Error() string { return fmt.Sprintf("category %d: %v", e.ID, e.Err) }
func (e *IDError) Unwrap() error { return e.Err }

type node struct {
	cat       core.Category // Children is always nil here
	parent    core.CategoryID
	hasParent bool
	children  []core.CategoryID
	version   uint64
}

// Tree owns every category of a pack. It is not safe for concurrent use.
type Tree struct {
	nodes map[core.CategoryID]*node
	roots []core.CategoryID
	// next is a hint for the smallest unused id; every id below it is taken.
	next int
}

func New() *Tree {
	return &Tree{nodes: make(map[core.CategoryID]*node)}
}

func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Contains(id core.CategoryID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Get returns the category stored under id. Callers that mutate Attributes
// through the pointer must call Touch afterwards. Children is always empty;
// use Children or Forest for the structure.
func (t *Tree) Get(id core.CategoryID) (*core.Category, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return &n.cat, true
}

// Touch bumps the template version of id so memoized resolutions are dropped.
func (t *Tree) Touch(id core.CategoryID) {
	if n, ok := t.nodes[id]; ok {
		n.version++
	}
}

// SetAttributes replaces the template of id.
func (t *Tree) SetAttributes(id core.CategoryID, attrs core.Attributes) error {
	n, ok := t.nodes[id]
	if !ok {
		return &IDError{ID: id, Err: ErrUnknownCategory}
	}
	n.cat.Attributes = attrs
	n.version++
	return nil
}

// Version returns the template version counter of id, 0 if unknown.
func (t *Tree) Version(id core.CategoryID) uint64 {
	if n, ok := t.nodes[id]; ok {
		return n.version
	}
	return 0
}

func (t *Tree) allocate() (core.CategoryID, error) {
	for id := t.next; id < MaxCategories; id++ {
		if _, taken := t.nodes[core.CategoryID(id)]; !taken {
			t.next = id + 1
			return core.CategoryID(id), nil
		}
	}
	t.next = MaxCategories
	return 0, ErrIDSpaceExhausted
}

func (t *Tree) link(parent *core.CategoryID, id core.CategoryID, n *node) {
	t.nodes[id] = n
	if parent == nil {
		t.roots = append(t.roots, id)
		return
	}
	n.parent, n.hasParent = *parent, true
	p := t.nodes[*parent]
	p.children = append(p.children, id)
}

// CreateChild adds a default category as the last child of parent, or as the
// last root when parent is nil. The new id is the smallest unused one.
func (t *Tree) CreateChild(parent *core.CategoryID) (*core.Category, error) {
	if parent != nil && !t.Contains(*parent) {
		return nil, &IDError{ID: *parent, Err: ErrUnknownCategory}
	}
	id, err := t.allocate()
	if err != nil {
		return nil, err
	}
	n := &node{cat: core.Category{
		ID:            id,
		Name:          fmt.Sprintf("category_%d", id),
		DisplayName:   "New Category",
		DefaultToggle: true,
	}}
	t.link(parent, id, n)
	return &n.cat, nil
}

// Insert adds c with its explicit id, then its children recursively.
// Nothing is inserted if any id in the subtree is already taken.
func (t *Tree) Insert(parent *core.CategoryID, c core.Category) error {
	if parent != nil && !t.Contains(*parent) {
		return &IDError{ID: *parent, Err: ErrUnknownCategory}
	}
	seen := make(map[core.CategoryID]struct{})
	var check func(c *core.Category) error
	check = func(c *core.Category) error {
		if _, dup := seen[c.ID]; dup || t.Contains(c.ID) {
			return &IDError{ID: c.ID, Err: ErrDuplicateID}
		}
		seen[c.ID] = struct{}{}
		for i := range c.Children {
			if err := check(&c.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(&c); err != nil {
		return err
	}
	t.insert(parent, c)
	return nil
}

func (t *Tree) insert(parent *core.CategoryID, c core.Category) {
	children := c.Children
	c.Children = nil
	c.Attributes = c.Attributes.Clone()
	id := c.ID
	t.link(parent, id, &node{cat: c})
	for _, child := range children {
		t.insert(&id, child)
	}
}

// Remove deletes id and all of its descendants and returns every removed id,
// id first, in pre-order.
func (t *Tree) Remove(id core.CategoryID) ([]core.CategoryID, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, &IDError{ID: id, Err: ErrUnknownCategory}
	}
	t.unlink(id, n)

	var removed []core.CategoryID
	var drop func(id core.CategoryID)
	drop = func(id core.CategoryID) {
		n := t.nodes[id]
		removed = append(removed, id)
		delete(t.nodes, id)
		if int(id) < t.next {
			t.next = int(id)
		}
		for _, c := range n.children {
			drop(c)
		}
	}
	drop(id)
	return removed, nil
}

func (t *Tree) unlink(id core.CategoryID, n *node) {
	if !n.hasParent {
		t.roots = slices.DeleteFunc(t.roots, func(r core.CategoryID) bool { return r == id })
		return
	}
	p := t.nodes[n.parent]
	p.children = slices.DeleteFunc(p.children, func(c core.CategoryID) bool { return c == id })
	n.hasParent = false
}

// Move re-parents id as the last child of newParent, or as the last root.
func (t *Tree) Move(id core.CategoryID, newParent *core.CategoryID) error {
	n, ok := t.nodes[id]
	if !ok {
		return &IDError{ID: id, Err: ErrUnknownCategory}
	}
	if newParent != nil {
		if !t.Contains(*newParent) {
			return &IDError{ID: *newParent, Err: ErrUnknownCategory}
		}
		if slices.Contains(t.Ancestors(*newParent), id) {
			return &IDError{ID: id, Err: ErrCycle}
		}
	}
	t.unlink(id, n)
	t.link(newParent, id, n)
	// the ancestor chain changed, invalidate the whole subtree
	t.walkFrom(id, func(c *core.Category, _ int) bool {
		t.nodes[c.ID].version++
		return true
	})
	return nil
}

// Parent returns the parent of id. ok is false for roots and unknown ids.
func (t *Tree) Parent(id core.CategoryID) (core.CategoryID, bool) {
	n, ok := t.nodes[id]
	if !ok || !n.hasParent {
		return 0, false
	}
	return n.parent, true
}

// Children returns the ordered child ids of id.
func (t *Tree) Children(id core.CategoryID) []core.CategoryID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

func (t *Tree) Roots() []core.CategoryID {
	return slices.Clone(t.roots)
}

// Ancestors returns id followed by its parent, grandparent and so on up to
// the root. It is empty for unknown ids.
func (t *Tree) Ancestors(id core.CategoryID) []core.CategoryID {
	var chain []core.CategoryID
	for {
		n, ok := t.nodes[id]
		if !ok {
			return chain
		}
		chain = append(chain, id)
		if !n.hasParent {
			return chain
		}
		id = n.parent
	}
}

// Walk visits every category depth first in tree order. depth is 0 for roots.
// Returning false from fn skips the children of that category.
func (t *Tree) Walk(fn func(c *core.Category, depth int) bool) {
	for _, r := range t.roots {
		t.walk(r, 0, fn)
	}
}

func (t *Tree) walkFrom(id core.CategoryID, fn func(c *core.Category, depth int) bool) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id core.CategoryID, depth int, fn func(c *core.Category, depth int) bool) {
	n := t.nodes[id]
	if !fn(&n.cat, depth) {
		return
	}
	for _, c := range n.children {
		t.walk(c, depth+1, fn)
	}
}

// Forest returns a nested deep copy of the tree in tree order.
func (t *Tree) Forest() []core.Category {
	out := make([]core.Category, 0, len(t.roots))
	for _, r := range t.roots {
		out = append(out, t.nested(r))
	}
	return out
}

func (t *Tree) nested(id core.CategoryID) core.Category {
	n := t.nodes[id]
	c := n.cat
	c.Attributes = c.Attributes.Clone()
	for _, child := range n.children {
		c.Children = append(c.Children, t.nested(child))
	}
	return c
}

// FindByPath resolves a slash separated chain of category names, compared
// case-insensitively, starting at the roots.
func (t *Tree) FindByPath(path string) (core.CategoryID, bool) {
	level := t.roots
	var found core.CategoryID
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return 0, false
	}
	for _, part := range parts {
		ok := false
		for _, id := range level {
			if strings.EqualFold(t.nodes[id].cat.Name, part) {
				found, ok = id, true
				break
			}
		}
		if !ok {
			return 0, false
		}
		level = t.nodes[found].children
	}
	return found, true
}

// Path returns the slash separated name path of id.
func (t *Tree) Path(id core.CategoryID) string {
	chain := t.Ancestors(id)
	names := make([]string, len(chain))
	for i, c := range chain {
		names[len(chain)-1-i] = t.nodes[c].cat.Name
	}
	return strings.Join(names, "/")
}
