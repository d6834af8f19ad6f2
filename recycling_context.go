package gsequencer

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// RecyclingContext groups the recall ids of one run with the recyclings the
// run spans. Contexts nest: a context without a parent is a root context and
// its run-copies live in a track's "play" list, while nested contexts belong
// to sub-mix groups on upstream tracks and their run-copies live in the
// "recall" list.
type RecyclingContext struct {
	id uuid.UUID

	mu         sync.RWMutex
	parent     *RecyclingContext
	children   []*RecyclingContext
	recallIDs  []*RecallID
	recyclings []*Recycling
}

// NewRecyclingContext creates a context spanning recyclings and, when parent
// is not nil, adds it as a child of parent.
func NewRecyclingContext(parent *RecyclingContext, recyclings ...*Recycling) *RecyclingContext {
	c := &RecyclingContext{
		id:         uuid.New(),
		parent:     parent,
		recyclings: slices.Clone(recyclings),
	}
	if parent != nil {
		parent.addChild(c)
	}
	return c
}

func (c *RecyclingContext) ID() uuid.UUID { return c.id }

func (c *RecyclingContext) Parent() *RecyclingContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// IsRoot returns true for contexts without a parent.
func (c *RecyclingContext) IsRoot() bool {
	return c.Parent() == nil
}

// Toplevel walks up the parents and returns the root context.
func (c *RecyclingContext) Toplevel() *RecyclingContext {
	cur := c
	for {
		p := cur.Parent()
		if p == nil {
			return cur
		}
		cur = p
	}
}

func (c *RecyclingContext) Children() []*RecyclingContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.children)
}

func (c *RecyclingContext) addChild(child *RecyclingContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, child)
}

// Detach removes the context from its parent's children.
func (c *RecyclingContext) Detach() {
	c.mu.Lock()
	p := c.parent
	c.parent = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.children, c); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
}

// RecallIDs returns the recall ids bound to this context, in the order they
// were bound.
func (c *RecyclingContext) RecallIDs() []*RecallID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.recallIDs)
}

func (c *RecyclingContext) addRecallID(id *RecallID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.recallIDs, id) {
		c.recallIDs = append(c.recallIDs, id)
	}
}

// Recyclings returns the recyclings spanned by the context.
func (c *RecyclingContext) Recyclings() []*Recycling {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.recyclings)
}

// Find returns the index of r in the context, or -1.
func (c *RecyclingContext) Find(r *Recycling) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Index(c.recyclings, r)
}

// SetRecyclings replaces the recyclings spanned by the context, e.g. after
// the channel the context is rooted at has been relinked.
func (c *RecyclingContext) SetRecyclings(recyclings []*Recycling) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recyclings = slices.Clone(recyclings)
}
