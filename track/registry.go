package track

import (
	"slices"

	gsq "github.com/gsequencer/gsequencer-sub009"
)

// list returns the lock, unlock and the list pointer of the "play" list (play
// true) or the "recall" list.
func (t *Track) list(play bool) (func(), func(), *[]*gsq.Recall) {
	if play {
		return t.playMu.Lock, t.playMu.Unlock, &t.play
	}
	return t.recallMu.Lock, t.recallMu.Unlock, &t.recall
}

// AddRecall appends r to the "play" list (play true) or the "recall" list.
// Adding a recall twice to the same list is a no-op.
func (t *Track) AddRecall(r *gsq.Recall, play bool) {
	if r == nil {
		return
	}
	lock, unlock, l := t.list(play)
	lock()
	defer unlock()
	if !slices.Contains(*l, r) {
		*l = append(*l, r)
	}
}

// RemoveRecall removes r from one list and returns true if it was there.
func (t *Track) RemoveRecall(r *gsq.Recall, play bool) bool {
	lock, unlock, l := t.list(play)
	lock()
	defer unlock()
	i := slices.Index(*l, r)
	if i < 0 {
		return false
	}
	*l = slices.Delete(*l, i, i+1)
	return true
}

// Recalls returns a copy of the "play" or the "recall" list.
func (t *Track) Recalls(play bool) []*gsq.Recall {
	lock, unlock, l := t.list(play)
	lock()
	defer unlock()
	return slices.Clone(*l)
}

// AddTemplate adds a template to both lists, so it is duplicated for root
// runs of this track as well as for nested runs reaching the track from
// downstream.
func (t *Track) AddTemplate(r *gsq.Recall) {
	if r == nil {
		return
	}
	if !r.IsTemplate() {
		t.logger.Warn("not a template", "recall", r.String())
		return
	}
	t.AddRecall(r, true)
	t.AddRecall(r, false)
}

// RemoveTemplate removes a template from both lists. Run copies made from it
// stay until their run is cleaned up.
func (t *Track) RemoveTemplate(r *gsq.Recall) {
	t.RemoveRecall(r, true)
	t.RemoveRecall(r, false)
}

// Templates returns the templates of the "play" list.
func (t *Track) Templates() []*gsq.Recall {
	var ret []*gsq.Recall
	for _, r := range t.Recalls(true) {
		if r.IsTemplate() {
			ret = append(ret, r)
		}
	}
	return ret
}

// AddRecallID registers an id with the track.
func (t *Track) AddRecallID(id *gsq.RecallID) {
	if id == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.recallIDs, id) {
		t.recallIDs = append(t.recallIDs, id)
	}
}

func (t *Track) RemoveRecallID(id *gsq.RecallID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeRecallIDLocked(id)
}

func (t *Track) removeRecallIDLocked(id *gsq.RecallID) {
	if i := slices.Index(t.recallIDs, id); i >= 0 {
		t.recallIDs = slices.Delete(t.recallIDs, i, i+1)
	}
}

// RecallIDs returns every id registered with the track, in insertion order.
func (t *Track) RecallIDs() []*gsq.RecallID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.recallIDs)
}

func (t *Track) AddRecyclingContext(c *gsq.RecyclingContext) {
	if c == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.contexts, c) {
		t.contexts = append(t.contexts, c)
	}
}

func (t *Track) RemoveRecyclingContext(c *gsq.RecyclingContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeRecyclingContextLocked(c)
}

func (t *Track) removeRecyclingContextLocked(c *gsq.RecyclingContext) {
	if i := slices.Index(t.contexts, c); i >= 0 {
		t.contexts = slices.Delete(t.contexts, i, i+1)
	}
}

func (t *Track) RecyclingContexts() []*gsq.RecyclingContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.contexts)
}
