package track

import (
	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
)

// Duplicate makes run copies of every matching template for id. Templates
// are taken from the "play" list when id's context is a root context and
// from the "recall" list otherwise. Nothing is duplicated once id has run
// StageRunInitPre or while it is waiting, active, processing or
// terminating. A template is duplicated at most once per context.
//
// For an audio-level id, audio-run templates are duplicated; for a
// channel-level id, channel-run templates addressing pad, audioChannel and
// line.
func (t *Track) Duplicate(id *gsq.RecallID, pad, audioChannel, line int) []*gsq.Recall {
	if !t.canDuplicate(id) {
		return nil
	}
	var ret []*gsq.Recall
	for _, r := range t.Recalls(id.RecyclingContext().IsRoot()) {
		if c := t.duplicate(r, id, pad, audioChannel, line); c != nil {
			ret = append(ret, c)
		}
	}
	return ret
}

// DuplicateTemplate is Duplicate for a single template. It returns nil if
// the template is skipped.
func (t *Track) DuplicateTemplate(template *gsq.Recall, id *gsq.RecallID, pad, audioChannel, line int) *gsq.Recall {
	if template == nil || !t.canDuplicate(id) {
		return nil
	}
	return t.duplicate(template, id, pad, audioChannel, line)
}

func (t *Track) canDuplicate(id *gsq.RecallID) bool {
	if !t.validID(id) {
		return false
	}
	if id.HasStaging(gsq.StageRunInitPre) || id.HasState(gsq.StateBusy) {
		t.logger.Debug("not duplicating", "recall-id", id.String(), "state", id.State().String(), "staging", id.Staging().String())
		return false
	}
	return true
}

func (t *Track) duplicate(template *gsq.Recall, id *gsq.RecallID, pad, audioChannel, line int) *gsq.Recall {
	level := template.Level()
	switch {
	case !template.IsTemplate(), !level.IsRun():
		return nil
	case !template.Ability().Supports(id.Scope()):
		return nil
	case level.IsAudio() != id.Level().IsAudio():
		return nil
	case !level.IsAudio() && !template.Addresses(pad, audioChannel, line):
		return nil
	}
	ctx := id.RecyclingContext()
	key := dupKey{template: template, context: ctx}
	t.dupMu.Lock()
	if _, ok := t.duplicated[key]; ok {
		t.dupMu.Unlock()
		return nil
	}
	c := template.Duplicate(id, pad, audioChannel, line)
	t.duplicated[key] = c
	t.dupMu.Unlock()

	c.SetDoneHandler(t.recallDone)
	t.AddRecall(c, ctx.IsRoot())
	c.Connect()
	t.bus.Publish(message.KeyDuplicate, t.name, "recall", c.Name(), "scope", id.Scope().String())
	return c
}

// Resolve resolves the dependencies of every run copy of id's run.
func (t *Track) Resolve(id *gsq.RecallID) {
	if !t.validID(id) {
		return
	}
	for _, r := range t.matching(id) {
		r.ResolveDependencies()
	}
}

// Init runs the init stages in flags for id's run. The stages are recorded
// on every recall id of the run, and each recall runs each stage once.
func (t *Track) Init(id *gsq.RecallID, flags gsq.StagingFlags) {
	if !t.validID(id) {
		return
	}
	flags &= gsq.InitStages
	if flags == 0 {
		return
	}
	for _, sibling := range id.RecyclingContext().RecallIDs() {
		sibling.SetStaging(flags)
	}
	for _, r := range t.matching(id) {
		r.ApplyStaging(flags)
	}
}

// Play runs one pulse of id's run: StageAutomate is pulsed on the
// audio-level shared recalls, then the other run stages in flags are run on
// every visible run copy. Nothing is recorded; a terminating id is skipped.
func (t *Track) Play(id *gsq.RecallID, flags gsq.StagingFlags) {
	if !t.validID(id) || id.HasState(gsq.StateTerminating) {
		return
	}
	flags &= gsq.RunStages
	if flags&gsq.StageAutomate != 0 {
		for _, r := range t.Recalls(id.RecyclingContext().IsRoot()) {
			if r.IsTemplate() && r.Level() == gsq.LevelAudio && r.Ability().Supports(id.Scope()) {
				r.Automate()
			}
		}
	}
	flags &^= gsq.StageAutomate
	if flags == 0 {
		return
	}
	id.SetState(gsq.StateProcessing)
	defer id.UnsetState(gsq.StateProcessing)
	for _, r := range t.matching(id) {
		r.Tick(flags)
	}
}

// Done marks every run copy of id's run done.
func (t *Track) Done(id *gsq.RecallID) {
	if !t.validID(id) {
		return
	}
	for _, r := range t.matching(id) {
		r.Done()
	}
	t.markStaging(id.Scope(), gsq.StageDone)
}

// Cancel cancels every run copy of id's run, persistent ones included.
func (t *Track) Cancel(id *gsq.RecallID) {
	if !t.validID(id) {
		return
	}
	n := 0
	for _, r := range t.matching(id) {
		if r.Cancel() {
			n++
		}
	}
	t.markStaging(id.Scope(), gsq.StageCancel)
	if n > 0 {
		t.bus.Publish(message.KeyCancel, t.name, "scope", id.Scope().String(), "recalls", n)
	}
}

// Cleanup removes every run copy of id's run from its list, disconnects and
// disposes it.
func (t *Track) Cleanup(id *gsq.RecallID) {
	if !t.validID(id) {
		return
	}
	ctx := id.RecyclingContext()
	play := ctx.IsRoot()
	recalls := t.matching(id)
	for _, r := range recalls {
		t.RemoveRecall(r, play)
		r.Disconnect()
		r.Fini()
	}
	t.dupMu.Lock()
	for k := range t.duplicated {
		if k.context == ctx {
			delete(t.duplicated, k)
		}
	}
	t.dupMu.Unlock()
	t.markStaging(id.Scope(), gsq.StageFini)
	if len(recalls) > 0 {
		t.bus.Publish(message.KeyCleanup, t.name, "scope", id.Scope().String(), "recalls", len(recalls))
	}
}

// IsDone returns true if id's run has run copies and all of them are done.
func (t *Track) IsDone(id *gsq.RecallID) bool {
	if !t.validID(id) {
		return false
	}
	recalls := t.matching(id)
	for _, r := range recalls {
		if !r.IsDone() {
			return false
		}
	}
	return len(recalls) > 0
}

// recallDone is the done handler of every run copy: once the whole run is
// done, the scope is marked done and observers are notified.
func (t *Track) recallDone(r *gsq.Recall) {
	id := r.RecallID()
	if !t.IsDone(id) {
		return
	}
	t.markStaging(id.Scope(), gsq.StageDone)
	t.logger.Debug("run done", "recall-id", id.String())
	t.bus.Publish(message.KeyDone, t.name, "scope", id.Scope().String(), "context", id.RecyclingContext().ID().String())
}

// matching returns the run copies bound to id's recycling context.
func (t *Track) matching(id *gsq.RecallID) []*gsq.Recall {
	ctx := id.RecyclingContext()
	var ret []*gsq.Recall
	for _, r := range t.Recalls(ctx.IsRoot()) {
		if rid := r.RecallID(); rid != nil && rid.RecyclingContext() == ctx {
			ret = append(ret, r)
		}
	}
	return ret
}

func (t *Track) validID(id *gsq.RecallID) bool {
	if id == nil || !id.Scope().Valid() {
		t.logger.Warn("invalid recall id", "error", gsq.ErrInvalidScope)
		return false
	}
	if id.RecyclingContext() == nil {
		t.logger.Debug("recall id without context", "recall-id", id.String(), "error", gsq.ErrNoContext)
		return false
	}
	return true
}
