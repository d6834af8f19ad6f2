package track

import (
	"slices"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
)

// run is one run of a track in one scope: a recycling context with an
// audio-level and a channel-level recall id, rooted at a channel. Root runs
// are created by Start on leaf channels; nested runs are created on upstream
// tracks the first time their downstream run is staged, and are staged only
// through it.
type run struct {
	track     *Track
	scope     gsq.SoundScope
	channel   *Channel
	ctx       *gsq.RecyclingContext
	audioID   *gsq.RecallID
	channelID *gsq.RecallID
	parent    *run

	// guarded by track.mu
	upstream []*run
	stopped  bool
}

// Start creates a run in scope for every leaf channel that has none yet,
// runs the init stages for the whole scope once and starts the scope's
// workers. Leaf channels are the outputs, or the inputs for tracks created
// with DefaultsToInput. A negative scope starts every scope.
//
// It returns the channel-level recall ids of every leaf channel, new and
// reused, in scope order and then line order.
func (t *Track) Start(scope gsq.SoundScope) []*gsq.RecallID {
	scopes := scope.Expand()
	if len(scopes) == 0 {
		t.logger.Warn("cannot start", "scope", scope.String(), "error", gsq.ErrInvalidScope)
		return nil
	}
	var ret []*gsq.RecallID
	for _, s := range scopes {
		ids, created := t.startScope(s)
		ret = append(ret, ids...)
		t.RecursiveRunStage(s, gsq.InitStages)
		state := gsq.StateWaiting
		if t.scheduler != nil {
			state = gsq.StateActive
		}
		for _, r := range created {
			r.audioID.SetState(state)
			r.channelID.SetState(state)
		}
		t.playback.startProcessing(s)
		if len(created) > 0 {
			t.logger.Debug("started", "scope", s.String(), "runs", len(created))
			t.bus.Publish(message.KeyStart, t.name, "scope", s.String(), "runs", len(created))
		}
	}
	return ret
}

func (t *Track) startScope(s gsq.SoundScope) (ids []*gsq.RecallID, created []*run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	leaves := t.channels[gsq.Output]
	if t.flags.Has(DefaultsToInput) {
		leaves = t.channels[gsq.Input]
	}
	for _, c := range leaves {
		if id := c.rootRecallIDLocked(s); id != nil {
			ids = append(ids, id)
			continue
		}
		r := t.newRunLocked(s, c, nil)
		if c.playback != nil {
			c.playback.Bind(s, r.audioID)
		}
		ids = append(ids, r.channelID)
		created = append(created, r)
	}
	return ids, created
}

// newRunLocked creates and registers a run rooted at c. parent is nil for
// root runs.
func (t *Track) newRunLocked(s gsq.SoundScope, c *Channel, parent *run) *run {
	var parentCtx *gsq.RecyclingContext
	if parent != nil {
		parentCtx = parent.ctx
	}
	ctx := gsq.NewRecyclingContext(parentCtx, c.Recyclings()...)
	r := &run{
		track:     t,
		scope:     s,
		channel:   c,
		ctx:       ctx,
		audioID:   gsq.NewRecallID(s, gsq.LevelAudio, ctx),
		channelID: gsq.NewRecallID(s, gsq.LevelChannel, ctx),
		parent:    parent,
	}
	t.recallIDs = append(t.recallIDs, r.audioID, r.channelID)
	t.contexts = append(t.contexts, ctx)
	c.recallIDs = append(c.recallIDs, r.channelID)
	t.runs = append(t.runs, r)
	return r
}

// Stop terminates the runs of ids in scope (every scope if negative): the
// ids are marked terminating, the workers stopped, the runs cancelled and
// cleaned up, and the ids removed from the track, its channels and its
// playbacks, together with the nested runs on upstream tracks. Ids of nested
// runs, as returned by CheckScope on an upstream track, stop only that
// nested run; its downstream run creates a new one on its next pulse. Ids of
// other scopes or other tracks are ignored. When no root run is left, the
// scheduler is told the track is idle.
func (t *Track) Stop(ids []*gsq.RecallID, scope gsq.SoundScope) {
	scopes := scope.Expand()
	if len(scopes) == 0 {
		t.logger.Warn("cannot stop", "scope", scope.String(), "error", gsq.ErrInvalidScope)
		return
	}
	var runs []*run
	t.mu.Lock()
	for _, id := range ids {
		if id == nil || !slices.Contains(scopes, id.Scope()) {
			continue
		}
		for _, r := range t.runs {
			if (r.channelID == id || r.audioID == id) && !slices.Contains(runs, r) {
				runs = append(runs, r)
			}
		}
	}
	t.mu.Unlock()

	for _, r := range runs {
		if r.parent != nil {
			r.parent.removeUpstream(r)
		}
	}

	for _, r := range runs {
		r.audioID.SetState(gsq.StateTerminating)
		r.channelID.SetState(gsq.StateTerminating)
	}
	for _, s := range scopes {
		if t.scopeEmptyAfter(s, runs) {
			t.playback.stopProcessing(s)
		}
	}
	for _, r := range runs {
		t.stopRun(r)
	}

	t.mu.Lock()
	idle := !slices.ContainsFunc(t.runs, func(r *run) bool { return r.parent == nil })
	t.mu.Unlock()
	if len(runs) > 0 {
		t.logger.Debug("stopped", "scope", scope.String(), "runs", len(runs))
		t.bus.Publish(message.KeyStop, t.name, "scope", scope.String(), "runs", len(runs))
	}
	if idle && t.scheduler != nil {
		t.scheduler.Idle(t)
	}
}

// removeUpstream forgets the nested run u of r.
func (r *run) removeUpstream(u *run) {
	r.track.mu.Lock()
	defer r.track.mu.Unlock()
	if i := slices.Index(r.upstream, u); i >= 0 {
		r.upstream = slices.Delete(r.upstream, i, i+1)
	}
}

func (t *Track) scopeEmptyAfter(s gsq.SoundScope, stopping []*run) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.runs {
		if r.parent == nil && r.scope == s && !slices.Contains(stopping, r) {
			return false
		}
	}
	return true
}

// stopRun cancels and cleans up r and its nested runs, and unregisters
// them. It is idempotent.
func (t *Track) stopRun(r *run) {
	t.mu.Lock()
	if r.stopped {
		t.mu.Unlock()
		return
	}
	r.stopped = true
	upstream := r.upstream
	r.upstream = nil
	t.mu.Unlock()

	for _, u := range upstream {
		u.track.stopRun(u)
	}
	r.audioID.SetState(gsq.StateTerminating)
	r.channelID.SetState(gsq.StateTerminating)
	t.Cancel(r.channelID)
	t.Cleanup(r.channelID)

	t.mu.Lock()
	if i := slices.Index(t.runs, r); i >= 0 {
		t.runs = slices.Delete(t.runs, i, i+1)
	}
	t.removeRecallIDLocked(r.audioID)
	t.removeRecallIDLocked(r.channelID)
	t.removeRecyclingContextLocked(r.ctx)
	r.channel.removeRecallIDLocked(r.channelID)
	pb := r.channel.playback
	t.mu.Unlock()
	if pb != nil {
		pb.Unbind(r.scope, r.audioID)
	}
	r.ctx.Detach()
}

// CheckScope returns the recall ids of scope registered with the track
// (every scope if negative), in insertion order.
func (t *Track) CheckScope(scope gsq.SoundScope) []*gsq.RecallID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ret []*gsq.RecallID
	for _, id := range t.recallIDs {
		if scope < 0 || id.Scope() == scope {
			ret = append(ret, id)
		}
	}
	return ret
}

// RecursiveRunStage runs the stages in flags for every root run of scope
// (every scope if negative), reaching into the upstream tracks through
// nested runs. Stages run in lifecycle order: duplicate, resolve and init
// for InitStages, one play pulse for RunStages, then done, cancel and
// cleanup (StageFini). StageReset clears the scope's staging state first.
func (t *Track) RecursiveRunStage(scope gsq.SoundScope, flags gsq.StagingFlags) {
	for _, s := range scope.Expand() {
		t.runStage(s, t.rootRuns(s, nil), flags)
	}
}

func (t *Track) rootRuns(s gsq.SoundScope, filter func(*run) bool) []*run {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ret []*run
	for _, r := range t.runs {
		if r.parent == nil && r.scope == s && (filter == nil || filter(r)) {
			ret = append(ret, r)
		}
	}
	return ret
}

func (t *Track) runStage(s gsq.SoundScope, runs []*run, flags gsq.StagingFlags) {
	if flags&gsq.StageReset != 0 {
		t.resetStaging(s)
		flags &^= gsq.StageReset
	}
	t.markStaging(s, flags)
	for _, r := range runs {
		t.stageRun(r, flags)
	}
	t.markCompleted(s, flags)
}

// stageRun stages r and, before it, its upstream runs, so that audio is
// produced upstream before it is consumed.
func (t *Track) stageRun(r *run, flags gsq.StagingFlags) {
	for _, u := range t.upstreamRuns(r, flags) {
		u.run.track.stageRun(u.run, u.flags)
	}
	if flags&gsq.InitStages != 0 {
		pad, audioChannel, line := r.channel.Address()
		t.Duplicate(r.audioID, pad, audioChannel, line)
		t.Duplicate(r.channelID, pad, audioChannel, line)
		t.Resolve(r.channelID)
		t.Init(r.channelID, flags&gsq.InitStages)
	}
	if flags&gsq.RunStages != 0 {
		t.Play(r.channelID, flags&gsq.RunStages)
	}
	if flags&gsq.StageDone != 0 {
		t.Done(r.channelID)
	}
	if flags&gsq.StageCancel != 0 {
		t.Cancel(r.channelID)
	}
	if flags&gsq.StageFini != 0 {
		t.Cleanup(r.channelID)
	}
}

type stagedRun struct {
	run   *run
	flags gsq.StagingFlags
}

// upstreamRuns returns the nested runs r reaches through the input links of
// its channel, creating missing ones and stopping those whose link is gone.
// Freshly created runs get the init stages in addition to flags.
func (t *Track) upstreamRuns(r *run, flags gsq.StagingFlags) []stagedRun {
	sources := t.sources(r.channel)
	t.mu.Lock()
	if r.stopped {
		t.mu.Unlock()
		return nil
	}
	var kept, stale []*run
	for _, u := range r.upstream {
		if slices.Contains(sources, u.channel) {
			kept = append(kept, u)
		} else {
			stale = append(stale, u)
		}
	}
	r.upstream = kept
	var missing []*Channel
	for _, src := range sources {
		if !slices.ContainsFunc(kept, func(u *run) bool { return u.channel == src }) {
			missing = append(missing, src)
		}
	}
	t.mu.Unlock()

	for _, u := range stale {
		u.track.stopRun(u)
	}
	var ret []stagedRun
	for _, u := range kept {
		ret = append(ret, stagedRun{run: u, flags: flags})
	}
	create := flags&(gsq.InitStages|gsq.RunStages) != 0 && !r.channelID.HasState(gsq.StateTerminating)
	if !create {
		return ret
	}
	for _, src := range missing {
		u := src.track.newNestedRun(r, src)
		t.mu.Lock()
		if r.stopped {
			t.mu.Unlock()
			u.track.stopRun(u)
			continue
		}
		r.upstream = append(r.upstream, u)
		t.mu.Unlock()
		ret = append(ret, stagedRun{run: u, flags: flags | gsq.InitStages})
	}
	return ret
}

func (t *Track) newNestedRun(parent *run, src *Channel) *run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.newRunLocked(parent.scope, src, parent)
}

// sources returns the outputs of other tracks feeding c: for an input, its
// link; for an output, the links of the inputs it is wired to.
func (t *Track) sources(c *Channel) []*Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.disposed {
		return nil
	}
	var inputs []*Channel
	switch {
	case c.direction == gsq.Input:
		inputs = []*Channel{c}
	case t.flags.Has(Async):
		for _, in := range t.channels[gsq.Input] {
			if in.audioChannel == c.audioChannel {
				inputs = append(inputs, in)
			}
		}
	case t.flags.Has(Sync):
		if in := t.channelLocked(gsq.Input, c.line); in != nil {
			inputs = []*Channel{in}
		}
	}
	var ret []*Channel
	for _, in := range inputs {
		if in.link != nil {
			ret = append(ret, in.link)
		}
	}
	return ret
}

// tick is the body of the audio worker of scope: one play pulse for every
// root run not handled by a channel worker.
func (t *Track) tick(s gsq.SoundScope) {
	super := t.flags.Has(SuperThreaded)
	runs := t.rootRuns(s, func(r *run) bool { return !super || r.channel.playback == nil })
	t.runStage(s, runs, gsq.RunStages)
}

// tickChannel is the body of a channel worker on super-threaded tracks.
func (t *Track) tickChannel(c *Channel, s gsq.SoundScope) {
	runs := t.rootRuns(s, func(r *run) bool { return r.channel == c })
	for _, r := range runs {
		t.stageRun(r, gsq.RunStages)
	}
}
