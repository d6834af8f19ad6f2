package track

import (
	"fmt"
	"slices"
	"sync"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/thread"
)

type (
	// PlaybackDomain holds the per-scope workers of a track and one Playback
	// per output channel.
	PlaybackDomain struct {
		track   *Track
		workers [gsq.NumScopes]thread.Worker

		// guarded by track.mu
		playbacks []*Playback
	}

	// Playback binds an output channel to the audio-level recall id of the
	// run playing it, per scope. On super-threaded tracks it also owns one
	// worker per scope for its channel.
	Playback struct {
		domain  *PlaybackDomain
		channel *Channel

		mu        sync.Mutex
		recallIDs [gsq.NumScopes]*gsq.RecallID
		workers   [gsq.NumScopes]thread.Worker
	}
)

func newPlaybackDomain(t *Track) *PlaybackDomain {
	d := &PlaybackDomain{track: t}
	if s := t.scheduler; s != nil {
		for i := range d.workers {
			scope := gsq.SoundScope(i)
			d.workers[i] = s.NewWorker(fmt.Sprintf("%s/%s", t.name, scope), func() { t.tick(scope) })
			s.AddChild(s.Root(), d.workers[i])
		}
	}
	return d
}

// Worker returns the audio worker of scope, nil without a scheduler.
func (d *PlaybackDomain) Worker(scope gsq.SoundScope) thread.Worker {
	if !scope.Valid() {
		return nil
	}
	return d.workers[scope]
}

// Playbacks returns one playback per output channel, in line order.
func (d *PlaybackDomain) Playbacks() []*Playback {
	d.track.mu.Lock()
	defer d.track.mu.Unlock()
	return slices.Clone(d.playbacks)
}

// syncLocked makes the playbacks follow the output channels.
func (d *PlaybackDomain) syncLocked() {
	outputs := d.track.channels[gsq.Output]
	d.playbacks = d.playbacks[:0]
	for _, c := range outputs {
		if c.playback == nil {
			c.playback = &Playback{domain: d, channel: c}
		}
		d.playbacks = append(d.playbacks, c.playback)
	}
	clear(d.playbacks[len(d.playbacks):cap(d.playbacks)])
}

func (d *PlaybackDomain) startProcessing(scope gsq.SoundScope) {
	s := d.track.scheduler
	if s == nil {
		return
	}
	s.StartProcessing(d.workers[scope])
	if !d.track.flags.Has(SuperThreaded) {
		return
	}
	for _, pb := range d.Playbacks() {
		if pb.RecallID(scope) != nil {
			s.StartProcessing(pb.channelWorker(scope))
		}
	}
}

func (d *PlaybackDomain) stopProcessing(scope gsq.SoundScope) {
	if s := d.track.scheduler; s != nil {
		s.StopProcessing(d.workers[scope])
	}
}

// detach removes every worker of the domain from the scheduler.
func (d *PlaybackDomain) detach() {
	s := d.track.scheduler
	if s == nil {
		return
	}
	for _, pb := range d.Playbacks() {
		pb.releaseWorkers()
	}
	for _, w := range d.workers {
		s.StopProcessing(w)
		s.RemoveChild(s.Root(), w)
	}
}

func (p *Playback) Channel() *Channel { return p.channel }

// RecallID returns the audio-level recall id bound in scope.
func (p *Playback) RecallID(scope gsq.SoundScope) *gsq.RecallID {
	if !scope.Valid() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recallIDs[scope]
}

func (p *Playback) Bind(scope gsq.SoundScope, id *gsq.RecallID) {
	if !scope.Valid() {
		return
	}
	p.mu.Lock()
	p.recallIDs[scope] = id
	p.mu.Unlock()
}

// Unbind clears scope if it is bound to id, or unconditionally for a nil id.
// The channel worker of the scope is stopped.
func (p *Playback) Unbind(scope gsq.SoundScope, id *gsq.RecallID) {
	if !scope.Valid() {
		return
	}
	p.mu.Lock()
	if id != nil && p.recallIDs[scope] != id {
		p.mu.Unlock()
		return
	}
	p.recallIDs[scope] = nil
	w := p.workers[scope]
	p.mu.Unlock()
	if s := p.domain.track.scheduler; s != nil && w != nil {
		s.StopProcessing(w)
	}
}

// Worker returns the channel worker of scope, nil unless the track is
// super-threaded and the scope has been started.
func (p *Playback) Worker(scope gsq.SoundScope) thread.Worker {
	if !scope.Valid() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[scope]
}

func (p *Playback) channelWorker(scope gsq.SoundScope) thread.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w := p.workers[scope]; w != nil {
		return w
	}
	t := p.domain.track
	s := t.scheduler
	c := p.channel
	w := s.NewWorker(fmt.Sprintf("%s/%s/%s", t.name, c.direction, scope), func() { t.tickChannel(c, scope) })
	s.AddChild(p.domain.workers[scope], w)
	p.workers[scope] = w
	return w
}

func (p *Playback) releaseWorkers() {
	s := p.domain.track.scheduler
	p.mu.Lock()
	workers := p.workers
	p.workers = [gsq.NumScopes]thread.Worker{}
	p.mu.Unlock()
	if s == nil {
		return
	}
	for i, w := range workers {
		if w != nil {
			s.StopProcessing(w)
			s.RemoveChild(p.domain.workers[i], w)
		}
	}
}

func (p *Playback) disposeLocked() {
	p.releaseWorkers()
	p.mu.Lock()
	p.recallIDs = [gsq.NumScopes]*gsq.RecallID{}
	p.mu.Unlock()
}
