package track

import (
	"slices"
	"sync"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
)

// linkMu serializes every operation that changes links between tracks,
// including resizes, which unlink the channels they remove. It is taken
// before any track lock.
var linkMu sync.Mutex

// Link connects channels a and b of two different tracks, one output and one
// input, in either order. Existing links of either channel are replaced. The
// input then feeds from the output's recyclings, and the change propagates
// to every track downstream of the input.
func Link(a, b *Channel) error {
	if a == nil || b == nil {
		return &gsq.LinkError{Op: "link", From: describeChannel(a), To: describeChannel(b), Reason: gsq.ErrNilChannel}
	}
	out, in := a, b
	if a.direction == gsq.Input {
		out, in = b, a
	}
	if a.direction == b.direction {
		return &gsq.LinkError{Op: "link", From: a.String(), To: b.String(), Reason: gsq.ErrLinkSameDirection}
	}
	if out.track == in.track {
		return &gsq.LinkError{Op: "link", From: out.String(), To: in.String(), Reason: gsq.ErrLinkSameTrack}
	}
	linkMu.Lock()
	defer linkMu.Unlock()
	if out.IsDisposed() || in.IsDisposed() {
		return &gsq.LinkError{Op: "link", From: out.String(), To: in.String(), Reason: gsq.ErrChannelDisposed}
	}
	if out.track.BufferSize() != in.track.BufferSize() {
		return &gsq.LinkError{Op: "link", From: out.String(), To: in.String(), Reason: gsq.ErrLinkIncompatible}
	}
	if feeds(in.track, out.track) {
		return &gsq.LinkError{Op: "link", From: out.String(), To: in.String(), Reason: gsq.ErrLinkCycle}
	}
	if cur := out.Link(); cur == in {
		return nil
	}
	var affected []*Track
	for _, c := range []*Channel{out, in} {
		tracks, err := unlinkLocked(c)
		if err != nil {
			return err
		}
		affected = append(affected, tracks...)
	}
	lockPair(out.track, in.track)
	out.link, in.link = in, out
	unlockPair(out.track, in.track)
	for _, t := range affected {
		propagate(t)
	}
	propagate(in.track)
	out.track.logger.Debug("linked", "output", out.String(), "input", in.String())
	out.track.bus.Publish(message.KeyLink, out.track.name, "output", out.String(), "input", in.String())
	return nil
}

// Unlink removes the link of c, if any, on both ends.
func Unlink(c *Channel) error {
	if c == nil {
		return &gsq.LinkError{Op: "unlink", Reason: gsq.ErrNilChannel}
	}
	linkMu.Lock()
	defer linkMu.Unlock()
	other := c.Link()
	affected, err := unlinkLocked(c)
	if err != nil {
		return err
	}
	for _, t := range affected {
		propagate(t)
	}
	if other != nil {
		c.track.bus.Publish(message.KeyUnlink, c.track.name, "channel", c.String(), "other", other.String())
	}
	return nil
}

// unlinkLocked severs the link of c. The caller holds linkMu and no track
// lock. It returns the tracks whose recyclings need a refresh.
func unlinkLocked(c *Channel) ([]*Track, error) {
	c.track.mu.Lock()
	other, disposed := c.link, c.disposed
	c.track.mu.Unlock()
	if other == nil {
		return nil, nil
	}
	if disposed {
		return nil, &gsq.LinkError{Op: "unlink", From: describeChannel(c), Reason: gsq.ErrChannelDisposed}
	}
	lockPair(c.track, other.track)
	c.link = nil
	if other.link == c {
		other.link = nil
	}
	unlockPair(c.track, other.track)
	return []*Track{c.track, other.track}, nil
}

// feeds returns true if audio of from reaches to, following input links
// upstream from to.
func feeds(from, to *Track) bool {
	seen := map[*Track]bool{}
	queue := []*Track{to}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if t == from {
			return true
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		queue = append(queue, t.upstreamTracks()...)
	}
	return false
}

func (t *Track) upstreamTracks() []*Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ret []*Track
	for _, c := range t.channels[gsq.Input] {
		if c.link != nil && !slices.Contains(ret, c.link.track) {
			ret = append(ret, c.link.track)
		}
	}
	return ret
}

func (t *Track) downstreamLocked() []*Track {
	var ret []*Track
	for _, c := range t.channels[gsq.Output] {
		if c.link != nil && !slices.Contains(ret, c.link.track) {
			ret = append(ret, c.link.track)
		}
	}
	return ret
}

// propagate refreshes the recyclings of start and of every track
// downstream of it. Links form a DAG, so the walk terminates; a track
// reachable on several paths is refreshed once per path, which keeps the
// last refresh after all of its upstream tracks.
func propagate(start *Track) {
	queue := []*Track{start}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		t.mu.Lock()
		t.refreshRecyclingsLocked()
		queue = append(queue, t.downstreamLocked()...)
		t.mu.Unlock()
	}
}

// refreshRecyclingsLocked recomputes the recycling range of every channel:
//   - a channel with its own recycling uses it;
//   - an input without one borrows the range of the output it is linked to;
//   - an output without one takes the input at the same line (Sync), or all
//     inputs of its audio channel (Async), from the first recycling of the
//     first pad to the last recycling of the last pad.
//
// Contexts of runs rooted at a channel follow the new range.
func (t *Track) refreshRecyclingsLocked() {
	for _, c := range t.channels[gsq.Input] {
		switch {
		case c.owned != nil:
			c.setRecyclings([]*gsq.Recycling{c.owned})
		case c.link != nil:
			c.setRecyclings(c.link.Recyclings())
		default:
			c.setRecyclings(nil)
		}
	}
	inputs := t.channels[gsq.Input]
	for _, c := range t.channels[gsq.Output] {
		switch {
		case c.owned != nil:
			c.setRecyclings([]*gsq.Recycling{c.owned})
		case t.flags.Has(Async):
			var r []*gsq.Recycling
			for _, in := range inputs {
				if in.audioChannel == c.audioChannel {
					r = appendUnique(r, in.Recyclings()...)
				}
			}
			c.setRecyclings(r)
		case t.flags.Has(Sync) && c.line < len(inputs):
			c.setRecyclings(inputs[c.line].Recyclings())
		default:
			c.setRecyclings(nil)
		}
	}
	for _, r := range t.runs {
		r.ctx.SetRecyclings(r.channel.Recyclings())
	}
}

func appendUnique(list []*gsq.Recycling, r ...*gsq.Recycling) []*gsq.Recycling {
	for _, x := range r {
		if !slices.Contains(list, x) {
			list = append(list, x)
		}
	}
	return list
}

// lockPair locks the structural locks of two tracks in creation order.
func lockPair(a, b *Track) {
	if a == b {
		a.mu.Lock()
		return
	}
	if a.seq > b.seq {
		a, b = b, a
	}
	a.mu.Lock()
	b.mu.Lock()
}

func unlockPair(a, b *Track) {
	a.mu.Unlock()
	if a != b {
		b.mu.Unlock()
	}
}

func describeChannel(c *Channel) string {
	if c == nil {
		return "<nil>"
	}
	return c.String()
}
