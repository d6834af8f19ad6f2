package track

import (
	"fmt"
	"slices"
	"sync/atomic"

	gsq "github.com/gsequencer/gsequencer-sub009"
)

// Channel is one line of a track in one direction. Channels are created and
// destroyed only by resizing their track; all fields except the recycling
// range are guarded by the track's structural lock.
type Channel struct {
	track     *Track
	direction gsq.Direction

	pad, audioChannel, line int

	// indices into the track's arena for the same direction, -1 for none
	prev, next, prevPad, nextPad int

	// link is written while holding the locks of both linked tracks.
	link *Channel

	// owned is the recycling allocated for this channel, nil if the channel
	// borrows its recyclings.
	owned *gsq.Recycling

	recallIDs []*gsq.RecallID
	playback  *Playback
	disposed  bool

	// recyclings is replaced wholesale and read without locks, also by
	// the channels of other tracks linked to this one.
	recyclings atomic.Pointer[[]*gsq.Recycling]
}

func newChannel(t *Track, d gsq.Direction, pad, audioChannel, audioChannels int) *Channel {
	return &Channel{
		track:        t,
		direction:    d,
		pad:          pad,
		audioChannel: audioChannel,
		line:         pad*audioChannels + audioChannel,
		prev:         -1,
		next:         -1,
		prevPad:      -1,
		nextPad:      -1,
	}
}

func (c *Channel) Track() *Track            { return c.track }
func (c *Channel) Direction() gsq.Direction { return c.direction }
func (c *Channel) IsOutput() bool           { return c.direction == gsq.Output }
func (c *Channel) HasOwnRecycling() bool    { return c.OwnRecycling() != nil }

func (c *Channel) String() string {
	_, _, line := c.Address()
	return fmt.Sprintf("%s/%s/%d", c.track.name, c.direction, line)
}

func (c *Channel) setRecyclings(r []*gsq.Recycling) {
	c.recyclings.Store(&r)
}

func (c *Channel) Pad() int {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.pad
}

func (c *Channel) AudioChannel() int {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.audioChannel
}

func (c *Channel) Line() int {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.line
}

// Address returns pad, audio channel and line in one consistent read.
func (c *Channel) Address() (pad, audioChannel, line int) {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.pad, c.audioChannel, c.line
}

func (c *Channel) Prev() *Channel    { return c.neighbour(func(c *Channel) int { return c.prev }) }
func (c *Channel) Next() *Channel    { return c.neighbour(func(c *Channel) int { return c.next }) }
func (c *Channel) PrevPad() *Channel { return c.neighbour(func(c *Channel) int { return c.prevPad }) }
func (c *Channel) NextPad() *Channel { return c.neighbour(func(c *Channel) int { return c.nextPad }) }

func (c *Channel) neighbour(index func(*Channel) int) *Channel {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	if c.disposed {
		return nil
	}
	return c.track.channelLocked(c.direction, index(c))
}

// Link returns the channel of another track this channel is linked to.
func (c *Channel) Link() *Channel {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.link
}

func (c *Channel) OwnRecycling() *gsq.Recycling {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.owned
}

// Recyclings returns the recycling range of the channel: its own recycling,
// or the recyclings it borrows from the channels it is wired to.
func (c *Channel) Recyclings() []*gsq.Recycling {
	p := c.recyclings.Load()
	if p == nil {
		return nil
	}
	return slices.Clone(*p)
}

func (c *Channel) FirstRecycling() *gsq.Recycling {
	p := c.recyclings.Load()
	if p == nil || len(*p) == 0 {
		return nil
	}
	return (*p)[0]
}

func (c *Channel) LastRecycling() *gsq.Recycling {
	p := c.recyclings.Load()
	if p == nil || len(*p) == 0 {
		return nil
	}
	return (*p)[len(*p)-1]
}

// RecallIDs returns the channel-level recall ids of the runs rooted at or
// passing through this channel.
func (c *Channel) RecallIDs() []*gsq.RecallID {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return slices.Clone(c.recallIDs)
}

// Playback returns the playback of an output channel, nil for inputs.
func (c *Channel) Playback() *Playback {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.playback
}

func (c *Channel) IsDisposed() bool {
	c.track.mu.Lock()
	defer c.track.mu.Unlock()
	return c.disposed
}

// rootRecallIDLocked returns the id of the root run of scope at this
// channel, if any.
func (c *Channel) rootRecallIDLocked(scope gsq.SoundScope) *gsq.RecallID {
	for _, id := range c.recallIDs {
		if id.Scope() == scope && id.RecyclingContext().IsRoot() {
			return id
		}
	}
	return nil
}

func (c *Channel) removeRecallIDLocked(id *gsq.RecallID) {
	if i := slices.Index(c.recallIDs, id); i >= 0 {
		c.recallIDs = slices.Delete(c.recallIDs, i, i+1)
	}
}

func (c *Channel) disposeLocked() {
	c.disposed = true
	c.prev, c.next, c.prevPad, c.nextPad = -1, -1, -1, -1
	c.owned = nil
	c.recallIDs = nil
	c.setRecyclings(nil)
	if c.playback != nil {
		c.playback.disposeLocked()
		c.playback = nil
	}
}

// Channel returns the channel at line of direction d, nil if out of range.
func (t *Track) Channel(d gsq.Direction, line int) *Channel {
	if !d.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelLocked(d, line)
}

// Channels returns the channels of direction d in line order.
func (t *Track) Channels(d gsq.Direction) []*Channel {
	if !d.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.channels[d])
}

// Nth returns the channel at line n of direction d.
func (t *Track) Nth(d gsq.Direction, n int) *Channel {
	return t.Channel(d, n)
}

// PadNth returns the first channel of pad n of direction d.
func (t *Track) PadNth(d gsq.Direction, n int) *Channel {
	if !d.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channelLocked(d, n*t.audioChannels)
}

func (t *Track) channelLocked(d gsq.Direction, line int) *Channel {
	if line < 0 || line >= len(t.channels[d]) {
		return nil
	}
	return t.channels[d][line]
}
