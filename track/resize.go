package track

import (
	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
)

var directions = [...]gsq.Direction{gsq.Output, gsq.Input}

// SetAudioChannels changes the number of audio channels of both directions.
// Existing channels keep their pad and audio channel and are renumbered;
// channels with audioChannel >= n are unlinked, their runs stopped and then
// disposed. Setting 0 disposes every channel of the track; the pad counts
// are kept.
func (t *Track) SetAudioChannels(n int) {
	if n < 0 {
		t.logger.Warn("ignoring negative audio channel count", "audio-channels", n)
		return
	}
	linkMu.Lock()
	defer linkMu.Unlock()
	t.mu.Lock()
	old := t.audioChannels
	t.mu.Unlock()
	if n == old {
		return
	}
	t.resize(func(d gsq.Direction, pads, _ int) (int, int) { return pads, n })
	t.logger.Debug("audio channels changed", "old", old, "new", n)
	t.bus.Publish(message.KeySetAudioChannels, t.name, "old", old, "new", n)
}

// SetPads changes the number of pads of direction d. Pad counts of the two
// directions are independent, also for Sync tracks.
func (t *Track) SetPads(d gsq.Direction, n int) {
	if !d.Valid() {
		t.logger.Warn("ignoring pads for invalid direction", "error", gsq.ErrInvalidDirection)
		return
	}
	if n < 0 {
		t.logger.Warn("ignoring negative pad count", "direction", d.String(), "pads", n)
		return
	}
	linkMu.Lock()
	defer linkMu.Unlock()
	t.mu.Lock()
	old := t.pads[d]
	t.mu.Unlock()
	if n == old {
		return
	}
	t.resize(func(dir gsq.Direction, pads, ac int) (int, int) {
		if dir == d {
			return n, ac
		}
		return pads, ac
	})
	t.logger.Debug("pads changed", "direction", d.String(), "old", old, "new", n)
	t.bus.Publish(message.KeySetPads, t.name, "direction", d.String(), "old", old, "new", n)
}

// resize moves both directions to the sizes returned by size. The caller
// holds linkMu. Removed channels are first unlinked, with the runs rooted at
// them stopped, then cut out of the arena and disposed.
func (t *Track) resize(size func(d gsq.Direction, pads, audioChannels int) (int, int)) {
	var removed []*Channel
	var stale []*run
	t.mu.Lock()
	for _, d := range directions {
		pads, ac := size(d, t.pads[d], t.audioChannels)
		for _, c := range t.channels[d] {
			if c.pad >= pads || c.audioChannel >= ac {
				removed = append(removed, c)
			}
		}
	}
	for _, r := range t.runs {
		for _, c := range removed {
			if r.channel == c {
				stale = append(stale, r)
			}
		}
	}
	t.mu.Unlock()

	for _, c := range removed {
		affected, err := unlinkLocked(c)
		if err != nil {
			t.logger.Error("cannot unlink removed channel", "error", err)
			continue
		}
		for _, a := range affected {
			if a != t {
				propagate(a)
			}
		}
	}
	for _, r := range stale {
		t.stopRun(r)
	}

	t.mu.Lock()
	oldAC, oldPads := t.audioChannels, t.pads
	for _, d := range directions {
		pads, ac := size(d, oldPads[d], oldAC)
		t.rebuildLocked(d, pads, ac)
		t.pads[d] = pads
		t.audioChannels = ac
	}
	newAC := t.audioChannels
	t.trimCollectionsLocked(oldAC, newAC, oldPads)
	t.playback.syncLocked()
	t.refreshRecyclingsLocked()
	t.mu.Unlock()
	propagate(t)
}

// rebuildLocked lays out direction d as pads x audioChannels. Channels that
// still fit are kept and renumbered, missing ones are created in pad-major,
// channel-minor order, and the rest are disposed.
func (t *Track) rebuildLocked(d gsq.Direction, pads, audioChannels int) {
	old := t.channels[d]
	next := make([]*Channel, pads*audioChannels)
	for _, c := range old {
		if c.pad < pads && c.audioChannel < audioChannels {
			next[c.pad*audioChannels+c.audioChannel] = c
		} else {
			c.disposeLocked()
		}
	}
	for line, c := range next {
		if c == nil {
			c = newChannel(t, d, line/audioChannels, line%audioChannels, audioChannels)
			if t.hasRecycling(d) {
				c.owned = gsq.NewRecycling(t.bufferSize, t.samplerate, t.format)
			}
			next[line] = c
		}
		c.line = line
	}
	stitch(next, audioChannels)
	t.channels[d] = next
}

func (t *Track) hasRecycling(d gsq.Direction) bool {
	if d == gsq.Output {
		return t.flags.Has(OutputHasRecycling)
	}
	return t.flags.Has(InputHasRecycling)
}

// stitch sets the neighbour indices of a freshly laid out arena.
func stitch(chans []*Channel, audioChannels int) {
	for i, c := range chans {
		c.prev, c.next, c.prevPad, c.nextPad = i-1, i+1, i-audioChannels, i+audioChannels
		if c.next >= len(chans) {
			c.next = -1
		}
		if c.prevPad < 0 {
			c.prevPad = -1
		}
		if c.nextPad >= len(chans) {
			c.nextPad = -1
		}
	}
}

// trimCollectionsLocked removes notation, automation, wave and MIDI entries
// addressing channels that no longer exist, and renumbers automation and
// wave lines of the surviving ones.
func (t *Track) trimCollectionsLocked(oldAC, newAC int, oldPads [2]int) {
	remap := func(d gsq.Direction, line int) (int, bool) {
		if oldAC == 0 {
			return 0, false
		}
		pad, ch := line/oldAC, line%oldAC
		if ch >= newAC || pad >= t.pads[d] || pad >= oldPads[d] {
			return 0, false
		}
		return pad*newAC + ch, true
	}
	automation := t.automation[:0]
	for _, a := range t.automation {
		if l, ok := remap(a.Direction, a.Line); ok {
			a.Line = l
			automation = append(automation, a)
		}
	}
	clear(t.automation[len(automation):])
	t.automation = automation

	waves := t.waves[:0]
	for _, w := range t.waves {
		if l, ok := remap(gsq.Input, w.Line); ok {
			w.Line = l
			waves = append(waves, w)
		}
	}
	clear(t.waves[len(waves):])
	t.waves = waves

	midi := t.midi[:0]
	for _, m := range t.midi {
		if m.AudioChannel < newAC {
			midi = append(midi, m)
		}
	}
	clear(t.midi[len(midi):])
	t.midi = midi

	if t.flags.Has(HasNotation) {
		for len(t.notation) < newAC {
			t.notation = append(t.notation, &gsq.Notation{AudioChannel: len(t.notation)})
		}
	}
	if len(t.notation) > newAC {
		clear(t.notation[newAC:])
		t.notation = t.notation[:newAC]
	}
	if t.pads[gsq.Input] < oldPads[gsq.Input] {
		for _, n := range t.notation {
			n.RemoveNotesFrom(t.pads[gsq.Input])
		}
	}
}
