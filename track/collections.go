package track

import (
	"fmt"

	gsq "github.com/gsequencer/gsequencer-sub009"
)

// Notation returns a copy of the notation of audioChannel, nil if the track
// has no notation or the channel does not exist.
func (t *Track) Notation(audioChannel int) *gsq.Notation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if audioChannel < 0 || audioChannel >= len(t.notation) {
		return nil
	}
	return t.notation[audioChannel].Copy()
}

// AddNote adds a note to the notation of audioChannel. The note must address
// an existing input pad.
func (t *Track) AddNote(audioChannel int, n gsq.Note) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if audioChannel < 0 || audioChannel >= len(t.notation) {
		return fmt.Errorf("cannot add note: no notation for audio channel %d", audioChannel)
	}
	if n.Y < 0 || n.Y >= t.pads[gsq.Input] {
		return fmt.Errorf("cannot add note: pad %d out of range [0,%d)", n.Y, t.pads[gsq.Input])
	}
	t.notation[audioChannel].Notes = append(t.notation[audioChannel].Notes, n)
	return nil
}

// AddAutomation adds a control curve for an existing line.
func (t *Track) AddAutomation(a gsq.Automation) error {
	if !a.Direction.Valid() {
		return fmt.Errorf("cannot add automation: %w", gsq.ErrInvalidDirection)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if a.Line < 0 || a.Line >= len(t.channels[a.Direction]) {
		return fmt.Errorf("cannot add automation: %s line %d out of range", a.Direction, a.Line)
	}
	t.automation = append(t.automation, &a)
	return nil
}

func (t *Track) Automation() []gsq.Automation {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]gsq.Automation, len(t.automation))
	for i, a := range t.automation {
		ret[i] = *a
	}
	return ret
}

// AddWave adds audio for an existing input line.
func (t *Track) AddWave(w gsq.Wave) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w.Line < 0 || w.Line >= len(t.channels[gsq.Input]) {
		return fmt.Errorf("cannot add wave: input line %d out of range", w.Line)
	}
	t.waves = append(t.waves, &w)
	return nil
}

func (t *Track) Waves() []gsq.Wave {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]gsq.Wave, len(t.waves))
	for i, w := range t.waves {
		ret[i] = *w
	}
	return ret
}

func (t *Track) AddMIDI(m gsq.MIDI) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.AudioChannel < 0 || m.AudioChannel >= t.audioChannels {
		return fmt.Errorf("cannot add midi: audio channel %d out of range", m.AudioChannel)
	}
	t.midi = append(t.midi, &m)
	return nil
}

func (t *Track) MIDI() []gsq.MIDI {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := make([]gsq.MIDI, len(t.midi))
	for i, m := range t.midi {
		ret[i] = *m
	}
	return ret
}
