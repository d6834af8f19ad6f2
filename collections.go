package gsequencer

type (
	// Note is a single note of a notation. Y addresses the input pad the
	// note triggers; X0 and X1 are the start and end tick.
	Note struct {
		X0, X1   int
		Y        int
		Velocity uint8 `yaml:",omitempty"`
	}

	// Notation holds the notes of one audio channel.
	Notation struct {
		AudioChannel int
		Notes        []Note `yaml:",flow"`
	}

	AutomationPoint struct {
		X     int
		Value float64
	}

	// Automation is a control curve bound to one channel line.
	Automation struct {
		Direction Direction
		Line      int
		Control   string
		Points    []AutomationPoint `yaml:",flow"`
	}

	// Wave is recorded or imported audio for one input line.
	Wave struct {
		Line       int
		Samplerate int
		Buffer     []float32 `yaml:",flow"`
	}

	// MIDI is a named MIDI track routed to one audio channel.
	MIDI struct {
		AudioChannel int
		Name         string
	}
)

// Copy makes a deep copy of the notation.
func (n *Notation) Copy() *Notation {
	notes := make([]Note, len(n.Notes))
	copy(notes, n.Notes)
	return &Notation{AudioChannel: n.AudioChannel, Notes: notes}
}

// RemoveNotesFrom drops every note with Y >= pads and returns how many were
// removed.
func (n *Notation) RemoveNotesFrom(pads int) int {
	kept := n.Notes[:0]
	for _, note := range n.Notes {
		if note.Y < pads {
			kept = append(kept, note)
		}
	}
	removed := len(n.Notes) - len(kept)
	n.Notes = kept
	return removed
}
