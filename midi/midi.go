// Package midi drives the MIDI sound scope of a track from MIDI input.
package midi

import (
	"fmt"
	"log/slog"
	"sync"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Scope is the part of a track the input needs.
	Scope interface {
		Start(scope gsq.SoundScope) []*gsq.RecallID
		Stop(ids []*gsq.RecallID, scope gsq.SoundScope)
	}

	// Input starts the MIDI scope of a track on the first held note and
	// stops it when the last held note is released. It is a gsq.Sequencer.
	Input struct {
		name    string
		track   Scope
		channel int // -1 for all channels
		logger  *slog.Logger

		mu   sync.Mutex
		held map[uint8]bool
		ids  []*gsq.RecallID
		stop func()
	}
)

var _ gsq.Sequencer = (*Input)(nil)

// NewInput creates an input for track. channel filters the MIDI channel
// (0-15); -1 accepts every channel.
func NewInput(name string, track Scope, channel int) *Input {
	return &Input{
		name:    name,
		track:   track,
		channel: channel,
		logger:  slog.Default().With("component", "midi", "input", name),
		held:    make(map[uint8]bool),
	}
}

func (in *Input) Name() string { return in.name }

// Held returns the number of keys currently held.
func (in *Input) Held() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.held)
}

// RecallIDs returns the ids of the running MIDI scope, nil when stopped.
func (in *Input) RecallIDs() []*gsq.RecallID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ids
}

// HandleMessage has the signature midi.ListenTo expects.
func (in *Input) HandleMessage(msg midi.Message, timestampms int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if in.accepts(ch) {
			in.noteOn(key)
		}
	case msg.GetNoteEnd(&ch, &key):
		if in.accepts(ch) {
			in.noteOff(key)
		}
	}
}

func (in *Input) accepts(ch uint8) bool {
	return in.channel < 0 || int(ch) == in.channel
}

func (in *Input) noteOn(key uint8) {
	in.mu.Lock()
	defer in.mu.Unlock()
	first := len(in.held) == 0
	in.held[key] = true
	if first {
		in.ids = in.track.Start(gsq.ScopeMIDI)
		in.logger.Debug("midi scope started", "key", key, "runs", len(in.ids))
	}
}

func (in *Input) noteOff(key uint8) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.held[key] {
		return
	}
	delete(in.held, key)
	if len(in.held) == 0 {
		in.track.Stop(in.ids, gsq.ScopeMIDI)
		in.logger.Debug("midi scope stopped", "key", key, "runs", len(in.ids))
		in.ids = nil
	}
}

// Listen opens port and feeds its messages to the input until Close.
func (in *Input) Listen(port drivers.In) error {
	if !port.IsOpen() {
		if err := port.Open(); err != nil {
			return fmt.Errorf("cannot open midi input %v: %w", port, err)
		}
	}
	stop, err := midi.ListenTo(port, in.HandleMessage)
	if err != nil {
		return fmt.Errorf("cannot listen to midi input %v: %w", port, err)
	}
	in.mu.Lock()
	in.stop = stop
	in.mu.Unlock()
	return nil
}

// Close stops listening and releases every held note.
func (in *Input) Close() {
	in.mu.Lock()
	stop := in.stop
	in.stop = nil
	ids := in.ids
	in.ids = nil
	clear(in.held)
	in.mu.Unlock()
	if stop != nil {
		stop()
	}
	if ids != nil {
		in.track.Stop(ids, gsq.ScopeMIDI)
	}
}
