package midi_test

import (
	"testing"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/midi"
	"github.com/gsequencer/gsequencer-sub009/track"
	"github.com/stretchr/testify/assert"
	gomidi "gitlab.com/gomidi/midi/v2"
)

type fakeScope struct {
	starts, stops int
	ids           []*gsq.RecallID
}

func (f *fakeScope) Start(scope gsq.SoundScope) []*gsq.RecallID {
	f.starts++
	f.ids = []*gsq.RecallID{gsq.NewRecallID(scope, gsq.LevelChannel, gsq.NewRecyclingContext(nil))}
	return f.ids
}

func (f *fakeScope) Stop(ids []*gsq.RecallID, scope gsq.SoundScope) {
	f.stops++
}

func TestHeldNotes(t *testing.T) {
	f := &fakeScope{}
	in := midi.NewInput("keys", f, -1)
	assert.Equal(t, "keys", in.Name())

	in.HandleMessage(gomidi.NoteOn(0, 60, 100), 0)
	in.HandleMessage(gomidi.NoteOn(3, 64, 100), 0)
	assert.Equal(t, 1, f.starts)
	assert.Equal(t, 2, in.Held())
	assert.Equal(t, f.ids, in.RecallIDs())

	in.HandleMessage(gomidi.NoteOff(0, 60), 0)
	assert.Equal(t, 0, f.stops)
	in.HandleMessage(gomidi.NoteOff(0, 61), 0)
	assert.Equal(t, 0, f.stops, "releasing a key that is not held does nothing")
	// note on with zero velocity is a note off
	in.HandleMessage(gomidi.NoteOn(3, 64, 0), 0)
	assert.Equal(t, 1, f.stops)
	assert.Nil(t, in.RecallIDs())

	in.HandleMessage(gomidi.ControlChange(0, 7, 100), 0)
	assert.Equal(t, 1, f.starts)
}

func TestChannelFilter(t *testing.T) {
	f := &fakeScope{}
	in := midi.NewInput("keys", f, 2)
	in.HandleMessage(gomidi.NoteOn(1, 60, 100), 0)
	assert.Equal(t, 0, f.starts)
	in.HandleMessage(gomidi.NoteOn(2, 60, 100), 0)
	assert.Equal(t, 1, f.starts)
	in.Close()
	assert.Equal(t, 1, f.stops)
	assert.Equal(t, 0, in.Held())
}

func TestInputDrivesTrack(t *testing.T) {
	tr := track.New("synth", track.OutputHasRecycling)
	tr.SetAudioChannels(2)
	tr.SetPads(gsq.Output, 1)
	in := midi.NewInput("keys", tr, -1)
	tr.SetSequencer(in)
	assert.Equal(t, in, tr.Sequencer())

	in.HandleMessage(gomidi.NoteOn(0, 60, 100), 0)
	assert.Len(t, tr.CheckScope(gsq.ScopeMIDI), 4)
	assert.Empty(t, tr.CheckScope(gsq.ScopePlayback))
	in.HandleMessage(gomidi.NoteOff(0, 60), 0)
	assert.Empty(t, tr.CheckScope(gsq.ScopeMIDI))
}
