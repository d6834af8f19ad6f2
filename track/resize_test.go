package track_test

import (
	"testing"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkArena verifies that the channels of d are laid out pad-major with
// consistent neighbours.
func checkArena(t *testing.T, tr *track.Track, d gsq.Direction) {
	t.Helper()
	ac := tr.AudioChannels()
	chans := tr.Channels(d)
	require.Len(t, chans, tr.Pads(d)*ac, "%s lines", d)
	require.Equal(t, len(chans), tr.Lines(d))
	for i, c := range chans {
		pad, ch, line := c.Address()
		assert.Equal(t, i, line, "line of %v", c)
		assert.Equal(t, i/ac, pad, "pad of %v", c)
		assert.Equal(t, i%ac, ch, "audio channel of %v", c)
		assert.False(t, c.IsDisposed())
		if i > 0 {
			assert.Same(t, chans[i-1], c.Prev())
		} else {
			assert.Nil(t, c.Prev())
		}
		if i+1 < len(chans) {
			assert.Same(t, chans[i+1], c.Next())
		} else {
			assert.Nil(t, c.Next())
		}
		if i >= ac {
			assert.Same(t, chans[i-ac], c.PrevPad())
		} else {
			assert.Nil(t, c.PrevPad())
		}
		if i+ac < len(chans) {
			assert.Same(t, chans[i+ac], c.NextPad())
		} else {
			assert.Nil(t, c.NextPad())
		}
	}
}

func TestGrowAudioChannelsThenPads(t *testing.T) {
	tr := track.New("t", track.OutputHasRecycling)
	tr.SetPads(gsq.Output, 1)
	assert.Equal(t, 0, tr.Lines(gsq.Output), "no lines without audio channels")

	tr.SetAudioChannels(2)
	checkArena(t, tr, gsq.Output)
	first := tr.Channels(gsq.Output)
	require.Len(t, first, 2)

	tr.SetPads(gsq.Output, 2)
	checkArena(t, tr, gsq.Output)
	chans := tr.Channels(gsq.Output)
	assert.Same(t, first[0], chans[0], "existing channels are kept")
	assert.Same(t, first[1], chans[1])
	for _, c := range chans {
		assert.NotNil(t, c.OwnRecycling())
		assert.Equal(t, []*gsq.Recycling{c.OwnRecycling()}, c.Recyclings())
		assert.NotNil(t, c.Playback())
	}
	assert.Len(t, tr.Playback().Playbacks(), 4)
	assert.Equal(t, 0, tr.Lines(gsq.Input))
}

func TestPadsRoundTrip(t *testing.T) {
	tr := track.New("t", track.InputHasRecycling)
	tr.SetAudioChannels(3)
	var old []*track.Channel
	for _, n := range []int{4, 0, 4, 2, 5} {
		tr.SetPads(gsq.Input, n)
		checkArena(t, tr, gsq.Input)
		if n == 0 {
			for _, c := range old {
				assert.True(t, c.IsDisposed())
				assert.Nil(t, c.Recyclings())
			}
		}
		old = tr.Channels(gsq.Input)
	}
}

func TestAudioChannelsRenumber(t *testing.T) {
	tr := track.New("t", 0)
	tr.SetAudioChannels(1)
	tr.SetPads(gsq.Output, 3)
	before := tr.Channels(gsq.Output)
	tr.SetAudioChannels(2)
	checkArena(t, tr, gsq.Output)
	after := tr.Channels(gsq.Output)
	require.Len(t, after, 6)
	for pad, c := range before {
		assert.Same(t, c, after[pad*2], "channel of pad %d", pad)
	}
	tr.SetAudioChannels(1)
	checkArena(t, tr, gsq.Output)
	assert.True(t, after[1].IsDisposed())
	tr.SetAudioChannels(0)
	assert.Equal(t, 0, tr.Lines(gsq.Output))
	assert.Equal(t, 3, tr.Pads(gsq.Output), "pad counts survive zero audio channels")
}

func TestResizeIgnoresInvalid(t *testing.T) {
	tr := track.New("t", 0)
	tr.SetAudioChannels(2)
	tr.SetAudioChannels(-1)
	tr.SetPads(gsq.Output, -3)
	tr.SetPads(gsq.Direction(7), 2)
	assert.Equal(t, 2, tr.AudioChannels())
	assert.Equal(t, 0, tr.Pads(gsq.Output))
}

func TestSetBufferSizeResizesRecyclings(t *testing.T) {
	tr := track.New("t", track.OutputHasRecycling|track.InputHasRecycling)
	tr.SetAudioChannels(1)
	tr.SetPads(gsq.Output, 1)
	tr.SetPads(gsq.Input, 1)
	tr.SetBufferSize(128)
	tr.SetSamplerate(22050)
	for _, d := range []gsq.Direction{gsq.Output, gsq.Input} {
		r := tr.Channel(d, 0).OwnRecycling()
		assert.Equal(t, 128, r.BufferSize())
		assert.Equal(t, 22050, r.Samplerate())
	}
	tr.SetBufferSize(0)
	assert.Equal(t, 128, tr.BufferSize())
}

type soundcard struct{}

func (soundcard) Samplerate() int    { return 48000 }
func (soundcard) BufferSize() int    { return 256 }
func (soundcard) Format() gsq.Format { return gsq.FormatSigned16 }

func TestSetOutputSoundcard(t *testing.T) {
	tr := track.New("t", track.OutputHasRecycling)
	tr.SetAudioChannels(1)
	tr.SetPads(gsq.Output, 1)
	tr.SetOutputSoundcard(soundcard{})
	assert.Equal(t, 48000, tr.Samplerate())
	assert.Equal(t, 256, tr.BufferSize())
	assert.Equal(t, gsq.FormatSigned16, tr.Format())
	assert.Equal(t, gsq.FormatSigned16, tr.Channel(gsq.Output, 0).OwnRecycling().Format())
}
