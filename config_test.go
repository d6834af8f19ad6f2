package gsequencer_test

import (
	"testing"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
name: mixer
audio-channels: 2
output-pads: 1
input-pads: 4
flags: [output-has-recycling, async]
samplerate: 48000
recalls:
  - {name: meter, kind: peak, level: channel-run, scopes: [playback, midi]}
  - name: stop
    kind: counter
    level: channel-run
    line: 1
    params: {length: 4}
`

func TestParseConfig(t *testing.T) {
	c, err := gsq.ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	assert.Equal(t, "mixer", c.Name)
	assert.Equal(t, 2, c.AudioChannels)
	assert.Equal(t, 4, c.InputPads)
	assert.Equal(t, 48000, c.Samplerate)
	assert.Equal(t, gsq.DefaultBufferSize, c.BufferSize)
	assert.Equal(t, "float32", c.Format)
	assert.Equal(t, []string{"playback"}, c.Scopes)
	require.Len(t, c.Recalls, 2)
	assert.Equal(t, []string{"playback", "midi"}, c.Recalls[0].Scopes)
	require.NotNil(t, c.Recalls[1].Line)
	assert.Equal(t, 1, *c.Recalls[1].Line)
	assert.Equal(t, 4.0, c.Recalls[1].Params["length"])
}

func TestParseConfigDefaults(t *testing.T) {
	c, err := gsq.ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "track", c.Name)
	assert.Equal(t, gsq.DefaultSamplerate, c.Samplerate)
}

func TestParseConfigUnknownField(t *testing.T) {
	_, err := gsq.ParseConfig([]byte("name: x\nchannels: 2\n"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := gsq.ParseFormat("s16")
	require.NoError(t, err)
	assert.Equal(t, gsq.FormatSigned16, f)
	_, err = gsq.ParseFormat("u8")
	assert.Error(t, err)
}
