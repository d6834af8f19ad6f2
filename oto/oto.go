// Package oto plays the mixdown of a track through the system audio device.
package oto

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	gsq "github.com/gsequencer/gsequencer-sub009"
)

type (
	// Context is an output soundcard backed by an oto context. Only one can
	// exist per process.
	Context struct {
		ctx        *oto.Context
		samplerate int
		channels   int
		bufferSize int
	}

	// Output feeds the interleaved buffers written to it to an oto player.
	Output struct {
		player    *oto.Player
		writer    *io.PipeWriter
		tmpBuffer []byte
	}
)

var _ gsq.AudioContext = (*Context)(nil)

// NewContext opens the default audio device. bufferSize is in frames and
// sets the device latency.
func NewContext(samplerate, channels, bufferSize int) (*Context, error) {
	if channels < 1 {
		return nil, fmt.Errorf("cannot create oto context with %d channels", channels)
	}
	op := &oto.NewContextOptions{
		SampleRate:   samplerate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(samplerate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, samplerate: samplerate, channels: channels, bufferSize: bufferSize}, nil
}

func (c *Context) Samplerate() int    { return c.samplerate }
func (c *Context) BufferSize() int    { return c.bufferSize }
func (c *Context) Format() gsq.Format { return gsq.FormatSigned16 }
func (c *Context) Channels() int      { return c.channels }

// Output starts a new player on the context.
func (c *Context) Output() gsq.AudioSink {
	r, w := io.Pipe()
	player := c.ctx.NewPlayer(r)
	player.Play()
	return &Output{player: player, writer: w}
}

// Close suspends the device. oto contexts cannot be disposed.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// WriteAudio blocks until the player has consumed the buffer.
func (o *Output) WriteAudio(floatBuffer []float32) error {
	// reuse the capacity of tmpBuffer between writes
	o.tmpBuffer = FloatBufferTo16BitLE(floatBuffer, o.tmpBuffer[:0])
	if _, err := o.writer.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	err := o.writer.Close()
	if perr := o.player.Close(); perr != nil {
		err = errors.Join(err, perr)
	}
	if err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
