package gsequencer_test

import (
	"testing"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/stretchr/testify/assert"
)

func TestRecyclingMixAndPeak(t *testing.T) {
	r := gsq.NewRecycling(4, 48000, gsq.FormatFloat32)
	assert.Equal(t, 4, r.BufferSize())
	assert.Equal(t, float32(0), r.Peak())

	r.Mix([]float32{0.25, -0.5, 0.125, 0.5, 9})
	r.Mix([]float32{0.25, -0.25})
	assert.Equal(t, []float32{0.5, -0.75, 0.125, 0.5}, r.Read(nil))
	assert.Equal(t, float32(0.75), r.Peak())

	r.Clear()
	assert.Equal(t, []float32{0, 0, 0, 0}, r.Read(nil))
}

func TestRecyclingSetBufferSize(t *testing.T) {
	r := gsq.NewRecycling(3, gsq.DefaultSamplerate, gsq.DefaultFormat)
	r.Mix([]float32{1, 2, 3})
	r.SetBufferSize(2)
	assert.Equal(t, []float32{1, 2}, r.Read(nil))
	r.SetBufferSize(3)
	assert.Equal(t, []float32{1, 2, 0}, r.Read(nil), "grown samples are zeroed")
	r.SetBufferSize(5)
	assert.Equal(t, []float32{1, 2, 0, 0, 0}, r.Read(nil))
	r.SetBufferSize(-1)
	assert.Equal(t, 0, r.BufferSize())
}

func TestRecyclingContextTree(t *testing.T) {
	a := gsq.NewRecycling(1, gsq.DefaultSamplerate, gsq.DefaultFormat)
	b := gsq.NewRecycling(1, gsq.DefaultSamplerate, gsq.DefaultFormat)
	root := gsq.NewRecyclingContext(nil, a)
	child := gsq.NewRecyclingContext(root, b)
	grandchild := gsq.NewRecyclingContext(child)

	assert.True(t, root.IsRoot())
	assert.False(t, child.IsRoot())
	assert.Equal(t, root, grandchild.Toplevel())
	assert.Equal(t, []*gsq.RecyclingContext{child}, root.Children())
	assert.Equal(t, 0, root.Find(a))
	assert.Equal(t, -1, root.Find(b))

	root.SetRecyclings([]*gsq.Recycling{b, a})
	assert.Equal(t, 1, root.Find(a))

	child.Detach()
	assert.True(t, child.IsRoot())
	assert.Empty(t, root.Children())
}
