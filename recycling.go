package gsequencer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/viterin/vek/vek32"
)

// Recycling is the unit of buffer ownership. A leaf channel owns one
// recycling; channels without their own recycling borrow the recyclings of
// the channels they are wired to. Recyclings are shared handles: the same
// *Recycling can be reachable from several channels and several recycling
// contexts at once, and stays alive as long as any of them refers to it.
type Recycling struct {
	id uuid.UUID

	mu         sync.Mutex
	buffer     []float32
	samplerate int
	format     Format
}

// NewRecycling allocates a recycling with a zeroed buffer of bufferSize
// samples.
func NewRecycling(bufferSize, samplerate int, format Format) *Recycling {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Recycling{
		id:         uuid.New(),
		buffer:     make([]float32, bufferSize),
		samplerate: samplerate,
		format:     format,
	}
}

func (r *Recycling) ID() uuid.UUID { return r.id }

func (r *Recycling) BufferSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func (r *Recycling) Samplerate() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samplerate
}

func (r *Recycling) Format() Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

func (r *Recycling) SetSamplerate(samplerate int) {
	r.mu.Lock()
	r.samplerate = samplerate
	r.mu.Unlock()
}

func (r *Recycling) SetFormat(format Format) {
	r.mu.Lock()
	r.format = format
	r.mu.Unlock()
}

// SetBufferSize resizes the buffer, keeping as many samples as fit and
// zeroing the rest.
func (r *Recycling) SetBufferSize(n int) {
	if n < 0 {
		n = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == len(r.buffer) {
		return
	}
	if n <= cap(r.buffer) {
		old := len(r.buffer)
		r.buffer = r.buffer[:n]
		if n > old {
			vek32.Zeros_Into(r.buffer[old:], n-old)
		}
		return
	}
	buf := make([]float32, n)
	copy(buf, r.buffer)
	r.buffer = buf
}

// Clear zeroes the buffer.
func (r *Recycling) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	vek32.Zeros_Into(r.buffer, len(r.buffer))
}

// Mix adds src to the buffer, sample by sample. Extra samples on either side
// are ignored.
func (r *Recycling) Mix(src []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := min(len(src), len(r.buffer))
	if n == 0 {
		return
	}
	vek32.Add_Inplace(r.buffer[:n], src[:n])
}

// Process calls f with the buffer while holding the recycling lock. f must
// not retain the slice.
func (r *Recycling) Process(f func(buffer []float32)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(r.buffer)
}

// Read copies the buffer into dst, growing it if needed, and returns it.
func (r *Recycling) Read(dst []float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(dst[:0], r.buffer...)
}

// Peak returns the largest absolute sample value of the buffer.
func (r *Recycling) Peak() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffer) == 0 {
		return 0
	}
	tmp := make([]float32, len(r.buffer))
	return vek32.Max(vek32.Abs_Into(tmp, r.buffer))
}
