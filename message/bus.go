// Package message carries notifications about structural and lifecycle
// changes of tracks to whoever is interested, e.g. a GUI or a logger.
package message

import (
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Bus is a many-to-one notification channel. Tracks publish Envelopes
	// with Publish, which never blocks: if the observer falls behind and the
	// buffer is full, the envelope is dropped and counted in Dropped. Audio
	// threads publish too, so they must never wait for a slow observer.
	//
	// For closing the observer goroutine, the bus has two channels:
	// CloseObserver and FinishedObserver. CloseObserver has a capacity of 1,
	// so an empty message can always be sent to it without blocking; if it
	// is already full, someone else has already requested the closure and
	// dropping the message is fine. FinishedObserver is closed by the
	// observer goroutine once it has returned. Wait for it with a timeout to
	// avoid deadlocks:
	//
	//	select {
	//	  case <-bus.FinishedObserver:
	//	  case <-time.After(3 * time.Second):
	//	}
	Bus struct {
		Events chan Envelope

		CloseObserver    chan struct{}
		FinishedObserver chan struct{}

		dropped  atomic.Uint64
		observed atomic.Bool
		pool     sync.Pool
	}

	// Envelope is a single notification. Values holds the key specific
	// payload, e.g. "old" and "new" for set-audio-channels.
	Envelope struct {
		Key    Key
		Sender string
		Values Values
	}

	Values map[string]any

	Key string
)

const (
	KeySetAudioChannels   Key = "set-audio-channels"
	KeySetPads            Key = "set-pads"
	KeySetSamplerate      Key = "set-samplerate"
	KeySetBufferSize      Key = "set-buffer-size"
	KeySetFormat          Key = "set-format"
	KeySetOutputSoundcard Key = "set-output-soundcard"
	KeySetInputSoundcard  Key = "set-input-soundcard"
	KeySetSequencer       Key = "set-sequencer"
	KeyStart              Key = "start"
	KeyStop               Key = "stop"
	KeyDuplicate          Key = "duplicate"
	KeyDone               Key = "done"
	KeyCancel             Key = "cancel"
	KeyCleanup            Key = "cleanup"
	KeyLink               Key = "link"
	KeyUnlink             Key = "unlink"
)

const busCapacity = 1024

func NewBus() *Bus {
	return &Bus{
		Events:           make(chan Envelope, busCapacity),
		CloseObserver:    make(chan struct{}, 1),
		FinishedObserver: make(chan struct{}),
		pool:             sync.Pool{New: func() any { return make(Values, 4) }},
	}
}

// Publish sends an envelope without blocking. A nil bus discards
// everything, so publishers don't need to check whether a bus is attached.
func (b *Bus) Publish(key Key, sender string, kv ...any) bool {
	if b == nil {
		return false
	}
	values := b.pool.Get().(Values)
	clear(values)
	for i := 0; i+1 < len(kv); i += 2 {
		if name, ok := kv[i].(string); ok {
			values[name] = kv[i+1]
		}
	}
	if !TrySend(b.Events, Envelope{Key: key, Sender: sender, Values: values}) {
		b.pool.Put(values)
		b.dropped.Add(1)
		return false
	}
	return true
}

// Release gives the values map of a received envelope back to the bus.
// Calling it is optional; the envelope must not be used afterwards.
func (b *Bus) Release(e Envelope) {
	if b == nil || e.Values == nil {
		return
	}
	b.pool.Put(e.Values)
}

// Dropped returns how many envelopes Publish has discarded.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Observe starts the observer goroutine, which calls f for each envelope
// until CloseObserver receives. Only the first call starts a goroutine.
func (b *Bus) Observe(f func(Envelope)) {
	if !b.observed.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(b.FinishedObserver)
		for {
			select {
			case e := <-b.Events:
				f(e)
				b.Release(e)
			case <-b.CloseObserver:
				return
			}
		}
	}()
}

// Close asks the observer goroutine to return and waits at most timeout for
// it. It returns false on timeout.
func (b *Bus) Close(timeout time.Duration) bool {
	if !b.observed.Load() {
		return true
	}
	TrySend(b.CloseObserver, struct{}{})
	select {
	case <-b.FinishedObserver:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Int returns an integer value of the envelope.
func (v Values) Int(name string) (int, bool) {
	i, ok := v[name].(int)
	return i, ok
}

func (v Values) String(name string) (string, bool) {
	s, ok := v[name].(string)
	return s, ok
}

// TrySend is a helper function to send a value to a channel if it is not
// full. It is guaranteed to be non-blocking. Return true if the value was
// sent, false otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received
// from a channel, or timing out after t. ok will be false if the timeout
// occurred or if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
