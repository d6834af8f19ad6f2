package track

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
	"github.com/gsequencer/gsequencer-sub009/thread"
)

type (
	// Track owns two channel chains, the recall lists, the recall ids and
	// recycling contexts of its runs, and the per-scope staging state. All
	// methods are safe for concurrent use.
	Track struct {
		name      string
		flags     Flags
		seq       uint64
		logger    *slog.Logger
		bus       *message.Bus
		scheduler thread.Scheduler
		playback  *PlaybackDomain

		// mu guards everything below up to playMu, the channels and the
		// playbacks.
		mu              sync.Mutex
		audioChannels   int
		pads            [2]int
		channels        [2][]*Channel
		samplerate      int
		bufferSize      int
		format          gsq.Format
		outputSoundcard gsq.Soundcard
		inputSoundcard  gsq.Soundcard
		sequencer       gsq.Sequencer
		recallIDs       []*gsq.RecallID
		contexts        []*gsq.RecyclingContext
		runs            []*run
		staging         [gsq.NumScopes]gsq.StagingFlags
		completed       [gsq.NumScopes]gsq.StagingFlags
		notation        []*gsq.Notation
		automation      []*gsq.Automation
		waves           []*gsq.Wave
		midi            []*gsq.MIDI
		closed          bool

		playMu sync.Mutex
		play   []*gsq.Recall

		recallMu sync.Mutex
		recall   []*gsq.Recall

		dupMu      sync.Mutex
		duplicated map[dupKey]*gsq.Recall
	}

	// Option configures a Track in New.
	Option func(*Track)

	dupKey struct {
		template *gsq.Recall
		context  *gsq.RecyclingContext
	}
)

var trackSeq atomic.Uint64

// WithLogger makes the track log to l instead of slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Track) { t.logger = l }
}

// WithBus makes the track publish its notifications on b.
func WithBus(b *message.Bus) Option {
	return func(t *Track) { t.bus = b }
}

// WithScheduler attaches the track to a scheduler: the track creates one
// worker per sound scope under the scheduler's root.
func WithScheduler(s thread.Scheduler) Option {
	return func(t *Track) { t.scheduler = s }
}

// WithSoundcard makes s the output soundcard from the start.
func WithSoundcard(s gsq.Soundcard) Option {
	return func(t *Track) {
		t.outputSoundcard = s
		t.samplerate, t.bufferSize, t.format = s.Samplerate(), s.BufferSize(), s.Format()
	}
}

// New creates an empty track: no audio channels and no pads.
func New(name string, flags Flags, opts ...Option) *Track {
	t := &Track{
		name:       name,
		flags:      flags,
		seq:        trackSeq.Add(1),
		samplerate: gsq.DefaultSamplerate,
		bufferSize: gsq.DefaultBufferSize,
		format:     gsq.DefaultFormat,
		duplicated: make(map[dupKey]*gsq.Recall),
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "track", "track", name)
	t.playback = newPlaybackDomain(t)
	return t
}

func (t *Track) Name() string                { return t.name }
func (t *Track) Flags() Flags                { return t.flags }
func (t *Track) Logger() *slog.Logger        { return t.logger }
func (t *Track) Bus() *message.Bus           { return t.bus }
func (t *Track) Scheduler() thread.Scheduler { return t.scheduler }
func (t *Track) Playback() *PlaybackDomain   { return t.playback }

func (t *Track) String() string { return t.name }

func (t *Track) AudioChannels() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.audioChannels
}

// Pads returns the pad count of direction d.
func (t *Track) Pads(d gsq.Direction) int {
	if !d.Valid() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pads[d]
}

// Lines returns the channel count of direction d, always
// Pads(d)*AudioChannels().
func (t *Track) Lines(d gsq.Direction) int {
	if !d.Valid() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels[d])
}

func (t *Track) Samplerate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samplerate
}

func (t *Track) BufferSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bufferSize
}

func (t *Track) Format() gsq.Format {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format
}

func (t *Track) OutputSoundcard() gsq.Soundcard {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputSoundcard
}

func (t *Track) InputSoundcard() gsq.Soundcard {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputSoundcard
}

func (t *Track) Sequencer() gsq.Sequencer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sequencer
}

// SetSamplerate updates the track and every recycling it owns.
func (t *Track) SetSamplerate(samplerate int) {
	if samplerate <= 0 {
		t.logger.Warn("ignoring invalid samplerate", "samplerate", samplerate)
		return
	}
	t.mu.Lock()
	old := t.samplerate
	t.samplerate = samplerate
	t.eachOwnedRecyclingLocked(func(r *gsq.Recycling) { r.SetSamplerate(samplerate) })
	t.mu.Unlock()
	if old != samplerate {
		t.bus.Publish(message.KeySetSamplerate, t.name, "old", old, "new", samplerate)
	}
}

// SetBufferSize resizes every recycling the track owns.
func (t *Track) SetBufferSize(n int) {
	if n <= 0 {
		t.logger.Warn("ignoring invalid buffer size", "buffer-size", n)
		return
	}
	t.mu.Lock()
	old := t.bufferSize
	t.bufferSize = n
	t.eachOwnedRecyclingLocked(func(r *gsq.Recycling) { r.SetBufferSize(n) })
	t.mu.Unlock()
	if old != n {
		t.bus.Publish(message.KeySetBufferSize, t.name, "old", old, "new", n)
	}
}

func (t *Track) SetFormat(f gsq.Format) {
	t.mu.Lock()
	old := t.format
	t.format = f
	t.eachOwnedRecyclingLocked(func(r *gsq.Recycling) { r.SetFormat(f) })
	t.mu.Unlock()
	if old != f {
		t.bus.Publish(message.KeySetFormat, t.name, "old", old.String(), "new", f.String())
	}
}

// SetOutputSoundcard attaches the output soundcard and adopts its
// samplerate, buffer size and format.
func (t *Track) SetOutputSoundcard(s gsq.Soundcard) {
	t.mu.Lock()
	t.outputSoundcard = s
	t.mu.Unlock()
	if s != nil {
		t.SetSamplerate(s.Samplerate())
		t.SetBufferSize(s.BufferSize())
		t.SetFormat(s.Format())
	}
	t.bus.Publish(message.KeySetOutputSoundcard, t.name, "attached", s != nil)
}

func (t *Track) SetInputSoundcard(s gsq.Soundcard) {
	t.mu.Lock()
	t.inputSoundcard = s
	t.mu.Unlock()
	t.bus.Publish(message.KeySetInputSoundcard, t.name, "attached", s != nil)
}

func (t *Track) SetSequencer(s gsq.Sequencer) {
	t.mu.Lock()
	t.sequencer = s
	t.mu.Unlock()
	name := ""
	if s != nil {
		name = s.Name()
	}
	t.bus.Publish(message.KeySetSequencer, t.name, "sequencer", name)
}

// StagingFlags returns the stages run for scope since the last reset.
func (t *Track) StagingFlags(scope gsq.SoundScope) gsq.StagingFlags {
	if !scope.Valid() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.staging[scope]
}

// StagingCompleted returns the stages that have finished for every run of
// scope since the last reset.
func (t *Track) StagingCompleted(scope gsq.SoundScope) gsq.StagingFlags {
	if !scope.Valid() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed[scope]
}

func (t *Track) markStaging(scope gsq.SoundScope, flags gsq.StagingFlags) {
	if !scope.Valid() {
		return
	}
	t.mu.Lock()
	t.staging[scope] |= flags
	t.mu.Unlock()
}

func (t *Track) markCompleted(scope gsq.SoundScope, flags gsq.StagingFlags) {
	t.mu.Lock()
	t.completed[scope] |= flags
	t.mu.Unlock()
}

func (t *Track) resetStaging(scope gsq.SoundScope) {
	t.mu.Lock()
	t.staging[scope] = 0
	t.completed[scope] = 0
	t.mu.Unlock()
}

// IsPlaying returns true while any output is bound in the playback,
// sequencer or notation scope.
func (t *Track) IsPlaying() bool {
	for _, pb := range t.playback.Playbacks() {
		for _, s := range []gsq.SoundScope{gsq.ScopePlayback, gsq.ScopeSequencer, gsq.ScopeNotation} {
			if pb.RecallID(s) != nil {
				return true
			}
		}
	}
	return false
}

// Close stops every run, disposes all channels and detaches the track's
// workers from the scheduler. The track must not be used afterwards.
func (t *Track) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	t.Stop(t.CheckScope(gsq.AllScopes), gsq.AllScopes)
	t.SetAudioChannels(0)
	t.playback.detach()
}

func (t *Track) eachOwnedRecyclingLocked(f func(*gsq.Recycling)) {
	for _, chans := range t.channels {
		for _, c := range chans {
			if c.owned != nil {
				f(c.owned)
			}
		}
	}
}

func (t *Track) describe(c *Channel) string {
	return fmt.Sprintf("%s/%s/%d", t.name, c.direction, c.line)
}
