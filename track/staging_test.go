package track_test

import (
	"slices"
	"sync/atomic"
	"testing"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
	"github.com/gsequencer/gsequencer-sub009/recall"
	"github.com/gsequencer/gsequencer-sub009/thread"
	"github.com/gsequencer/gsequencer-sub009/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pulses counts what the run copies of one template do. Copies share the
// counters of their template.
type pulses struct {
	gsq.NopProcessor
	copies, inits, runs, cancels *atomic.Int32
}

func newPulses() *pulses {
	return &pulses{copies: new(atomic.Int32), inits: new(atomic.Int32), runs: new(atomic.Int32), cancels: new(atomic.Int32)}
}

func (p *pulses) Duplicate() gsq.Processor {
	p.copies.Add(1)
	return p
}

func (p *pulses) RunInit(_ *gsq.Recall, stage gsq.StagingFlags) {
	if stage == gsq.StageRunInitPost {
		p.inits.Add(1)
	}
}

func (p *pulses) Run(_ *gsq.Recall, stage gsq.StagingFlags) {
	if stage == gsq.StageRunPost {
		p.runs.Add(1)
	}
}

func (p *pulses) Cancel(*gsq.Recall) { p.cancels.Add(1) }

func channelTemplate(p *pulses) *gsq.Recall {
	return gsq.NewRecall("pulses", gsq.LevelChannelRun, gsq.AbilityAll, p)
}

func TestStartOnGrownTrack(t *testing.T) {
	tr := track.New("t", track.OutputHasRecycling)
	tr.SetPads(gsq.Output, 1)
	tr.SetAudioChannels(2)
	tr.SetPads(gsq.Output, 2)
	ids := tr.Start(gsq.ScopePlayback)
	require.Len(t, ids, 4)
	for i, id := range ids {
		assert.Equal(t, gsq.ScopePlayback, id.Scope())
		assert.Equal(t, gsq.LevelChannel, id.Level())
		assert.True(t, id.RecyclingContext().IsRoot())
		c := tr.Channel(gsq.Output, i)
		assert.Equal(t, []*gsq.RecallID{id}, c.RecallIDs())
		assert.Equal(t, c.Recyclings(), id.RecyclingContext().Recyclings())
		assert.NotNil(t, c.Playback().RecallID(gsq.ScopePlayback))
	}
	assert.Len(t, tr.CheckScope(gsq.ScopePlayback), 8, "an audio and a channel id per run")
	assert.Empty(t, tr.CheckScope(gsq.ScopeMIDI))
	assert.True(t, tr.IsPlaying())

	again := tr.Start(gsq.ScopePlayback)
	assert.Equal(t, ids, again, "Start reuses the runs of a scope")
	assert.Len(t, tr.CheckScope(gsq.ScopePlayback), 8)
}

func TestStartAllScopes(t *testing.T) {
	tr := newTrack("t", track.OutputHasRecycling, 2, 1, 0)
	ids := tr.Start(gsq.AllScopes)
	require.Len(t, ids, 2*gsq.NumScopes)
	for i, s := range gsq.AllScopes.Expand() {
		assert.Equal(t, s, ids[2*i].Scope())
		assert.Equal(t, s, ids[2*i+1].Scope())
	}
	assert.Len(t, tr.CheckScope(gsq.AllScopes), 4*gsq.NumScopes)

	tr.Stop(ids, gsq.ScopeWave)
	assert.Empty(t, tr.CheckScope(gsq.ScopeWave))
	assert.Len(t, tr.CheckScope(gsq.AllScopes), 4*(gsq.NumScopes-1))
	tr.Stop(ids, gsq.AllScopes)
	assert.Empty(t, tr.RecallIDs())
	assert.Empty(t, tr.RecyclingContexts())
}

func TestStartInvalidScope(t *testing.T) {
	tr := newTrack("t", 0, 1, 1, 0)
	assert.Empty(t, tr.Start(gsq.SoundScope(gsq.NumScopes)))
	assert.Empty(t, tr.CheckScope(gsq.AllScopes))
}

func TestStartDefaultsToInput(t *testing.T) {
	tr := newTrack("t", track.DefaultsToInput|track.InputHasRecycling, 1, 2, 3)
	ids := tr.Start(gsq.ScopeNotation)
	assert.Len(t, ids, 3)
	assert.Empty(t, tr.Channel(gsq.Output, 0).RecallIDs())
	assert.Len(t, tr.Channel(gsq.Input, 2).RecallIDs(), 1)
}

func TestStopRemovesEverything(t *testing.T) {
	p := newPulses()
	template := channelTemplate(p)
	tr := newTrack("t", track.OutputHasRecycling, 2, 1, 0)
	tr.AddTemplate(template)
	ids := tr.Start(gsq.ScopePlayback)
	require.Len(t, tr.Recalls(true), 3)

	tr.Stop(ids, gsq.ScopePlayback)
	assert.Empty(t, tr.CheckScope(gsq.ScopePlayback))
	assert.Empty(t, tr.RecallIDs())
	for _, c := range tr.Channels(gsq.Output) {
		assert.Empty(t, c.RecallIDs())
		assert.Nil(t, c.Playback().RecallID(gsq.ScopePlayback))
	}
	assert.Equal(t, []*gsq.Recall{template}, tr.Recalls(true))
	assert.False(t, tr.IsPlaying())
	assert.Equal(t, int32(2), p.cancels.Load())
	for _, id := range ids {
		assert.True(t, id.HasState(gsq.StateTerminating))
	}

	// stopping again, or in another scope, does nothing
	tr.Stop(ids, gsq.ScopePlayback)
	restarted := tr.Start(gsq.ScopePlayback)
	tr.Stop(restarted, gsq.ScopeSequencer)
	assert.Len(t, tr.CheckScope(gsq.ScopePlayback), 4)
}

func TestCheckScopeOrder(t *testing.T) {
	tr := newTrack("t", 0, 1, 2, 0)
	seq := tr.Start(gsq.ScopeSequencer)
	play := tr.Start(gsq.ScopePlayback)
	all := tr.CheckScope(gsq.AllScopes)
	require.Len(t, all, 8)
	assert.Equal(t, seq[0], all[1])
	assert.Equal(t, play[1], all[7])
	assert.Equal(t, all, tr.CheckScope(gsq.AllScopes))
	assert.Equal(t, all[4:], tr.CheckScope(gsq.ScopePlayback))
}

func TestDuplicateOncePerContext(t *testing.T) {
	p := newPulses()
	template := channelTemplate(p)
	audio := gsq.NewRecall("audio", gsq.LevelAudioRun, gsq.AbilityPlayback, newPulses())
	shared := gsq.NewRecall("shared", gsq.LevelChannel, gsq.AbilityAll, newPulses())
	tr := newTrack("t", track.OutputHasRecycling, 2, 2, 0)
	tr.AddTemplate(template)
	tr.AddTemplate(audio)
	tr.AddTemplate(shared)

	tr.Start(gsq.ScopePlayback)
	tr.Start(gsq.ScopePlayback)
	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.InitStages)
	assert.Equal(t, int32(4), p.copies.Load(), "one copy per run")
	assert.Equal(t, int32(4), p.inits.Load(), "init stages run once")
	assert.Len(t, tr.Recalls(true), 3+4+4)

	tr.Start(gsq.ScopeMIDI)
	assert.Len(t, tr.Recalls(true), 3+4+4+4, "audio-run template lacks the midi ability")

	ctx := gsq.NewRecyclingContext(nil)
	id := gsq.NewRecallID(gsq.ScopePlayback, gsq.LevelChannel, ctx)
	assert.Len(t, tr.Duplicate(id, 0, 0, 0), 1)
	assert.Empty(t, tr.Duplicate(id, 0, 0, 0))
	assert.Nil(t, tr.DuplicateTemplate(template, id, 0, 0, 0))

	id.SetState(gsq.StateActive)
	other := gsq.NewRecallID(gsq.ScopePlayback, gsq.LevelChannel, gsq.NewRecyclingContext(nil))
	other.SetState(gsq.StateWaiting)
	assert.Empty(t, tr.Duplicate(other, 0, 0, 0), "busy ids are not duplicated for")
}

func TestDuplicateAddressedTemplate(t *testing.T) {
	p := newPulses()
	template := channelTemplate(p).SetAddress(gsq.AnyLine, gsq.AnyLine, 1)
	tr := newTrack("t", track.OutputHasRecycling, 1, 3, 0)
	tr.AddTemplate(template)
	tr.Start(gsq.ScopePlayback)
	assert.Equal(t, int32(1), p.copies.Load())
	copies := slices.DeleteFunc(tr.Recalls(true), func(r *gsq.Recall) bool { return r.IsTemplate() })
	require.Len(t, copies, 1)
	assert.Equal(t, 1, copies[0].Line())
}

func TestCounterFinishesRun(t *testing.T) {
	counter, err := recall.New(gsq.RecallConfig{Name: "c", Kind: "counter", Level: "channel-run", Params: map[string]float64{"length": 2}})
	require.NoError(t, err)
	bus := message.NewBus()
	tr := newTrack("t", track.OutputHasRecycling, 1, 1, 0, track.WithBus(bus))
	tr.AddTemplate(counter)
	ids := tr.Start(gsq.ScopePlayback)
	require.Len(t, ids, 1)
	assert.True(t, ids[0].HasState(gsq.StateWaiting), "ids wait without a scheduler")

	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.False(t, tr.IsDone(ids[0]))
	assert.False(t, tr.StagingFlags(gsq.ScopePlayback).Has(gsq.StageDone))
	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.True(t, tr.IsDone(ids[0]))
	assert.True(t, tr.StagingFlags(gsq.ScopePlayback).Has(gsq.StageDone))
	assert.True(t, tr.StagingCompleted(gsq.ScopePlayback).Has(gsq.InitStages|gsq.RunStages))

	var keys []message.Key
	for len(bus.Events) > 0 {
		keys = append(keys, (<-bus.Events).Key)
	}
	assert.Contains(t, keys, message.KeyDone)
	assert.Contains(t, keys, message.KeyStart)

	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.StageReset)
	assert.Equal(t, gsq.StagingFlags(0), tr.StagingFlags(gsq.ScopePlayback))
}

func TestPersistentRecallIgnoresDone(t *testing.T) {
	p := newPulses()
	template := channelTemplate(p).SetFlags(gsq.RecallPersistent)
	tr := newTrack("t", track.OutputHasRecycling, 1, 1, 0)
	tr.AddTemplate(template)
	ids := tr.Start(gsq.ScopePlayback)
	tr.Done(ids[0])
	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.False(t, tr.IsDone(ids[0]))
	assert.Equal(t, int32(1), p.runs.Load())

	tr.Cancel(ids[0])
	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.Equal(t, int32(1), p.runs.Load(), "cancelled recalls do not play")
	assert.Equal(t, int32(1), p.cancels.Load())
}

func TestNestedRunsOnUpstreamTrack(t *testing.T) {
	p := newPulses()
	src := newTrack("src", track.OutputHasRecycling, 1, 1, 0)
	src.AddTemplate(channelTemplate(p))
	mixer := newTrack("mixer", track.Async|track.OutputHasRecycling, 1, 1, 1)
	require.NoError(t, track.Link(src.Channel(gsq.Output, 0), mixer.Channel(gsq.Input, 0)))

	ids := mixer.Start(gsq.ScopePlayback)
	require.Len(t, ids, 1)
	nested := src.CheckScope(gsq.ScopePlayback)
	require.Len(t, nested, 2)
	ctx := nested[0].RecyclingContext()
	assert.Same(t, ids[0].RecyclingContext(), ctx.Parent())
	assert.Equal(t, src.Channel(gsq.Output, 0).Recyclings(), ctx.Recyclings())
	assert.Nil(t, src.Playback().Playbacks()[0].RecallID(gsq.ScopePlayback), "nested runs do not bind playbacks")

	copies := slices.DeleteFunc(src.Recalls(false), func(r *gsq.Recall) bool { return r.IsTemplate() })
	require.Len(t, copies, 1, "nested runs take copies from the recall list")
	assert.Len(t, src.Recalls(true), 1)
	assert.Equal(t, int32(1), p.inits.Load())

	mixer.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	mixer.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.Equal(t, int32(2), p.runs.Load())

	mixer.Stop(ids, gsq.ScopePlayback)
	assert.Empty(t, src.CheckScope(gsq.AllScopes))
	assert.Len(t, src.Recalls(false), 1)
	assert.Empty(t, ids[0].RecyclingContext().Children())
}

func TestUnlinkStopsNestedRun(t *testing.T) {
	src := newTrack("src", track.OutputHasRecycling, 1, 1, 0)
	mixer := newTrack("mixer", track.Async, 1, 1, 1)
	require.NoError(t, track.Link(src.Channel(gsq.Output, 0), mixer.Channel(gsq.Input, 0)))
	mixer.Start(gsq.ScopePlayback)
	require.Len(t, src.CheckScope(gsq.ScopePlayback), 2)

	require.NoError(t, track.Unlink(mixer.Channel(gsq.Input, 0)))
	mixer.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.Empty(t, src.CheckScope(gsq.ScopePlayback))
}

func TestStopNestedRecallIDs(t *testing.T) {
	p := newPulses()
	src := newTrack("src", track.OutputHasRecycling, 1, 1, 0)
	src.AddTemplate(channelTemplate(p))
	mixer := newTrack("mixer", track.Async|track.OutputHasRecycling, 1, 1, 1)
	require.NoError(t, track.Link(src.Channel(gsq.Output, 0), mixer.Channel(gsq.Input, 0)))
	ids := mixer.Start(gsq.ScopePlayback)
	nested := src.CheckScope(gsq.ScopePlayback)
	require.Len(t, nested, 2)

	src.Stop(nested, gsq.ScopePlayback)
	assert.Empty(t, src.CheckScope(gsq.AllScopes))
	assert.Empty(t, src.RecyclingContexts())
	assert.Empty(t, src.Channel(gsq.Output, 0).RecallIDs())
	for _, id := range nested {
		assert.True(t, id.HasState(gsq.StateTerminating), "%v", id)
	}
	assert.Equal(t, int32(1), p.cancels.Load())
	assert.Len(t, src.Recalls(false), 1, "only the template is left")
	assert.Empty(t, ids[0].RecyclingContext().Children())
	assert.Len(t, mixer.CheckScope(gsq.ScopePlayback), 2, "the downstream run keeps going")

	// the next pulse reaches upstream again
	mixer.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	renewed := src.CheckScope(gsq.ScopePlayback)
	require.Len(t, renewed, 2)
	assert.NotSame(t, nested[0], renewed[0])
	mixer.Stop(ids, gsq.ScopePlayback)
	assert.Empty(t, src.CheckScope(gsq.AllScopes))
}

func TestResizeStopsRuns(t *testing.T) {
	tr := newTrack("t", track.OutputHasRecycling, 1, 3, 0)
	ids := tr.Start(gsq.ScopePlayback)
	tr.SetPads(gsq.Output, 1)
	assert.Equal(t, []*gsq.RecallID{ids[0]}, tr.CheckScope(gsq.ScopePlayback)[1:])
	assert.True(t, ids[2].HasState(gsq.StateTerminating))
	assert.Len(t, tr.RecyclingContexts(), 1)
}

func TestSchedulerTicksRuns(t *testing.T) {
	for _, super := range []bool{false, true} {
		flags := track.OutputHasRecycling
		if super {
			flags |= track.SuperThreaded
		}
		loop := thread.NewLoop(2)
		p := newPulses()
		tr := newTrack("t", flags, 2, 1, 0, track.WithScheduler(loop))
		tr.AddTemplate(channelTemplate(p))
		var idle []any
		loop.OnIdle(func(owner any) { idle = append(idle, owner) })

		ids := tr.Start(gsq.ScopePlayback)
		for _, id := range ids {
			assert.True(t, id.HasState(gsq.StateActive))
		}
		assert.True(t, tr.Playback().Worker(gsq.ScopePlayback).IsProcessing())
		assert.False(t, tr.Playback().Worker(gsq.ScopeMIDI).IsProcessing())
		for _, pb := range tr.Playback().Playbacks() {
			assert.Equal(t, super, pb.Worker(gsq.ScopePlayback) != nil)
		}
		loop.Step()
		loop.Step()
		assert.Equal(t, int32(4), p.runs.Load(), "super-threaded %v", super)

		tr.Stop(ids, gsq.ScopePlayback)
		assert.False(t, tr.Playback().Worker(gsq.ScopePlayback).IsProcessing())
		assert.Equal(t, []any{tr}, idle)
		loop.Step()
		assert.Equal(t, int32(4), p.runs.Load())

		tr.Close()
		assert.Empty(t, loop.Children(loop.Root()))
		loop.Close()
	}
}

// automator counts Automate calls and how many of them saw StageAutomate set
// on the recall.
type automator struct {
	gsq.NopProcessor
	pulses, flagged atomic.Int32
}

func (a *automator) Duplicate() gsq.Processor { return a }

func (a *automator) Automate(r *gsq.Recall) {
	a.pulses.Add(1)
	if r.Staging().Has(gsq.StageAutomate) {
		a.flagged.Add(1)
	}
}

func TestPlayPulsesAutomate(t *testing.T) {
	shared, midiOnly, perRun := &automator{}, &automator{}, &automator{}
	audio := gsq.NewRecall("automation", gsq.LevelAudio, gsq.AbilityPlayback, shared)
	tr := newTrack("t", track.OutputHasRecycling, 1, 2, 0)
	tr.AddTemplate(audio)
	tr.AddTemplate(gsq.NewRecall("midi-automation", gsq.LevelAudio, gsq.AbilityMIDI, midiOnly))
	tr.AddTemplate(gsq.NewRecall("channel", gsq.LevelChannelRun, gsq.AbilityAll, perRun))
	ids := tr.Start(gsq.ScopePlayback)
	require.Len(t, ids, 2)
	assert.Zero(t, shared.pulses.Load(), "init stages do not automate")

	tr.RecursiveRunStage(gsq.ScopePlayback, gsq.RunStages)
	assert.Equal(t, int32(2), shared.pulses.Load(), "one pulse per run")
	assert.Equal(t, shared.pulses.Load(), shared.flagged.Load(), "automate is set while the processor runs")
	assert.Equal(t, "none", audio.Staging().String())
	assert.Zero(t, midiOnly.pulses.Load(), "templates without the scope's ability are skipped")
	assert.Zero(t, perRun.pulses.Load(), "channel-run copies are never automated")
	for _, r := range tr.Recalls(true) {
		assert.False(t, r.Staging().Any(gsq.StageAutomate), "%v", r)
	}

	tr.Play(ids[0], gsq.StageRunPost)
	assert.Equal(t, int32(2), shared.pulses.Load())
	tr.Play(ids[0], gsq.StageAutomate)
	assert.Equal(t, int32(3), shared.pulses.Load())
	assert.Equal(t, int32(3), shared.flagged.Load())
	assert.Equal(t, gsq.StagingFlags(0), audio.Staging())
}

func TestResizeWhileTicking(t *testing.T) {
	loop := thread.NewLoop(2)
	defer loop.Close()
	p := newPulses()
	tr := newTrack("t", track.OutputHasRecycling|track.InputHasRecycling|track.SuperThreaded, 2, 2, 1, track.WithScheduler(loop))
	tr.AddTemplate(channelTemplate(p))

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			default:
				loop.Step()
			}
		}
	}()
	for i := 0; i < 50; i++ {
		ids := tr.Start(gsq.AllScopes)
		tr.SetPads(gsq.Output, 1+i%3)
		tr.SetAudioChannels(1 + i%2)
		tr.SetPads(gsq.Input, i%2)
		tr.Stop(ids, gsq.AllScopes)
	}
	close(done)
	<-finished

	assert.Empty(t, tr.CheckScope(gsq.AllScopes))
	assert.Empty(t, tr.RecyclingContexts())
	assert.False(t, tr.IsPlaying())
	checkArena(t, tr, gsq.Output)
	checkArena(t, tr, gsq.Input)
	tr.Close()
	assert.Empty(t, loop.Children(loop.Root()))
}
