package gsequencer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type (
	// Recall is an effect instance attached to a track. A recall is either a
	// template, which is never processed itself but serves as the prototype
	// of run copies, or a run copy bound to a RecallID.
	//
	// All lifecycle methods (RunInitPre, RunPre, Done, Cancel, Fini...) are
	// the default handlers: they do the bookkeeping and then call the
	// matching method of the Processor. They can be called directly, and
	// the track's lifecycle engine calls them for every matching recall.
	// None of them holds the recall lock while calling the processor, so a
	// processor can call e.g. Done from within Run.
	Recall struct {
		id        uuid.UUID
		name      string
		level     Level
		ability   Ability
		flags     RecallFlags
		processor Processor

		// pad, audioChannel and line address channel-level recalls. AnyLine
		// (-1) in any of them matches every channel.
		pad, audioChannel, line int

		// template and recallID are only set on run copies, and never change
		// afterwards.
		template *Recall
		recallID *RecallID

		mu        sync.Mutex
		state     RecallState
		staging   StagingFlags
		hidden    bool
		connected bool
		onDone    func(*Recall)
	}

	// Processor is the per-recall behaviour. NopProcessor implements every
	// method as a no-op and can be embedded to implement only what is
	// needed.
	Processor interface {
		// Duplicate returns the processor of a new run copy. Stateless
		// processors can return themselves.
		Duplicate() Processor
		ResolveDependencies(r *Recall)
		// RunInit is called once per run for each of StageCheckRTData,
		// StageRunInitPre, StageRunInitInter and StageRunInitPost.
		RunInit(r *Recall, stage StagingFlags)
		Automate(r *Recall)
		// Run is called for each run stage of a play pulse: StageFeedInput,
		// StageFeedOutput, StageRunPre, StageRunInter, StageRunPost and
		// StageDoFeedback, in this order.
		Run(r *Recall, stage StagingFlags)
		Done(r *Recall)
		Cancel(r *Recall)
		Fini(r *Recall)
	}

	NopProcessor struct{}

	// Level tells whether a recall works on the whole track or on a single
	// channel, and whether it is shared or duplicated per run.
	Level int

	RecallState int

	RecallFlags uint32
)

const (
	LevelAudio Level = iota
	LevelAudioRun
	LevelChannel
	LevelChannelRun
)

const (
	RecallTemplate RecallState = iota
	RecallDuplicated
	RecallResolved
	RecallInitialized
	RecallPlaying
	RecallDone
	RecallCancelled
	RecallCleanedUp
)

const (
	// RecallPersistent recalls ignore Done. They keep running until
	// cancelled.
	RecallPersistent RecallFlags = 1 << iota
)

// AnyLine in a recall address matches every channel.
const AnyLine = -1

var (
	initOrder = [...]StagingFlags{StageCheckRTData, StageRunInitPre, StageRunInitInter, StageRunInitPost}
	runOrder  = [...]StagingFlags{StageFeedInput, StageFeedOutput, StageRunPre, StageRunInter, StageRunPost, StageDoFeedback}
)

func (NopProcessor) Duplicate() Processor          { return NopProcessor{} }
func (NopProcessor) ResolveDependencies(*Recall)   {}
func (NopProcessor) RunInit(*Recall, StagingFlags) {}
func (NopProcessor) Automate(*Recall)              {}
func (NopProcessor) Run(*Recall, StagingFlags)     {}
func (NopProcessor) Done(*Recall)                  {}
func (NopProcessor) Cancel(*Recall)                {}
func (NopProcessor) Fini(*Recall)                  {}

// NewRecall creates a template. Channel-level templates address every
// channel until SetAddress is called.
func NewRecall(name string, level Level, ability Ability, processor Processor) *Recall {
	if processor == nil {
		processor = NopProcessor{}
	}
	return &Recall{
		id:           uuid.New(),
		name:         name,
		level:        level,
		ability:      ability,
		processor:    processor,
		pad:          AnyLine,
		audioChannel: AnyLine,
		line:         AnyLine,
		state:        RecallTemplate,
	}
}

// SetAddress restricts a channel-level template to one channel. It must be
// called before the template is added to a track.
func (r *Recall) SetAddress(pad, audioChannel, line int) *Recall {
	r.pad, r.audioChannel, r.line = pad, audioChannel, line
	return r
}

// SetFlags must be called before the template is added to a track.
func (r *Recall) SetFlags(flags RecallFlags) *Recall {
	r.flags = flags
	return r
}

func (r *Recall) ID() uuid.UUID        { return r.id }
func (r *Recall) Name() string         { return r.name }
func (r *Recall) Level() Level         { return r.level }
func (r *Recall) Ability() Ability     { return r.ability }
func (r *Recall) Flags() RecallFlags   { return r.flags }
func (r *Recall) Processor() Processor { return r.processor }
func (r *Recall) Pad() int             { return r.pad }
func (r *Recall) AudioChannel() int    { return r.audioChannel }
func (r *Recall) Line() int            { return r.line }
func (r *Recall) Template() *Recall    { return r.template }
func (r *Recall) RecallID() *RecallID  { return r.recallID }

// IsTemplate returns true for recalls that are not bound to a RecallID.
func (r *Recall) IsTemplate() bool {
	return r.recallID == nil
}

func (r *Recall) IsPersistent() bool {
	return r.flags&RecallPersistent != 0
}

// Addresses returns true if the recall applies to the channel at pad,
// audioChannel and line.
func (r *Recall) Addresses(pad, audioChannel, line int) bool {
	return (r.pad < 0 || r.pad == pad) &&
		(r.audioChannel < 0 || r.audioChannel == audioChannel) &&
		(r.line < 0 || r.line == line)
}

func (r *Recall) State() RecallState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Staging returns the persisted stages the recall has passed.
func (r *Recall) Staging() StagingFlags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staging
}

// IsHidden is true for run copies that have not run StageRunInitPre yet and
// for cancelled ones. Hidden recalls are skipped by play pulses.
func (r *Recall) IsHidden() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden
}

func (r *Recall) IsDone() bool {
	return r.State() == RecallDone
}

// Duplicate makes a run copy of a template for id. The copy starts hidden
// and in state RecallDuplicated. It returns nil if r is not a template.
func (r *Recall) Duplicate(id *RecallID, pad, audioChannel, line int) *Recall {
	if !r.IsTemplate() || id == nil {
		return nil
	}
	return &Recall{
		id:           uuid.New(),
		name:         r.name,
		level:        r.level,
		ability:      r.ability,
		flags:        r.flags,
		processor:    r.processor.Duplicate(),
		pad:          pad,
		audioChannel: audioChannel,
		line:         line,
		template:     r,
		recallID:     id,
		state:        RecallDuplicated,
		hidden:       true,
	}
}

// SetDoneHandler registers f to be called after the recall becomes done.
func (r *Recall) SetDoneHandler(f func(*Recall)) {
	r.mu.Lock()
	r.onDone = f
	r.mu.Unlock()
}

func (r *Recall) Connect() {
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
}

func (r *Recall) Disconnect() {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
}

func (r *Recall) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Recall) ResolveDependencies() {
	r.mu.Lock()
	if r.state != RecallDuplicated {
		r.mu.Unlock()
		return
	}
	r.state = RecallResolved
	r.mu.Unlock()
	r.processor.ResolveDependencies(r)
}

// ApplyStaging runs the init stages in flags that the recall has not
// passed yet. Other bits are ignored.
func (r *Recall) ApplyStaging(flags StagingFlags) {
	for _, stage := range initOrder {
		if flags&stage != 0 {
			r.runInit(stage)
		}
	}
}

func (r *Recall) CheckRTData()  { r.runInit(StageCheckRTData) }
func (r *Recall) RunInitPre()   { r.runInit(StageRunInitPre) }
func (r *Recall) RunInitInter() { r.runInit(StageRunInitInter) }
func (r *Recall) RunInitPost()  { r.runInit(StageRunInitPost) }

func (r *Recall) runInit(stage StagingFlags) {
	r.mu.Lock()
	if r.staging&stage != 0 || r.state >= RecallDone {
		r.mu.Unlock()
		return
	}
	r.staging |= stage
	switch stage {
	case StageRunInitPre:
		r.hidden = false
	case StageRunInitPost:
		if r.state < RecallInitialized {
			r.state = RecallInitialized
		}
	}
	r.mu.Unlock()
	r.processor.RunInit(r, stage)
}

// Automate pulses StageAutomate: the flag is set while the processor runs
// and cleared afterwards.
func (r *Recall) Automate() {
	r.mu.Lock()
	r.staging |= StageAutomate
	r.mu.Unlock()
	r.processor.Automate(r)
	r.mu.Lock()
	r.staging &^= StageAutomate
	r.mu.Unlock()
}

// Tick runs the run stages in flags, in pipeline order. Nothing is
// persisted. Templates, hidden recalls and finished recalls are skipped.
func (r *Recall) Tick(flags StagingFlags) {
	if r.IsTemplate() {
		return
	}
	r.mu.Lock()
	if r.hidden || r.state >= RecallDone {
		r.mu.Unlock()
		return
	}
	r.state = RecallPlaying
	r.mu.Unlock()
	for _, stage := range runOrder {
		if flags&stage == 0 {
			continue
		}
		r.processor.Run(r, stage)
		if r.State() >= RecallDone {
			return
		}
	}
}

func (r *Recall) FeedInput()  { r.Tick(StageFeedInput) }
func (r *Recall) FeedOutput() { r.Tick(StageFeedOutput) }
func (r *Recall) RunPre()     { r.Tick(StageRunPre) }
func (r *Recall) RunInter()   { r.Tick(StageRunInter) }
func (r *Recall) RunPost()    { r.Tick(StageRunPost) }
func (r *Recall) DoFeedback() { r.Tick(StageDoFeedback) }

// Done marks a run copy done and calls the done handler. Templates and
// persistent recalls ignore it. It returns true if the state changed.
func (r *Recall) Done() bool {
	if r.IsTemplate() || r.IsPersistent() {
		return false
	}
	r.mu.Lock()
	if r.state >= RecallDone {
		r.mu.Unlock()
		return false
	}
	r.state = RecallDone
	r.staging |= StageDone
	onDone := r.onDone
	r.mu.Unlock()
	r.processor.Done(r)
	if onDone != nil {
		onDone(r)
	}
	return true
}

// Cancel stops a run copy, persistent or not. It returns true if the state
// changed.
func (r *Recall) Cancel() bool {
	if r.IsTemplate() {
		return false
	}
	r.mu.Lock()
	if r.state == RecallCancelled || r.state == RecallCleanedUp {
		r.mu.Unlock()
		return false
	}
	r.state = RecallCancelled
	r.staging |= StageCancel
	r.hidden = true
	r.mu.Unlock()
	r.processor.Cancel(r)
	return true
}

// Fini disposes the recall. It is terminal.
func (r *Recall) Fini() {
	r.mu.Lock()
	if r.state == RecallCleanedUp {
		r.mu.Unlock()
		return
	}
	r.state = RecallCleanedUp
	r.staging |= StageFini
	r.connected = false
	r.onDone = nil
	r.mu.Unlock()
	r.processor.Fini(r)
}

func (r *Recall) String() string {
	if r.IsTemplate() {
		return fmt.Sprintf("%s(%s template)", r.name, r.level)
	}
	return fmt.Sprintf("%s(%s %s)", r.name, r.level, r.recallID)
}

func (l Level) Valid() bool { return l >= LevelAudio && l <= LevelChannelRun }

func (l Level) IsAudio() bool { return l == LevelAudio || l == LevelAudioRun }

// IsRun is true for levels whose templates are duplicated per run.
func (l Level) IsRun() bool { return l == LevelAudioRun || l == LevelChannelRun }

// Shared maps a run level to the corresponding shared level.
func (l Level) Shared() Level {
	switch l {
	case LevelAudioRun:
		return LevelAudio
	case LevelChannelRun:
		return LevelChannel
	}
	return l
}

var levelNames = [...]string{"audio", "audio-run", "channel", "channel-run"}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
}

var recallStateNames = [...]string{"template", "duplicated", "resolved", "initialized", "playing", "done", "cancelled", "cleaned-up"}

func (s RecallState) String() string {
	if s < 0 || int(s) >= len(recallStateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return recallStateNames[s]
}
