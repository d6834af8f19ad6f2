package gsequencer

import (
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// RecallIDState tracks where a recall id is in its scheduling.
type RecallIDState uint32

const (
	StateWaiting RecallIDState = 1 << iota
	StateActive
	StateProcessing
	StateTerminating

	// StateBusy is any state in which duplication for the id is refused.
	StateBusy = StateWaiting | StateActive | StateProcessing | StateTerminating
)

func (s RecallIDState) String() string {
	if s == 0 {
		return "idle"
	}
	var names []string
	for i, n := range []string{"waiting", "active", "processing", "terminating"} {
		if s&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, "|")
}

// RecallID is the token of a single run of a track in one sound scope. Run
// copies of recall templates are bound to a RecallID; all run copies whose
// ids share a RecyclingContext take part in the same run.
//
// The state and staging words are updated atomically, so they can be read
// from worker goroutines without holding any track lock.
type RecallID struct {
	id      uuid.UUID
	scope   SoundScope
	level   Level
	context *RecyclingContext

	state   atomic.Uint32
	staging atomic.Uint32
}

// NewRecallID creates an id for scope and binds it to context. level is
// LevelAudio for the id driving audio-run recalls and LevelChannel for the
// one driving channel-run recalls.
func NewRecallID(scope SoundScope, level Level, context *RecyclingContext) *RecallID {
	id := &RecallID{
		id:      uuid.New(),
		scope:   scope,
		level:   level.Shared(),
		context: context,
	}
	if context != nil {
		context.addRecallID(id)
	}
	return id
}

func (r *RecallID) ID() uuid.UUID                       { return r.id }
func (r *RecallID) Scope() SoundScope                   { return r.scope }
func (r *RecallID) Level() Level                        { return r.level }
func (r *RecallID) RecyclingContext() *RecyclingContext { return r.context }

func (r *RecallID) State() RecallIDState {
	return RecallIDState(r.state.Load())
}

// HasState returns true if any bit of s is set.
func (r *RecallID) HasState(s RecallIDState) bool {
	return r.State()&s != 0
}

func (r *RecallID) SetState(s RecallIDState) {
	r.state.Or(uint32(s))
}

func (r *RecallID) UnsetState(s RecallIDState) {
	r.state.And(^uint32(s))
}

func (r *RecallID) Staging() StagingFlags {
	return StagingFlags(r.staging.Load())
}

// HasStaging returns true if every bit of f is set.
func (r *RecallID) HasStaging(f StagingFlags) bool {
	return r.Staging().Has(f)
}

func (r *RecallID) SetStaging(f StagingFlags) {
	r.staging.Or(uint32(f))
}

func (r *RecallID) UnsetStaging(f StagingFlags) {
	r.staging.And(^uint32(f))
}

func (r *RecallID) String() string {
	return r.scope.String() + "/" + r.level.String() + "/" + r.id.String()[:8]
}
