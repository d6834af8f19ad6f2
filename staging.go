package gsequencer

import "strings"

// StagingFlags is a bitset of lifecycle stages. The same type is used for the
// stages a track has run for a scope, the stages a recall id has passed and
// the transient stages of a single play pulse.
type StagingFlags uint32

const (
	StageCheckRTData StagingFlags = 1 << iota
	StageRunInitPre
	StageRunInitInter
	StageRunInitPost
	StageFeedInput
	StageFeedOutput
	StageAutomate
	StageRunPre
	StageRunInter
	StageRunPost
	StageDoFeedback
	StageDone
	StageCancel
	StageRemove
	StageFini
	StageReset
)

const (
	// InitStages are persisted on recalls and recall ids and each of them
	// runs at most once per run.
	InitStages = StageCheckRTData | StageRunInitPre | StageRunInitInter | StageRunInitPost

	// RunStages make up a single play pulse. They are never persisted.
	RunStages = StageFeedInput | StageFeedOutput | StageAutomate | StageRunPre | StageRunInter | StageRunPost | StageDoFeedback
)

var stageNames = []struct {
	flag StagingFlags
	name string
}{
	{StageCheckRTData, "check-rt-data"},
	{StageRunInitPre, "run-init-pre"},
	{StageRunInitInter, "run-init-inter"},
	{StageRunInitPost, "run-init-post"},
	{StageFeedInput, "feed-input"},
	{StageFeedOutput, "feed-output"},
	{StageAutomate, "automate"},
	{StageRunPre, "run-pre"},
	{StageRunInter, "run-inter"},
	{StageRunPost, "run-post"},
	{StageDoFeedback, "do-feedback"},
	{StageDone, "done"},
	{StageCancel, "cancel"},
	{StageRemove, "remove"},
	{StageFini, "fini"},
	{StageReset, "reset"},
}

// Has returns true if every bit of g is set in f.
func (f StagingFlags) Has(g StagingFlags) bool {
	return f&g == g
}

// Any returns true if at least one bit of g is set in f.
func (f StagingFlags) Any(g StagingFlags) bool {
	return f&g != 0
}

func (f StagingFlags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, s := range stageNames {
		if f&s.flag != 0 {
			names = append(names, s.name)
		}
	}
	return strings.Join(names, "|")
}
