package gsequencer

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SoundScope selects one of the independently schedulable playback contexts
// of a track. Every scope has its own recall ids, its own worker and its own
// staging state, so e.g. the sequencer can be stopped while notation playback
// keeps running.
type SoundScope int

const (
	ScopePlayback SoundScope = iota
	ScopeSequencer
	ScopeNotation
	ScopeWave
	ScopeMIDI
)

// NumScopes is the number of distinct sound scopes.
const NumScopes = 5

// AllScopes can be passed wherever a scope is expected to select every scope.
// Any other negative value is treated the same way.
const AllScopes SoundScope = -1

var scopeNames = [NumScopes]string{"playback", "sequencer", "notation", "wave", "midi"}

// Valid returns true if s names a single scope.
func (s SoundScope) Valid() bool {
	return s >= 0 && int(s) < NumScopes
}

func (s SoundScope) String() string {
	if s < 0 {
		return "all"
	}
	if !s.Valid() {
		return fmt.Sprintf("scope(%d)", int(s))
	}
	return scopeNames[s]
}

// Title returns the scope name in title case, for user facing output.
func (s SoundScope) Title() string {
	// a Caser keeps state between calls, so one is made per call
	return cases.Title(language.English).String(s.String())
}

// Expand returns the list of scopes selected by s: all of them for a
// negative scope, s itself for a valid scope and nothing otherwise.
func (s SoundScope) Expand() []SoundScope {
	if s < 0 {
		ret := make([]SoundScope, NumScopes)
		for i := range ret {
			ret[i] = SoundScope(i)
		}
		return ret
	}
	if !s.Valid() {
		return nil
	}
	return []SoundScope{s}
}

// Ability returns the ability bit that a recall needs to be duplicated for
// this scope.
func (s SoundScope) Ability() Ability {
	if !s.Valid() {
		return 0
	}
	return Ability(1) << s
}

// ParseSoundScope converts a scope name, as returned by String, back to a
// SoundScope. "all" and "" parse as AllScopes.
func ParseSoundScope(name string) (SoundScope, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return AllScopes, nil
	}
	for i, n := range scopeNames {
		if n == name {
			return SoundScope(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidScope, name)
}
