package gsequencer

import "fmt"

// Ability is a bitset of the sound scopes a recall template can be
// duplicated for. Bit n corresponds to SoundScope(n).
type Ability uint32

const (
	AbilityPlayback Ability = 1 << iota
	AbilitySequencer
	AbilityNotation
	AbilityWave
	AbilityMIDI

	AbilityAll = AbilityPlayback | AbilitySequencer | AbilityNotation | AbilityWave | AbilityMIDI
)

// Supports returns true if a recall with ability a may run in scope s.
func (a Ability) Supports(s SoundScope) bool {
	return s.Valid() && a&s.Ability() != 0
}

// ParseAbility combines scope names into an Ability. An empty list means
// every scope.
func ParseAbility(names []string) (Ability, error) {
	if len(names) == 0 {
		return AbilityAll, nil
	}
	var a Ability
	for _, n := range names {
		s, err := ParseSoundScope(n)
		if err != nil {
			return 0, fmt.Errorf("cannot parse ability: %w", err)
		}
		for _, e := range s.Expand() {
			a |= e.Ability()
		}
	}
	return a, nil
}
