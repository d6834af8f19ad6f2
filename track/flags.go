package track

import (
	"fmt"
	"strings"
)

// Flags configure how a track wires its channels. They are fixed when the
// track is created.
type Flags uint32

const (
	// OutputHasRecycling gives every output channel its own recycling.
	OutputHasRecycling Flags = 1 << iota
	// InputHasRecycling gives every input channel its own recycling.
	InputHasRecycling
	// Sync wires each output without a recycling to the input at the same
	// line.
	Sync
	// Async wires each output without a recycling to every input of the same
	// audio channel.
	Async
	// HasNotation keeps a notation per audio channel.
	HasNotation
	NotationDefault
	// SuperThreaded runs every output channel on its own worker.
	SuperThreaded
	// DefaultsToInput makes the inputs the leaf channels that get runs, for
	// tracks that only consume audio.
	DefaultsToInput
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{OutputHasRecycling, "output-has-recycling"},
	{InputHasRecycling, "input-has-recycling"},
	{Sync, "sync"},
	{Async, "async"},
	{HasNotation, "has-notation"},
	{NotationDefault, "notation-default"},
	{SuperThreaded, "super-threaded"},
	{DefaultsToInput, "defaults-to-input"},
}

// ParseFlags combines flag names as returned by Flags.Names.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
names:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		for _, fn := range flagNames {
			if fn.name == n {
				f |= fn.flag
				continue names
			}
		}
		return 0, fmt.Errorf("unknown track flag %q", n)
	}
	return f, nil
}

func (f Flags) Has(g Flags) bool { return f&g == g }

func (f Flags) Names() []string {
	var ret []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			ret = append(ret, fn.name)
		}
	}
	return ret
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}
