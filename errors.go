package gsequencer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidScope     = errors.New("invalid sound scope")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidLevel     = errors.New("invalid recall level")
	ErrNilChannel       = errors.New("channel is nil")
	ErrChannelDisposed  = errors.New("channel has been disposed")
	ErrNoContext        = errors.New("recall id has no recycling context")

	ErrLinkSameDirection = errors.New("channels have the same direction")
	ErrLinkSameTrack     = errors.New("channels belong to the same track")
	ErrLinkCycle         = errors.New("link would create a cycle")
	ErrLinkIncompatible  = errors.New("channels have incompatible buffer sizes")
)

// LinkError is returned when two channels cannot be linked or unlinked. It
// unwraps to one of the ErrLink* sentinels (or ErrChannelDisposed).
type LinkError struct {
	Op     string // "link" or "unlink"
	From   string // channel description, e.g. "mixer/output/3"
	To     string
	Reason error
}

func (e *LinkError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot %s %s: %v", e.Op, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s %s to %s: %v", e.Op, e.From, e.To, e.Reason)
}

func (e *LinkError) Unwrap() error { return e.Reason }
