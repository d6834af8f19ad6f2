//go:build !cgo

package midi

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// FindInput needs cgo for the rtmidi driver; without it, there are no
// inputs.
func FindInput(prefix string) (drivers.In, func(), error) {
	return nil, nil, errors.New("midi input is not available without cgo")
}
