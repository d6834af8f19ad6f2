//go:build cgo

package midi

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// FindInput opens the rtmidi driver and returns the first input port whose
// name starts with prefix. The returned func closes the driver.
func FindInput(prefix string) (drivers.In, func(), error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open rtmidi driver: %w", err)
	}
	closeDriver := func() { driver.Close() }
	ins, err := driver.Ins()
	if err != nil {
		closeDriver()
		return nil, nil, fmt.Errorf("cannot list midi inputs: %w", err)
	}
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			return in, closeDriver, nil
		}
	}
	closeDriver()
	return nil, nil, fmt.Errorf("no midi input found with prefix %q", prefix)
}
