package recall

import (
	"fmt"
	"sync/atomic"

	gsq "github.com/gsequencer/gsequencer-sub009"
)

// Counter counts play pulses and finishes its run after Length of them. A
// zero length counts forever.
type Counter struct {
	gsq.NopProcessor
	Length int
	count  atomic.Int64
}

func newCounter(params map[string]float64) (gsq.Processor, error) {
	length := 16
	if v, ok := params["length"]; ok {
		if v < 0 {
			return nil, fmt.Errorf("counter length must be >= 0, got %v", v)
		}
		length = int(v)
	}
	return &Counter{Length: length}, nil
}

func (c *Counter) Duplicate() gsq.Processor { return &Counter{Length: c.Length} }

// Count returns the number of pulses seen.
func (c *Counter) Count() int { return int(c.count.Load()) }

func (c *Counter) Run(r *gsq.Recall, stage gsq.StagingFlags) {
	if stage != gsq.StageRunPost {
		return
	}
	n := c.count.Add(1)
	if c.Length > 0 && n >= int64(c.Length) {
		r.Done()
	}
}
