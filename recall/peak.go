package recall

import (
	"math"
	"sync/atomic"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/viterin/vek/vek32"
)

// Peak meters the recyclings of its run after every pulse.
type Peak struct {
	gsq.NopProcessor
	bits atomic.Uint32
}

func (p *Peak) Duplicate() gsq.Processor { return &Peak{} }

// Value returns the peak of the last pulse.
func (p *Peak) Value() float32 { return math.Float32frombits(p.bits.Load()) }

func (p *Peak) Run(r *gsq.Recall, stage gsq.StagingFlags) {
	if stage != gsq.StageRunPost {
		return
	}
	recyclings := r.RecallID().RecyclingContext().Recyclings()
	if len(recyclings) == 0 {
		p.bits.Store(0)
		return
	}
	peaks := make([]float32, len(recyclings))
	for i, rec := range recyclings {
		peaks[i] = rec.Peak()
	}
	p.bits.Store(math.Float32bits(vek32.Max(peaks)))
}

func (p *Peak) Cancel(*gsq.Recall) { p.bits.Store(0) }
