package recall

import (
	"fmt"
	"math"
	"sync/atomic"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/viterin/vek/vek32"
)

// Gain scales the recyclings of its run once per pulse. The gain can be
// changed while playing with SetGain.
type Gain struct {
	gsq.NopProcessor
	bits atomic.Uint32
}

func newGain(params map[string]float64) (gsq.Processor, error) {
	g := float32(1)
	if v, ok := params["gain"]; ok {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid gain %v", v)
		}
		g = float32(v)
	}
	ret := &Gain{}
	ret.SetGain(g)
	return ret, nil
}

func (g *Gain) Duplicate() gsq.Processor {
	ret := &Gain{}
	ret.SetGain(g.Gain())
	return ret
}

func (g *Gain) Gain() float32     { return math.Float32frombits(g.bits.Load()) }
func (g *Gain) SetGain(v float32) { g.bits.Store(math.Float32bits(v)) }

func (g *Gain) Run(r *gsq.Recall, stage gsq.StagingFlags) {
	if stage != gsq.StageRunInter {
		return
	}
	v := g.Gain()
	if v == 1 {
		return
	}
	for _, rec := range r.RecallID().RecyclingContext().Recyclings() {
		rec.Process(func(buffer []float32) {
			vek32.MulNumber_Inplace(buffer, v)
		})
	}
}
