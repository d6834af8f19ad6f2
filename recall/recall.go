// Package recall provides concrete recall processors and builds recall
// templates from configuration.
package recall

import (
	"fmt"
	"sort"

	gsq "github.com/gsequencer/gsequencer-sub009"
)

// Constructor builds the processor of a template from its parameters.
type Constructor func(params map[string]float64) (gsq.Processor, error)

var constructors = map[string]Constructor{
	"nop":     func(map[string]float64) (gsq.Processor, error) { return gsq.NopProcessor{}, nil },
	"counter": newCounter,
	"peak":    func(map[string]float64) (gsq.Processor, error) { return &Peak{}, nil },
	"gain":    newGain,
}

// Kinds returns the names of the known processor kinds, sorted.
func Kinds() []string {
	ret := make([]string, 0, len(constructors))
	for k := range constructors {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// New builds a template from a RecallConfig.
func New(c gsq.RecallConfig) (*gsq.Recall, error) {
	ctor, ok := constructors[c.Kind]
	if !ok {
		return nil, fmt.Errorf("recall %q: unknown kind %q", c.Name, c.Kind)
	}
	level, err := gsq.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("recall %q: %w", c.Name, err)
	}
	ability, err := gsq.ParseAbility(c.Scopes)
	if err != nil {
		return nil, fmt.Errorf("recall %q: %w", c.Name, err)
	}
	p, err := ctor(c.Params)
	if err != nil {
		return nil, fmt.Errorf("recall %q: %w", c.Name, err)
	}
	name := c.Name
	if name == "" {
		name = c.Kind
	}
	r := gsq.NewRecall(name, level, ability, p)
	if c.Line != nil {
		r.SetAddress(gsq.AnyLine, gsq.AnyLine, *c.Line)
	}
	if c.Persistent {
		r.SetFlags(gsq.RecallPersistent)
	}
	return r, nil
}

// NewAll builds templates for every config, stopping at the first error.
func NewAll(configs []gsq.RecallConfig) ([]*gsq.Recall, error) {
	ret := make([]*gsq.Recall, 0, len(configs))
	for _, c := range configs {
		r, err := New(c)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, nil
}
