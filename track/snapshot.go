package track

import (
	gsq "github.com/gsequencer/gsequencer-sub009"
)

type (
	// Snapshot is a plain, serializable view of a track's structure.
	Snapshot struct {
		Name          string            `yaml:"name"`
		Flags         []string          `yaml:"flags,flow,omitempty"`
		AudioChannels int               `yaml:"audio-channels"`
		OutputPads    int               `yaml:"output-pads"`
		InputPads     int               `yaml:"input-pads"`
		Samplerate    int               `yaml:"samplerate"`
		BufferSize    int               `yaml:"buffer-size"`
		Channels      []ChannelSnapshot `yaml:"channels,omitempty"`
		RecallIDs     int               `yaml:"recall-ids"`
		Recalls       int               `yaml:"recalls"`
	}

	ChannelSnapshot struct {
		Direction    string `yaml:"direction"`
		Pad          int    `yaml:"pad"`
		AudioChannel int    `yaml:"audio-channel"`
		Line         int    `yaml:"line"`
		Prev         int    `yaml:"prev"`
		Next         int    `yaml:"next"`
		PrevPad      int    `yaml:"prev-pad"`
		NextPad      int    `yaml:"next-pad"`
		Link         string `yaml:"link,omitempty"`
		Recyclings   int    `yaml:"recyclings"`
	}
)

func (t *Track) Snapshot() Snapshot {
	recalls := len(t.Recalls(true)) + len(t.Recalls(false))
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Name:          t.name,
		Flags:         t.flags.Names(),
		AudioChannels: t.audioChannels,
		OutputPads:    t.pads[gsq.Output],
		InputPads:     t.pads[gsq.Input],
		Samplerate:    t.samplerate,
		BufferSize:    t.bufferSize,
		RecallIDs:     len(t.recallIDs),
		Recalls:       recalls,
	}
	for _, d := range directions {
		for _, c := range t.channels[d] {
			cs := ChannelSnapshot{
				Direction:    d.String(),
				Pad:          c.pad,
				AudioChannel: c.audioChannel,
				Line:         c.line,
				Prev:         c.prev,
				Next:         c.next,
				PrevPad:      c.prevPad,
				NextPad:      c.nextPad,
				Recyclings:   len(c.Recyclings()),
			}
			if c.link != nil {
				cs.Link = c.link.track.name
			}
			s.Channels = append(s.Channels, cs)
		}
	}
	return s
}

// Mixdown sums the first recycling of every output channel into dst,
// interleaved by audio channel, and returns it. dst is grown to
// BufferSize()*AudioChannels() samples.
func (t *Track) Mixdown(dst []float32) []float32 {
	t.mu.Lock()
	outputs := t.channels[gsq.Output]
	ac, n := t.audioChannels, t.bufferSize
	type source struct {
		ch int
		r  *gsq.Recycling
	}
	sources := make([]source, 0, len(outputs))
	for _, c := range outputs {
		if r := c.FirstRecycling(); r != nil {
			sources = append(sources, source{c.audioChannel, r})
		}
	}
	t.mu.Unlock()

	if cap(dst) < n*ac {
		dst = make([]float32, n*ac)
	}
	dst = dst[:n*ac]
	clear(dst)
	var tmp []float32
	for _, s := range sources {
		tmp = s.r.Read(tmp)
		for i := 0; i < n && i < len(tmp); i++ {
			dst[i*ac+s.ch] += tmp[i]
		}
	}
	return dst
}
