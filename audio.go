package gsequencer

// Format is the sample format of a soundcard and of the recyclings of the
// tracks attached to it.
type Format int

const (
	FormatFloat32 Format = iota
	FormatSigned16
)

const (
	DefaultSamplerate = 44100
	DefaultBufferSize = 512
	DefaultFormat     = FormatFloat32
)

func (f Format) String() string {
	switch f {
	case FormatFloat32:
		return "float32"
	case FormatSigned16:
		return "s16"
	}
	return "unknown"
}

type (
	// Soundcard is an audio device a track renders to or records from. A
	// track adopts the samplerate, buffer size and format of its output
	// soundcard.
	Soundcard interface {
		Samplerate() int
		BufferSize() int
		Format() Format
	}

	// Sequencer is a source of musical events, e.g. a MIDI input, driving the
	// MIDI scope of a track.
	Sequencer interface {
		Name() string
	}

	// AudioSink receives interleaved float32 audio.
	AudioSink interface {
		WriteAudio(buffer []float32) error
		Close() error
	}

	// AudioContext is a soundcard that can open sinks.
	AudioContext interface {
		Soundcard
		Output() AudioSink
		Close() error
	}
)
