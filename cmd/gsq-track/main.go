package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"gopkg.in/yaml.v3"

	gsq "github.com/gsequencer/gsequencer-sub009"
	"github.com/gsequencer/gsequencer-sub009/message"
	"github.com/gsequencer/gsequencer-sub009/midi"
	"github.com/gsequencer/gsequencer-sub009/oto"
	"github.com/gsequencer/gsequencer-sub009/recall"
	"github.com/gsequencer/gsequencer-sub009/thread"
	"github.com/gsequencer/gsequencer-sub009/track"
	"github.com/gsequencer/gsequencer-sub009/version"
)

const summaryTemplate = `{{.Name}}: {{.AudioChannels}} audio channels, {{.OutputPads}} output pads, {{.InputPads}} input pads
flags: {{.Flags | join "|" | default "none"}}
{{range .Scopes}}  {{printf "%-10s" .Title}} {{.Runs}} runs, staging {{.Staging}}
{{end}}{{if .Recalls}}templates: {{.Recalls | join ", "}}
{{end}}cycles: {{.Cycles}}, dropped events: {{.Dropped}}
`

type (
	summary struct {
		track.Snapshot
		Scopes  []scopeSummary
		Recalls []string
		Cycles  uint64
		Dropped uint64
	}

	scopeSummary struct {
		Title   string
		Runs    int
		Staging gsq.StagingFlags
	}
)

func main() {
	configPath := flag.String("config", "", "Read the track and its recalls from a YAML `file`.")
	scopeName := flag.String("scope", "", "Start only this sound scope instead of the scopes in the config (playback, sequencer, notation, wave, midi or all).")
	ticks := flag.Int("ticks", -1, "Number of play pulses to run. Zero runs until interrupted. Negative uses the config value.")
	audio := flag.Bool("audio", false, "Play the mixdown of the output channels on the default audio device.")
	midiInput := flag.String("midi-input", "", "Drive the midi scope from the first MIDI input whose name starts with `prefix`.")
	debug := flag.Bool("debug", false, "Log debug messages, including every bus event.")
	outFile := flag.String("o", "", "Write the mixdown to `file`, as .wav or, for any other extension, as raw samples.")
	dump := flag.Bool("dump", false, "Write a YAML snapshot of the track to standard output when done.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *ticks >= 0 {
		cfg.Ticks = *ticks
	}
	if *scopeName != "" {
		cfg.Scopes = []string{*scopeName}
	}
	scopes, err := parseScopes(cfg.Scopes)
	if err != nil {
		log.Fatal(err)
	}

	bus := message.NewBus()
	bus.Observe(func(e message.Envelope) {
		logger.Debug("event", "key", string(e.Key), "sender", e.Sender, "values", map[string]any(e.Values))
	})
	defer bus.Close(3 * time.Second)
	loop := thread.NewLoop(0)
	defer loop.Close()

	t, err := buildTrack(cfg, logger, bus, loop)
	if err != nil {
		log.Fatal(err)
	}
	defer t.Close()

	var sink gsq.AudioSink
	if *audio {
		audioContext, err := oto.NewContext(t.Samplerate(), max(t.AudioChannels(), 1), t.BufferSize())
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
		defer audioContext.Close()
		t.SetOutputSoundcard(audioContext)
		sink = audioContext.Output()
		defer sink.Close()
	}

	if *midiInput != "" {
		port, closeDriver, err := midi.FindInput(*midiInput)
		if err != nil {
			log.Printf("failed to open MIDI input '%s': %v", *midiInput, err)
		} else {
			defer closeDriver()
			in := midi.NewInput(port.String(), t, -1)
			t.SetSequencer(in)
			if err := in.Listen(port); err != nil {
				log.Printf("failed to listen to MIDI input '%s': %v", port, err)
			}
			defer in.Close()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	started := make(map[gsq.SoundScope][]*gsq.RecallID)
	for _, s := range scopes {
		started[s] = t.Start(s)
	}
	sum := summary{Snapshot: t.Snapshot()}
	for _, s := range scopes {
		sum.Scopes = append(sum.Scopes, scopeSummary{Title: s.Title(), Runs: len(started[s]), Staging: t.StagingFlags(s)})
	}
	var rendered []float32
	var record func([]float32)
	if *outFile != "" {
		record = func(b []float32) { rendered = append(rendered, b...) }
	}
	if err := run(ctx, t, loop, sink, record, cfg.Ticks); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("playback failed", "error", err)
	}
	for _, s := range scopes {
		t.Stop(started[s], s)
	}

	for _, r := range t.Templates() {
		sum.Recalls = append(sum.Recalls, r.Name())
	}
	sum.Cycles = loop.Cycles()
	sum.Dropped = bus.Dropped()
	tmpl := template.Must(template.New("summary").Funcs(sprig.TxtFuncMap()).Parse(summaryTemplate))
	if err := tmpl.Execute(os.Stderr, sum); err != nil {
		log.Fatal(err)
	}
	if *outFile != "" {
		if err := export(*outFile, rendered, t); err != nil {
			log.Fatal(err)
		}
	}
	if *dump {
		out, err := yaml.Marshal(t.Snapshot())
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(out)
	}
}

func loadConfig(path string) (*gsq.Config, error) {
	if path == "" {
		return gsq.ParseConfig(nil)
	}
	return gsq.LoadConfig(path)
}

func parseScopes(names []string) ([]gsq.SoundScope, error) {
	var ret []gsq.SoundScope
	for _, n := range names {
		s, err := gsq.ParseSoundScope(n)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s.Expand()...)
	}
	return ret, nil
}

func buildTrack(cfg *gsq.Config, logger *slog.Logger, bus *message.Bus, loop *thread.Loop) (*track.Track, error) {
	flags, err := track.ParseFlags(cfg.Flags)
	if err != nil {
		return nil, err
	}
	format, err := gsq.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	t := track.New(cfg.Name, flags, track.WithLogger(logger), track.WithBus(bus), track.WithScheduler(loop))
	t.SetSamplerate(cfg.Samplerate)
	t.SetBufferSize(cfg.BufferSize)
	t.SetFormat(format)
	t.SetAudioChannels(cfg.AudioChannels)
	t.SetPads(gsq.Output, cfg.OutputPads)
	t.SetPads(gsq.Input, cfg.InputPads)

	templates, err := recall.NewAll(cfg.Recalls)
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Presets {
		p, err := recall.LoadPresets(path)
		if err != nil {
			return nil, err
		}
		pt, err := p.Templates()
		if err != nil {
			return nil, fmt.Errorf("presets %q: %w", p.Name, err)
		}
		templates = append(templates, pt...)
	}
	for _, r := range templates {
		t.AddTemplate(r)
	}
	return t, nil
}

// run steps the loop once per buffer period, ticks times or until ctx is
// done if ticks is zero. The mixdown of every cycle goes to sink and record,
// when given.
func run(ctx context.Context, t *track.Track, loop *thread.Loop, sink gsq.AudioSink, record func([]float32), ticks int) error {
	period := time.Duration(t.BufferSize()) * time.Second / time.Duration(t.Samplerate())
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	var buffer []float32
	for i := 0; ticks == 0 || i < ticks; i++ {
		loop.Step()
		if sink != nil || record != nil {
			buffer = t.Mixdown(buffer)
		}
		if record != nil {
			record(buffer)
		}
		if sink != nil {
			if err := sink.WriteAudio(buffer); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func export(path string, buffer []float32, t *track.Track) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		data, err = gsq.Wav(buffer, max(t.AudioChannels(), 1), t.Samplerate(), t.Format())
	} else {
		data, err = gsq.Raw(buffer, t.Format())
	}
	if err != nil {
		return fmt.Errorf("could not encode mixdown: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "gsq-track builds a track from a config file, starts its sound scopes and runs them.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
