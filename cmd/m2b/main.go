// Command m2b parses a Standard MIDI File into timed note tracks and
// reports what the animation side would receive: per-track name, note
// range, note count and key, plus an optional JSON dump.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Patochun/M2B/internal/config"
	"github.com/Patochun/M2B/internal/logging"
	"github.com/Patochun/M2B/internal/notes"
)

var log = logging.For("m2b")

func main() {
	var (
		midiPath   = flag.String("midi", "", "path to the MIDI file to parse")
		jsonPath   = flag.String("json", "", "write the parsed tracks as JSON to this path")
		split      = flag.Bool("split", false, "explode a format-0 file into one track per channel")
		strictMeta = flag.Bool("strict-meta", false, "fail on unrecognized meta event types instead of skipping them")
		debug      = flag.Bool("debug", false, "debug logging")
		trace      = flag.Bool("trace", false, "trace logging")
	)
	flag.Parse()

	if *debug {
		logging.SetLevel(zerolog.DebugLevel)
	}
	if *trace {
		logging.SetLevel(zerolog.TraceLevel)
	}
	if *midiPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	config.StrictMeta = *strictMeta
	config.SplitFormat0 = *split

	result, err := notes.ReadFile(*midiPath)
	if err != nil {
		log.Error().Err(err).Msgf("failed to parse %s", *midiPath)
		os.Exit(1)
	}

	log.Info().Msgf("%s: format=%d ppqn=%d tracks=%d", *midiPath, result.Format, result.PPQN, len(result.Tracks))
	if result.Tempo != 0 {
		log.Info().Msgf("fixed tempo: %d µs/quarter (%.1f BPM)", result.Tempo, 60_000_000/float64(result.Tempo))
	} else {
		log.Info().Msg("tempo varies over the file")
	}
	for _, track := range result.Tracks {
		sub := log.With().Int("track", track.Index).Logger()
		sub.Info().Msgf("%q: %d notes, range %d-%d, %d distinct",
			track.Name, len(track.Notes), track.MinNote, track.MaxNote, len(track.NotesUsed))
		if track.Key.Root != 0 {
			sub.Info().Msgf("key signature: %s", track.Key.Root.String(track.Key.AdjSymbol))
		}
	}

	if *jsonPath != "" {
		if err := writeJSON(*jsonPath, result); err != nil {
			log.Error().Err(err).Msgf("failed to write %s", *jsonPath)
			os.Exit(1)
		}
		log.Info().Msgf("wrote %s", *jsonPath)
	}
}

func writeJSON(path string, result *notes.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
