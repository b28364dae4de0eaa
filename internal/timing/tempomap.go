// Package timing builds the tempo map of a decoded MIDI file and converts
// tick positions to seconds.
package timing

import (
	"github.com/Patochun/M2B/internal/logging"
	"github.com/Patochun/M2B/internal/smf"
)

var log = logging.For("timing")

// DefaultTempo is the implicit tempo in microseconds per quarter note
// (120 BPM) used before any explicit tempo event.
const DefaultTempo = 500_000

// TempoEventRecord anchors a tempo change at both its tick position and its
// already-resolved position in seconds.
type TempoEventRecord struct {
	Ticks            uint64
	Seconds          float64
	MicrosPerQuarter uint32
}

// TempoMap holds one ordered tempo record list per tempo-bearing track.
// For format-1 files that is the first file track only, shared by all
// others; for formats 0 and 2 every track carries its own tempo events.
type TempoMap struct {
	ppqn        int
	format      int
	tempoTracks [][]TempoEventRecord
}

// New walks the file's tempo-bearing tracks and records every tempo change
// with its tick and seconds position. Seconds positions are computed
// incrementally against the records accumulated so far, so later tempo
// events are measured from earlier ones.
func New(f *smf.File) *TempoMap {
	tracks := f.Tracks
	if f.Format == 1 && len(tracks) > 1 {
		tracks = tracks[:1]
	}
	m := &TempoMap{
		ppqn:        f.PPQN,
		format:      f.Format,
		tempoTracks: make([][]TempoEventRecord, len(tracks)),
	}
	for trackIndex, track := range tracks {
		var ticks uint64
		for _, event := range track.Events {
			ticks += uint64(event.Delta())
			tempo, ok := event.(smf.TempoEvent)
			if !ok {
				continue
			}
			seconds := resolve(m.tempoTracks[trackIndex], m.ppqn, ticks)
			m.tempoTracks[trackIndex] = append(m.tempoTracks[trackIndex],
				TempoEventRecord{Ticks: ticks, Seconds: seconds, MicrosPerQuarter: tempo.MicrosPerQuarter})
			log.Trace().Msgf("track %d: tempo %d µs/quarter at tick %d (%.3fs)",
				trackIndex, tempo.MicrosPerQuarter, ticks, seconds)
		}
	}
	return m
}

// TicksToSeconds converts a tick position on the given track to seconds.
// For format-1 files the shared tempo track is used regardless of the
// requested track. Pure over the built record lists: identical inputs give
// identical results.
func (m *TempoMap) TicksToSeconds(trackIndex int, ticks uint64) float64 {
	if m.format == 1 {
		trackIndex = 0
	}
	var records []TempoEventRecord
	if trackIndex >= 0 && trackIndex < len(m.tempoTracks) {
		records = m.tempoTracks[trackIndex]
	}
	return resolve(records, m.ppqn, ticks)
}

// resolve finds the latest record at or before the tick, defaulting to the
// implicit (0, 0, DefaultTempo) anchor, and extrapolates from there.
func resolve(records []TempoEventRecord, ppqn int, ticks uint64) float64 {
	anchor := TempoEventRecord{MicrosPerQuarter: DefaultTempo}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Ticks <= ticks {
			anchor = records[i]
			break
		}
	}
	secondsPerTick := float64(anchor.MicrosPerQuarter) / float64(ppqn) / 1_000_000
	return anchor.Seconds + float64(ticks-anchor.Ticks)*secondsPerTick
}

// FixedTempo reports the file's single tempo in microseconds per quarter
// note when it never changes: the default when no tempo event exists, the
// shared value when every recorded tempo agrees, and 0 when the tempo
// varies so callers know time does not scale linearly with ticks.
func (m *TempoMap) FixedTempo() uint32 {
	var fixed uint32
	for _, records := range m.tempoTracks {
		for _, r := range records {
			if fixed == 0 {
				fixed = r.MicrosPerQuarter
				continue
			}
			if r.MicrosPerQuarter != fixed {
				return 0
			}
		}
	}
	if fixed == 0 {
		return DefaultTempo
	}
	return fixed
}
