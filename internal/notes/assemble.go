// Package notes pairs raw MIDI events into timed note records and groups
// them into playable tracks, the form the animation side consumes.
package notes

import (
	"fmt"

	"gopkg.in/music-theory.v0/key"

	"github.com/Patochun/M2B/internal/config"
	"github.com/Patochun/M2B/internal/logging"
	"github.com/Patochun/M2B/internal/smf"
	"github.com/Patochun/M2B/internal/timing"
)

var log = logging.For("notes")

// Note is one completed note. Velocity is normalized to 0..1 (raw/127).
// Zero-length notes are legal and preserved.
type Note struct {
	Channel    byte    `json:"channel"`
	NoteNumber byte    `json:"noteNumber"`
	TimeOn     float64 `json:"timeOn"`
	TimeOff    float64 `json:"timeOff"`
	Velocity   float64 `json:"velocity"`
}

// Track is one retained output track. Index is the dense position among
// tracks that contain at least one note; tracks without notes never appear.
type Track struct {
	Name     string  `json:"name"`
	Index    int     `json:"index"`
	MinNote  int     `json:"minNote"`
	MaxNote  int     `json:"maxNote"`
	Key      key.Key `json:"key"`
	Notes    []Note  `json:"notes"`
	NotesUsed []int  `json:"notesUsed"`
}

// TrackSummary is the shape logged before any animation work begins.
type TrackSummary struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	NoteCount int    `json:"noteCount"`
	NotesUsed []int  `json:"notesUsed"`
}

func (t Track) Summary() TrackSummary {
	return TrackSummary{
		Index:     t.Index,
		Name:      t.Name,
		NoteCount: len(t.Notes),
		NotesUsed: t.NotesUsed,
	}
}

// Result is the full conversion output. Tempo is the file's single tempo in
// microseconds per quarter note, or 0 when the tempo varies.
type Result struct {
	Format int     `json:"midiFormat"`
	PPQN   int     `json:"ppqn"`
	Tempo  uint32  `json:"tempo"`
	Tracks []Track `json:"tracks"`
}

type noteKey struct {
	channel byte
	note    byte
}

// noteOnRecord is the open half of a note. Count models MIDI's legal case
// of repeated NoteOn for the same channel+pitch before any matching
// NoteOff: each repeat increments it, each NoteOff decrements it, and the
// note is emitted only when it unwinds to zero.
type noteOnRecord struct {
	ticks    uint64
	seconds  float64
	velocity float64
	count    int
}

// trackState is the per-track working state of the assembler. Its seconds
// cursor re-derives time through the tempo map on every event, mirroring
// the map's own walk.
type trackState struct {
	ticks   uint64
	seconds float64
	open    map[noteKey]*noteOnRecord
}

func newTrackState() *trackState {
	return &trackState{open: make(map[noteKey]*noteOnRecord)}
}

func (s *trackState) advance(trackIndex int, tm *timing.TempoMap, delta uint32) {
	s.ticks += uint64(delta)
	s.seconds = tm.TicksToSeconds(trackIndex, s.ticks)
}

func (s *trackState) recordNoteOn(e smf.NoteOnEvent) {
	k := noteKey{e.Channel, e.Note}
	if rec, ok := s.open[k]; ok {
		rec.count++
		return
	}
	s.open[k] = &noteOnRecord{
		ticks:    s.ticks,
		seconds:  s.seconds,
		velocity: float64(e.Velocity) / 127,
		count:    1,
	}
}

// resolveNoteOff returns the open record for the event's channel+pitch once
// its stack fully unwinds, nil otherwise. A NoteOff with no open record is
// ignored: buggy exporters produce them routinely.
func (s *trackState) resolveNoteOff(e smf.NoteOffEvent) *noteOnRecord {
	k := noteKey{e.Channel, e.Note}
	rec, ok := s.open[k]
	if !ok {
		log.Trace().Msgf("orphan note-off: channel=%d note=%d", e.Channel, e.Note)
		return nil
	}
	if rec.count > 1 {
		rec.count--
		return nil
	}
	delete(s.open, k)
	return rec
}

// Assemble pairs every track's events into notes. For format-1 files the
// first file track is the shared tempo track and never contributes notes,
// even if it erroneously contains NoteOn events. When config.SplitFormat0
// is set, a format-0 file's single track is exploded per channel.
func Assemble(f *smf.File, tm *timing.TempoMap) *Result {
	fileTracks := f.Tracks
	if f.Format == 1 && len(fileTracks) > 0 {
		fileTracks = fileTracks[1:]
	}

	var tracks []Track
	indexUsed := 0
	for trackIndex, raw := range fileTracks {
		track := assembleTrack(trackIndex, raw, tm)
		if len(track.NotesUsed) == 0 {
			log.Debug().Msgf("dropping track %d (%q): no notes", trackIndex, track.Name)
			continue
		}
		track.Index = indexUsed
		indexUsed++
		tracks = append(tracks, track)
	}

	if f.Format == 0 && config.SplitFormat0 && len(tracks) > 0 {
		tracks = SplitChannels(tracks[0])
	}

	return &Result{
		Format: f.Format,
		PPQN:   f.PPQN,
		Tempo:  tm.FixedTempo(),
		Tracks: tracks,
	}
}

func assembleTrack(trackIndex int, raw smf.RawTrack, tm *timing.TempoMap) Track {
	track := Track{MinNote: 1000, MaxNote: 0}
	state := newTrackState()
	for _, event := range raw.Events {
		state.advance(trackIndex, tm, event.Delta())
		switch e := event.(type) {
		case smf.TrackNameEvent:
			track.Name = e.Name
		case smf.KeySignatureEvent:
			if track.Key.Root == 0 {
				track.Key = e.Key()
			}
		case smf.NoteOnEvent:
			state.recordNoteOn(e)
			if int(e.Note) < track.MinNote {
				track.MinNote = int(e.Note)
			}
			if int(e.Note) > track.MaxNote {
				track.MaxNote = int(e.Note)
			}
			track.NotesUsed = appendIfAbsent(track.NotesUsed, int(e.Note))
		case smf.NoteOffEvent:
			rec := state.resolveNoteOff(e)
			if rec == nil {
				continue
			}
			track.Notes = append(track.Notes, Note{
				Channel:    e.Channel,
				NoteNumber: e.Note,
				TimeOn:     rec.seconds,
				TimeOff:    state.seconds,
				Velocity:   rec.velocity,
			})
		}
	}
	return track
}

// SplitChannels explodes one track into up to 16 synthetic tracks, one per
// MIDI channel carrying notes, renumbered densely from 0. Post-processing
// over an already-assembled track, not part of the parser contract.
func SplitChannels(t Track) []Track {
	var tracks []Track
	indexUsed := 0
	for channel := 0; channel < 16; channel++ {
		split := Track{
			Name:    fmt.Sprintf("%s-ch%d", t.Name, channel),
			Key:     t.Key,
			MinNote: 1000,
			MaxNote: 0,
		}
		for _, note := range t.Notes {
			if int(note.Channel) != channel {
				continue
			}
			split.Notes = append(split.Notes, note)
			if int(note.NoteNumber) < split.MinNote {
				split.MinNote = int(note.NoteNumber)
			}
			if int(note.NoteNumber) > split.MaxNote {
				split.MaxNote = int(note.NoteNumber)
			}
			split.NotesUsed = appendIfAbsent(split.NotesUsed, int(note.NoteNumber))
		}
		if len(split.NotesUsed) == 0 {
			continue
		}
		split.Index = indexUsed
		indexUsed++
		tracks = append(tracks, split)
	}
	return tracks
}

func appendIfAbsent(used []int, note int) []int {
	for _, n := range used {
		if n == note {
			return used
		}
	}
	return append(used, note)
}

// ReadFile runs the whole pipeline over one file: decode, tempo map, note
// assembly.
func ReadFile(path string) (*Result, error) {
	f, err := smf.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return Assemble(f, timing.New(f)), nil
}
