package smf

import (
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/music-theory.v0/key"
)

// Event is one decoded track event. Every variant carries the tick distance
// from the previous event in the same track.
type Event interface {
	Delta() uint32
}

type base struct {
	DeltaTime uint32
}

func (b base) Delta() uint32 { return b.DeltaTime }

// Channel voice events, status 0x80-0xEF. The low nibble of the status byte
// is the channel.

type NoteOffEvent struct {
	base
	Channel  byte
	Note     byte
	Velocity byte
}

type NoteOnEvent struct {
	base
	Channel  byte
	Note     byte
	Velocity byte
}

type PolyPressureEvent struct {
	base
	Channel  byte
	Note     byte
	Pressure byte
}

type ControllerEvent struct {
	base
	Channel    byte
	Controller byte
	Value      byte
}

type ProgramEvent struct {
	base
	Channel byte
	Program byte
}

type ChannelPressureEvent struct {
	base
	Channel  byte
	Pressure byte
}

type PitchBendEvent struct {
	base
	Channel byte
	LSB     byte
	MSB     byte
}

// Value assembles the 14-bit bend value from the two 7-bit data bytes.
func (e PitchBendEvent) Value() uint16 {
	return uint16(e.MSB)<<7 | uint16(e.LSB)
}

// Meta events, status 0xFF plus a type byte and a VLQ-declared length.

type SequenceNumberEvent struct {
	base
	Number uint16
}

type TextEvent struct {
	base
	Text string
}

type CopyrightEvent struct {
	base
	Copyright string
}

type TrackNameEvent struct {
	base
	Name string
}

type InstrumentNameEvent struct {
	base
	Name string
}

type LyricEvent struct {
	base
	Lyric string
}

type MarkerEvent struct {
	base
	Marker string
}

type CuePointEvent struct {
	base
	CuePoint string
}

type ProgramNameEvent struct {
	base
	Name string
}

type DeviceNameEvent struct {
	base
	Name string
}

type ChannelPrefixEvent struct {
	base
	Prefix byte
}

type PortEvent struct {
	base
	Port byte
}

type EndOfTrackEvent struct {
	base
}

type TempoEvent struct {
	base
	// MicrosPerQuarter is the 24-bit tempo payload, microseconds per
	// quarter note.
	MicrosPerQuarter uint32
}

// BPM converts the tempo payload to beats per minute.
func (e TempoEvent) BPM() float64 {
	if e.MicrosPerQuarter == 0 {
		return 0
	}
	return 60_000_000 / float64(e.MicrosPerQuarter)
}

type SMPTEOffsetEvent struct {
	base
	Hours            byte
	Minutes          byte
	Seconds          byte
	Frames           byte
	FractionalFrames byte
}

type TimeSignatureEvent struct {
	base
	Numerator                byte
	Denominator              byte
	ClocksPerClick           byte
	ThirtySecondsPer24Clocks byte
}

type KeySignatureEvent struct {
	base
	// SharpsFlats is the number of sharps (positive) or flats (negative).
	SharpsFlats int8
	// Minor is 0 for major, 1 for minor.
	Minor byte
}

// keySigNames spans -7 flats to +7 sharps along the circle of fifths.
var keySigNames = []string{
	"Cb", "Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#",
}

// Key interprets the signature as a music-theory key.
func (e KeySignatureEvent) Key() key.Key {
	idx := int(e.SharpsFlats) + 7
	if idx < 0 {
		idx = 0
	}
	if idx >= len(keySigNames) {
		idx = len(keySigNames) - 1
	}
	mode := "major"
	if e.Minor == 1 {
		mode = "minor"
	}
	return key.Of(keySigNames[idx] + " " + mode)
}

type SequencerEvent struct {
	base
	Data []byte
}

// UnknownMetaEvent holds a meta event outside the recognized type set,
// skipped by its declared length when config.StrictMeta is off.
type UnknownMetaEvent struct {
	base
	Type byte
	Data []byte
}

// System-exclusive events.

type SysExEvent struct {
	base
	Data []byte
}

type EscapeSequenceEvent struct {
	base
	Data []byte
}

// decodeLatin1 decodes a text meta payload as ISO 8859-1. MIDI text predates
// UTF-8 and files in the wild carry arbitrary high bytes, so every byte maps
// to a character rather than failing.
func decodeLatin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
