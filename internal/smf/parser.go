// Package smf decodes Standard MIDI Files into raw per-track event lists.
// It is the byte-level half of the pipeline: the timing and notes packages
// turn its output into timed note tracks.
//
// References:
// - MIDI file format: http://www.somascape.org/midi/tech/mfile.html
// - Running status: http://midi.teragonaudio.com/tech/midispec/run.htm
package smf

import (
	"fmt"
	"os"

	"github.com/Patochun/M2B/internal/config"
	"github.com/Patochun/M2B/internal/logging"
)

var log = logging.For("smf")

// File is the raw decoded form of one Standard MIDI File.
type File struct {
	Format int
	PPQN   int
	Tracks []RawTrack
}

// RawTrack is one track chunk's ordered event list, terminated by an
// EndOfTrackEvent.
type RawTrack struct {
	Events []Event
}

// parseState carries the running status byte across events of one track.
// Each track starts with no running status.
type parseState struct {
	runningStatus byte
}

var channelDecoders = map[byte]func(delta uint32, channel byte, c *Cursor) (Event, error){
	0x80: decodeNoteOff,
	0x90: decodeNoteOn,
	0xA0: decodePolyPressure,
	0xB0: decodeController,
	0xC0: decodeProgram,
	0xD0: decodeChannelPressure,
	0xE0: decodePitchBend,
}

func decodeNoteOff(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	return NoteOffEvent{base{delta}, channel, b[0], b[1]}, nil
}

func decodeNoteOn(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	// A NoteOn with zero velocity is the running-status idiom for NoteOff.
	// Normalizing here means the note assembler only ever sees NoteOff.
	if b[1] == 0 {
		return NoteOffEvent{base{delta}, channel, b[0], 0}, nil
	}
	return NoteOnEvent{base{delta}, channel, b[0], b[1]}, nil
}

func decodePolyPressure(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	return PolyPressureEvent{base{delta}, channel, b[0], b[1]}, nil
}

func decodeController(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	return ControllerEvent{base{delta}, channel, b[0], b[1]}, nil
}

func decodeProgram(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	return ProgramEvent{base{delta}, channel, b}, nil
}

func decodeChannelPressure(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	return ChannelPressureEvent{base{delta}, channel, b}, nil
}

func decodePitchBend(delta uint32, channel byte, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	return PitchBendEvent{base{delta}, channel, b[0], b[1]}, nil
}

var metaDecoders = map[byte]func(delta uint32, length int, c *Cursor) (Event, error){
	0x00: decodeSequenceNumber,
	0x01: textDecoder(func(d uint32, s string) Event { return TextEvent{base{d}, s} }),
	0x02: textDecoder(func(d uint32, s string) Event { return CopyrightEvent{base{d}, s} }),
	0x03: textDecoder(func(d uint32, s string) Event { return TrackNameEvent{base{d}, s} }),
	0x04: textDecoder(func(d uint32, s string) Event { return InstrumentNameEvent{base{d}, s} }),
	0x05: textDecoder(func(d uint32, s string) Event { return LyricEvent{base{d}, s} }),
	0x06: textDecoder(func(d uint32, s string) Event { return MarkerEvent{base{d}, s} }),
	0x07: textDecoder(func(d uint32, s string) Event { return CuePointEvent{base{d}, s} }),
	0x08: textDecoder(func(d uint32, s string) Event { return ProgramNameEvent{base{d}, s} }),
	0x09: textDecoder(func(d uint32, s string) Event { return DeviceNameEvent{base{d}, s} }),
	0x20: decodeChannelPrefix,
	0x21: decodePort,
	0x2F: decodeEndOfTrack,
	0x51: decodeTempo,
	0x54: decodeSMPTEOffset,
	0x58: decodeTimeSignature,
	0x59: decodeKeySignature,
	0x7F: decodeSequencer,
}

func textDecoder(construct func(delta uint32, text string) Event) func(uint32, int, *Cursor) (Event, error) {
	return func(delta uint32, length int, c *Cursor) (Event, error) {
		b, err := c.ReadBytes(length)
		if err != nil {
			return nil, err
		}
		return construct(delta, decodeLatin1(b)), nil
	}
}

func decodeSequenceNumber(delta uint32, length int, c *Cursor) (Event, error) {
	n, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	return SequenceNumberEvent{base{delta}, n}, nil
}

func decodeChannelPrefix(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	return ChannelPrefixEvent{base{delta}, b}, nil
}

func decodePort(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	return PortEvent{base{delta}, b}, nil
}

func decodeEndOfTrack(delta uint32, length int, c *Cursor) (Event, error) {
	return EndOfTrackEvent{base{delta}}, nil
}

func decodeTempo(delta uint32, length int, c *Cursor) (Event, error) {
	t, err := c.ReadU24()
	if err != nil {
		return nil, err
	}
	return TempoEvent{base{delta}, t}, nil
}

func decodeSMPTEOffset(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(5)
	if err != nil {
		return nil, err
	}
	return SMPTEOffsetEvent{base{delta}, b[0], b[1], b[2], b[3], b[4]}, nil
}

func decodeTimeSignature(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	return TimeSignatureEvent{base{delta}, b[0], b[1], b[2], b[3]}, nil
}

func decodeKeySignature(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return nil, err
	}
	return KeySignatureEvent{base{delta}, int8(b[0]), b[1]}, nil
}

func decodeSequencer(delta uint32, length int, c *Cursor) (Event, error) {
	b, err := c.ReadBytes(length)
	if err != nil {
		return nil, err
	}
	return SequencerEvent{base{delta}, append([]byte(nil), b...)}, nil
}

func parseMetaEvent(delta uint32, c *Cursor) (Event, error) {
	eventType, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	length, err := c.ReadVLQ()
	if err != nil {
		return nil, err
	}
	decode, ok := metaDecoders[eventType]
	if !ok {
		if config.StrictMeta {
			return nil, fmt.Errorf("%w: 0x%02X at offset %d", ErrUnknownMetaType, eventType, c.Pos())
		}
		// Length is VLQ-declared, so the payload can be skipped whole.
		// Vendor-specific meta types are common in files from DAWs.
		b, err := c.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		log.Debug().Msgf("skipping unknown meta event type 0x%02X (%d bytes)", eventType, length)
		return UnknownMetaEvent{base{delta}, eventType, append([]byte(nil), b...)}, nil
	}
	return decode(delta, int(length), c)
}

func parseSysExEvent(delta uint32, status byte, c *Cursor) (Event, error) {
	length, err := c.ReadVLQ()
	if err != nil {
		return nil, err
	}
	b, err := c.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), b...)
	if status == 0xF0 {
		return SysExEvent{base{delta}, data}, nil
	}
	return EscapeSequenceEvent{base{delta}, data}, nil
}

func parseChannelEvent(delta uint32, status byte, c *Cursor) (Event, error) {
	decode, ok := channelDecoders[status&0xF0]
	if !ok {
		// Only the system-common range 0xF1-0xF6 lands here; those bytes
		// have no business inside a file.
		return nil, fmt.Errorf("unexpected status byte 0x%02X at offset %d", status, c.Pos())
	}
	return decode(delta, status&0x0F, c)
}

// parseEvent decodes one event. The byte after the delta-time is a new
// status byte only if its high bit is set; otherwise the previous running
// status applies and that byte is the event's first data byte.
func parseEvent(c *Cursor, st *parseState) (Event, error) {
	delta, err := c.ReadVLQ()
	if err != nil {
		return nil, err
	}
	status, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	if status&0x80 != 0 {
		st.runningStatus = status
	} else {
		c.Unread()
	}

	switch rs := st.runningStatus; {
	case rs == 0xFF:
		return parseMetaEvent(delta, c)
	case rs == 0xF0 || rs == 0xF7:
		return parseSysExEvent(delta, rs, c)
	case rs >= 0x80:
		return parseChannelEvent(delta, rs, c)
	default:
		return nil, fmt.Errorf("data byte 0x%02X with no running status at offset %d", status, c.Pos())
	}
}

// parseEvents decodes a track's event stream, stopping at EndOfTrack.
func parseEvents(c *Cursor) ([]Event, error) {
	var events []Event
	st := &parseState{}
	for {
		event, err := parseEvent(c, st)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
		if _, done := event.(EndOfTrackEvent); done {
			return events, nil
		}
	}
}

// Decode parses a whole Standard MIDI File from memory.
//
// The header identifier is not validated; only the declared chunk length is
// trusted. After each track the cursor seeks to chunkStart+declaredLength
// rather than trusting the EndOfTrack position, so trailing garbage inside
// a chunk cannot shift the next chunk's header read.
func Decode(data []byte) (*File, error) {
	c := NewCursor(data)

	if _, err := c.ReadBytes(4); err != nil {
		return nil, fmt.Errorf("reading header identifier: %w", err)
	}
	headerLength, err := c.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("reading header length: %w", err)
	}
	headerStart := c.Pos()
	format, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading format: %w", err)
	}
	trackCount, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading track count: %w", err)
	}
	ppqn, err := c.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("reading ppqn: %w", err)
	}
	if err := c.Seek(headerStart + int(headerLength)); err != nil {
		return nil, fmt.Errorf("skipping header chunk: %w", err)
	}

	f := &File{
		Format: int(format),
		PPQN:   int(ppqn),
		Tracks: make([]RawTrack, 0, trackCount),
	}
	log.Debug().Msgf("header: format=%d tracks=%d ppqn=%d", format, trackCount, ppqn)

	for i := 0; i < int(trackCount); i++ {
		if _, err := c.ReadBytes(4); err != nil {
			return nil, fmt.Errorf("track %d: reading chunk identifier: %w", i, err)
		}
		chunkLength, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("track %d: reading chunk length: %w", i, err)
		}
		chunkStart := c.Pos()
		events, err := parseEvents(c)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		if consumed := c.Pos() - chunkStart; consumed != int(chunkLength) {
			log.Debug().Msgf("track %d: consumed %d bytes of %d declared", i, consumed, chunkLength)
		}
		if err := c.Seek(chunkStart + int(chunkLength)); err != nil {
			return nil, fmt.Errorf("track %d: seeking past chunk: %w", i, err)
		}
		f.Tracks = append(f.Tracks, RawTrack{Events: events})
	}
	return f, nil
}

// DecodeFile reads and parses a Standard MIDI File from disk.
func DecodeFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return f, nil
}
