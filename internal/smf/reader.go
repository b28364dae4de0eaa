package smf

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when fewer bytes remain than a field declares.
	ErrTruncated = errors.New("truncated MIDI data")

	// ErrMalformedVLQ is returned when a variable-length quantity keeps its
	// continuation bit set past the four-byte bound.
	ErrMalformedVLQ = errors.New("malformed variable-length quantity")

	// ErrUnknownMetaType is returned for meta event types outside the
	// recognized set when config.StrictMeta is enabled.
	ErrUnknownMetaType = errors.New("unknown meta event type")
)

// Cursor is a sequential reader over an immutable byte buffer. Reads past
// the end fail with ErrTruncated; the buffer is never written to.
type Cursor struct {
	data []byte
	pos  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos reports the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Seek moves the cursor to an absolute offset. Seeking past the end of the
// buffer fails; seeking to exactly the end is legal.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.data) {
		return fmt.Errorf("%w: seek to offset %d of %d", ErrTruncated, pos, len(c.data))
	}
	c.pos = pos
	return nil
}

// ReadBytes returns the next n bytes as a subslice of the backing buffer.
// Callers must treat the result as read-only.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, c.pos, len(c.data)-c.pos)
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) ReadU8() (byte, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (c *Cursor) ReadU24() (uint32, error) {
	b, err := c.ReadBytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadVLQ decodes a MIDI variable-length quantity: big-endian base-128 with
// the high bit as continuation flag. Real delta-times never exceed four
// bytes, so a fourth byte with its continuation bit still set means the
// input is corrupt; failing here keeps corrupt files from looping forever.
func (c *Cursor) ReadVLQ() (uint32, error) {
	var total uint32
	for i := 0; i < 4; i++ {
		b, err := c.ReadU8()
		if err != nil {
			return 0, err
		}
		total = total<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return total, nil
		}
	}
	return 0, fmt.Errorf("%w: continuation past four bytes at offset %d", ErrMalformedVLQ, c.pos)
}

// Unread steps back one byte. Used by the stream parser when the byte after
// a delta-time turns out to be the first data byte of a running-status
// event rather than a new status byte.
func (c *Cursor) Unread() {
	if c.pos > 0 {
		c.pos--
	}
}
