package timing

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Patochun/M2B/internal/smf"
)

func init() {
	l := zerolog.Nop()
	log = &l
}

func trackChunk(events ...[]byte) []byte {
	var payload []byte
	for _, e := range events {
		payload = append(payload, e...)
	}
	chunk := []byte{'M', 'T', 'r', 'k',
		byte(len(payload) >> 24), byte(len(payload) >> 16), byte(len(payload) >> 8), byte(len(payload))}
	return append(chunk, payload...)
}

func midiFile(format, trackCount, ppqn uint16, chunks ...[]byte) []byte {
	out := []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6,
		byte(format >> 8), byte(format),
		byte(trackCount >> 8), byte(trackCount),
		byte(ppqn >> 8), byte(ppqn)}
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

var endOfTrack = []byte{0x00, 0xFF, 0x2F, 0x00}

// tempoAt builds a tempo meta event at the given delta.
func tempoAt(delta byte, micros uint32) []byte {
	return []byte{delta, 0xFF, 0x51, 0x03,
		byte(micros >> 16), byte(micros >> 8), byte(micros)}
}

func mustDecode(t *testing.T, data []byte) *smf.File {
	t.Helper()
	f, err := smf.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return f
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTicksToSecondsDefaultTempo(t *testing.T) {
	f := mustDecode(t, midiFile(0, 1, 480, trackChunk(endOfTrack)))
	m := New(f)

	tests := []struct {
		ticks uint64
		want  float64
	}{
		{0, 0},
		{480, 0.5},   // one quarter at 120 BPM
		{960, 1.0},
		{120, 0.125},
	}
	for _, tt := range tests {
		if got := m.TicksToSeconds(0, tt.ticks); !approx(got, tt.want) {
			t.Errorf("TicksToSeconds(0, %d) = %v, want %v", tt.ticks, got, tt.want)
		}
	}
}

func TestTicksToSecondsWithTempoChange(t *testing.T) {
	// 500000 µs/quarter from tick 0, 250000 from tick 480 (delta 0x83 0x60).
	f := mustDecode(t, midiFile(0, 1, 480, trackChunk(
		tempoAt(0, 500000),
		[]byte{0x83, 0x60, 0xFF, 0x51, 0x03, 0x03, 0xD0, 0x90},
		endOfTrack,
	)))
	m := New(f)

	tests := []struct {
		ticks uint64
		want  float64
	}{
		{0, 0},
		{480, 0.5},
		{720, 0.625}, // 240 ticks past the change at 250000 µs/quarter
		{960, 0.75},
	}
	for _, tt := range tests {
		if got := m.TicksToSeconds(0, tt.ticks); !approx(got, tt.want) {
			t.Errorf("TicksToSeconds(0, %d) = %v, want %v", tt.ticks, got, tt.want)
		}
	}
}

func TestFormat1SharedTempoTrack(t *testing.T) {
	// Track 0 halves the tempo at tick 0; track 1 would default to 120 BPM
	// if it were consulted, which it must not be.
	f := mustDecode(t, midiFile(1, 2, 480,
		trackChunk(tempoAt(0, 250000), endOfTrack),
		trackChunk(endOfTrack),
	))
	m := New(f)

	for trackIndex := 0; trackIndex < 3; trackIndex++ {
		if got := m.TicksToSeconds(trackIndex, 480); !approx(got, 0.25) {
			t.Errorf("TicksToSeconds(%d, 480) = %v, want 0.25 via shared tempo track", trackIndex, got)
		}
	}
}

func TestFormat2PerTrackTempo(t *testing.T) {
	f := mustDecode(t, midiFile(2, 2, 480,
		trackChunk(tempoAt(0, 250000), endOfTrack),
		trackChunk(endOfTrack),
	))
	m := New(f)

	if got := m.TicksToSeconds(0, 480); !approx(got, 0.25) {
		t.Errorf("track 0 = %v, want 0.25", got)
	}
	// Track 1 has no tempo events and falls back to the default.
	if got := m.TicksToSeconds(1, 480); !approx(got, 0.5) {
		t.Errorf("track 1 = %v, want 0.5 (default tempo)", got)
	}
}

func TestIncrementalBuild(t *testing.T) {
	// Second tempo record's seconds position must be measured against the
	// first record, not the default.
	f := mustDecode(t, midiFile(0, 1, 480, trackChunk(
		tempoAt(0, 1_000_000),
		[]byte{0x83, 0x60, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}, // 500000 at tick 480
		endOfTrack,
	)))
	m := New(f)

	if got := m.TicksToSeconds(0, 480); !approx(got, 1.0) {
		t.Errorf("at change = %v, want 1.0", got)
	}
	if got := m.TicksToSeconds(0, 960); !approx(got, 1.5) {
		t.Errorf("past change = %v, want 1.5", got)
	}
}

func TestTicksToSecondsIsPure(t *testing.T) {
	f := mustDecode(t, midiFile(0, 1, 480, trackChunk(
		tempoAt(0, 500000),
		endOfTrack,
	)))
	m := New(f)
	first := m.TicksToSeconds(0, 12345)
	for i := 0; i < 5; i++ {
		if got := m.TicksToSeconds(0, 12345); got != first {
			t.Fatalf("call %d = %v, first = %v", i, got, first)
		}
	}
}

func TestFixedTempo(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{
			name: "no tempo events",
			data: midiFile(0, 1, 480, trackChunk(endOfTrack)),
			want: DefaultTempo,
		},
		{
			name: "single tempo",
			data: midiFile(0, 1, 480, trackChunk(tempoAt(0, 600000), endOfTrack)),
			want: 600000,
		},
		{
			name: "restated identical tempo",
			data: midiFile(0, 1, 480, trackChunk(
				tempoAt(0, 600000),
				tempoAt(96, 600000),
				endOfTrack,
			)),
			want: 600000,
		},
		{
			name: "tempo varies",
			data: midiFile(0, 1, 480, trackChunk(
				tempoAt(0, 600000),
				tempoAt(96, 300000),
				endOfTrack,
			)),
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(mustDecode(t, tt.data))
			if got := m.FixedTempo(); got != tt.want {
				t.Errorf("FixedTempo = %d, want %d", got, tt.want)
			}
		})
	}
}
