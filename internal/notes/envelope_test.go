package notes

import (
	"testing"
)

func testEnvelope() Envelope {
	return Envelope{
		AttackTime:    1,
		AttackInterp:  Linear,
		DecayTime:     1,
		DecayInterp:   Linear,
		SustainLevel:  0.5,
		ReleaseTime:   1,
		ReleaseInterp: Linear,
	}
}

func TestNoteEvaluate(t *testing.T) {
	env := testEnvelope()
	note := Note{TimeOn: 0, TimeOff: 4, Velocity: 1}

	tests := []struct {
		name string
		time float64
		want float64
	}{
		{"before onset", -1, 0},
		{"at onset", 0, 0},
		{"mid attack", 0.5, 0.5},
		{"attack peak", 1, 1},
		{"mid decay", 1.5, 0.75},
		{"sustain", 3, 0.5},
		{"mid release", 4.5, 0.25},
		{"release done", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := note.Evaluate(env, tt.time); !approx(got, tt.want) {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.time, got, tt.want)
			}
		})
	}
}

func TestNoteEvaluateInstantAttack(t *testing.T) {
	env := testEnvelope()
	env.AttackTime = 0
	env.DecayTime = 0
	note := Note{TimeOn: 0, TimeOff: 2, Velocity: 1}

	if got := note.Evaluate(env, 1); !approx(got, env.SustainLevel) {
		t.Errorf("Evaluate = %v, want sustain level %v", got, env.SustainLevel)
	}
}

func TestNoteEvaluateVelocitySensitivity(t *testing.T) {
	env := testEnvelope()
	note := Note{TimeOn: 0, TimeOff: 4, Velocity: 0.5}

	// Insensitive: velocity ignored.
	if got := note.Evaluate(env, 3); !approx(got, 0.5) {
		t.Errorf("sensitivity 0 = %v, want 0.5", got)
	}
	// Fully sensitive: envelope scaled by velocity.
	env.VelocitySensitivity = 1
	if got := note.Evaluate(env, 3); !approx(got, 0.25) {
		t.Errorf("sensitivity 1 = %v, want 0.25", got)
	}
	// A 25% blend keeps 75% envelope and 25% velocity-scaled envelope.
	env.VelocitySensitivity = 0.25
	if got := note.Evaluate(env, 3); !approx(got, 0.75*0.5+0.25*0.25) {
		t.Errorf("sensitivity 0.25 = %v", got)
	}
}

func TestTrackEvaluateMaxOfSoundingNotes(t *testing.T) {
	env := testEnvelope()
	track := Track{
		Notes: []Note{
			{Channel: 0, NoteNumber: 60, TimeOn: 0, TimeOff: 4, Velocity: 1},
			{Channel: 0, NoteNumber: 60, TimeOn: 2.5, TimeOff: 8, Velocity: 1},
			{Channel: 1, NoteNumber: 60, TimeOn: 0, TimeOff: 8, Velocity: 1}, // other channel
		},
	}

	// At t=3 the first note sustains at 0.5 and the second is mid-attack
	// at 0.5; by t=3.5 the second's attack reaches 1.
	if got := track.Evaluate(env, 3.5, 0, 60); !approx(got, 1) {
		t.Errorf("Evaluate = %v, want 1", got)
	}
	// Outside every window.
	if got := track.Evaluate(env, 20, 0, 60); got != 0 {
		t.Errorf("Evaluate past all notes = %v, want 0", got)
	}
	// No notes on that pitch.
	if got := track.Evaluate(env, 3, 0, 72); got != 0 {
		t.Errorf("Evaluate unused pitch = %v, want 0", got)
	}
}

func TestTrackEvaluateAll(t *testing.T) {
	env := testEnvelope()
	track := Track{
		Notes: []Note{
			{Channel: 0, NoteNumber: 60, TimeOn: 0, TimeOff: 4, Velocity: 1},
			{Channel: 0, NoteNumber: 64, TimeOn: 0, TimeOff: 4, Velocity: 1},
			{Channel: 9, NoteNumber: 36, TimeOn: 0, TimeOff: 4, Velocity: 1},
		},
	}
	values := track.EvaluateAll(env, 3, 0)
	if !approx(values[60], 0.5) || !approx(values[64], 0.5) {
		t.Errorf("values[60]=%v values[64]=%v, want 0.5 each", values[60], values[64])
	}
	if values[36] != 0 {
		t.Errorf("values[36] = %v, want 0 (other channel)", values[36])
	}
	for n, v := range values {
		if n != 60 && n != 64 && v != 0 {
			t.Errorf("values[%d] = %v, want 0", n, v)
		}
	}
}
