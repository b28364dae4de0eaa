package notes

// Interpolation shapes one envelope segment. Input and output are both in
// 0..1.
type Interpolation func(float64) float64

// Linear is the identity interpolation.
func Linear(t float64) float64 { return t }

// Envelope is an ADSR envelope evaluated against a note's on/off times.
// VelocitySensitivity blends the envelope value with the velocity-scaled
// value: at 0.25, the result is 75% envelope and 25% envelope*velocity.
type Envelope struct {
	AttackTime          float64
	AttackInterp        Interpolation
	DecayTime           float64
	DecayInterp         Interpolation
	SustainLevel        float64
	ReleaseTime         float64
	ReleaseInterp       Interpolation
	VelocitySensitivity float64
}

// envelopeAt evaluates the attack/decay/sustain portion at the given time,
// clamped so a released note holds whatever level it reached at timeOff.
func (env Envelope) envelopeAt(time, timeOn, timeOff float64) float64 {
	relative := min(time, timeOff) - timeOn
	if relative <= 0 {
		return 0
	}
	if relative < env.AttackTime {
		return env.AttackInterp(relative / env.AttackTime)
	}
	relative -= env.AttackTime
	if relative < env.DecayTime {
		decay := env.DecayInterp(1 - relative/env.DecayTime)
		return decay*(1-env.SustainLevel) + env.SustainLevel
	}
	return env.SustainLevel
}

// Evaluate returns the note's envelope value at the given time, applying
// the release segment after timeOff and the velocity sensitivity blend.
func (n Note) Evaluate(env Envelope, time float64) float64 {
	value := env.envelopeAt(time, n.TimeOn, n.TimeOff)
	if time > n.TimeOff {
		if env.ReleaseTime <= 0 {
			return 0
		}
		value *= env.ReleaseInterp(1 - (time-n.TimeOff)/env.ReleaseTime)
	}
	return (1-env.VelocitySensitivity)*value + env.VelocitySensitivity*n.Velocity*value
}

// Evaluate returns the loudest envelope value among the track's sounding
// notes for the given channel and note number, 0 when none sound.
func (t Track) Evaluate(env Envelope, time float64, channel, noteNumber byte) float64 {
	var best float64
	for _, note := range t.Notes {
		if note.Channel != channel || note.NoteNumber != noteNumber {
			continue
		}
		if time < note.TimeOn || time > note.TimeOff+env.ReleaseTime {
			continue
		}
		if v := note.Evaluate(env, time); v > best {
			best = v
		}
	}
	return best
}

// EvaluateAll evaluates every pitch on one channel at once, indexed by note
// number.
func (t Track) EvaluateAll(env Envelope, time float64, channel byte) [128]float64 {
	var values [128]float64
	for _, note := range t.Notes {
		if note.Channel != channel {
			continue
		}
		if time < note.TimeOn || time > note.TimeOff+env.ReleaseTime {
			continue
		}
		if v := note.Evaluate(env, time); v > values[note.NoteNumber] {
			values[note.NoteNumber] = v
		}
	}
	return values
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
