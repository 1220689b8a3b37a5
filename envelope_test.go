package xmengine

import "testing"

func TestEnvelopeValueAtEndpoints(t *testing.T) {
	env := &Envelope{
		Flags: EnvelopeEnabled,
		Points: []EnvelopePoint{
			{Frame: 0, Value: 64},
			{Frame: 10, Value: 32},
			{Frame: 20, Value: 0},
		},
	}

	if got := envelopeValue(env, 0); got != 64 {
		t.Errorf("envelope at frame 0 = %d, want first point's value 64", got)
	}
	if got := envelopeValue(env, 100); got != 0 {
		t.Errorf("envelope past last point = %d, want last point's value 0", got)
	}
	if got := envelopeValue(env, 5); got != 48 {
		t.Errorf("envelope at frame 5 = %d, want midpoint 48", got)
	}
}

func TestAdvanceEnvelopeFrameSustainFreezes(t *testing.T) {
	env := &Envelope{
		Flags:        EnvelopeEnabled | EnvelopeSustain,
		SustainPoint: 1,
		Points: []EnvelopePoint{
			{Frame: 0, Value: 64},
			{Frame: 10, Value: 32},
			{Frame: 20, Value: 0},
		},
	}

	// While key-on, the cursor must not advance past the sustain point's
	// frame.
	frame := 0
	for i := 0; i < 50; i++ {
		frame = advanceEnvelopeFrame(env, frame, true)
	}
	if frame != 10 {
		t.Errorf("sustained cursor = %d, want frozen at sustain frame 10", frame)
	}

	// After key-off it keeps going.
	frame = advanceEnvelopeFrame(env, frame, false)
	if frame != 11 {
		t.Errorf("released cursor = %d, want 11", frame)
	}
}

func TestAdvanceEnvelopeFrameLoopWraps(t *testing.T) {
	env := &Envelope{
		Flags:          EnvelopeEnabled | EnvelopeLoop,
		LoopStartPoint: 0,
		LoopEndPoint:   1,
		Points: []EnvelopePoint{
			{Frame: 5, Value: 64},
			{Frame: 10, Value: 0},
		},
	}

	if got := advanceEnvelopeFrame(env, 10, true); got != 5 {
		t.Errorf("cursor past loop end = %d, want wrapped to loop start frame 5", got)
	}
}

func TestFadeoutAppliesAfterKeyOff(t *testing.T) {
	ctx := newTestContext(t)
	ctx.module.Instruments[0].VolumeFadeout = 0x400
	ch := triggeredTestChannel(ctx)
	ch.sustained = false

	before := ch.fadeoutVolume
	ctx.advanceEnvelopes(ch)
	if ch.fadeoutVolume >= before {
		t.Errorf("fadeout volume should decay after key-off: %v -> %v", before, ch.fadeoutVolume)
	}

	for i := 0; i < 200; i++ {
		ctx.advanceEnvelopes(ch)
	}
	if ch.fadeoutVolume != 0 {
		t.Errorf("fadeout volume should clamp at 0, got %v", ch.fadeoutVolume)
	}
}
