package xmengine

import "testing"

func TestSlotHasNote(t *testing.T) {
	cases := []struct {
		slot Slot
		want bool
	}{
		{Slot{Note: 0}, false},
		{Slot{Note: 1}, true},
		{Slot{Note: 96}, true},
		{Slot{Note: 97}, false},
	}
	for _, c := range cases {
		if got := c.slot.HasNote(); got != c.want {
			t.Errorf("Slot{Note: %d}.HasNote() = %v, want %v", c.slot.Note, got, c.want)
		}
	}
}

func TestSlotIsKeyOff(t *testing.T) {
	if (Slot{Note: 97}).IsKeyOff() != true {
		t.Errorf("Note 97 should be key-off")
	}
	if (Slot{Note: 1}).IsKeyOff() != false {
		t.Errorf("Note 1 should not be key-off")
	}
}

func TestEffectiveLoopTypeDegradesMalformedLoop(t *testing.T) {
	smp := Sample{LoopType: LoopForward, LoopStart: 10, LoopEnd: 10}
	if got := smp.effectiveLoopType(); got != LoopNone {
		t.Errorf("effectiveLoopType() = %v, want LoopNone for loop_end <= loop_start", got)
	}

	smp2 := Sample{LoopType: LoopForward, LoopStart: 0, LoopEnd: 10}
	if got := smp2.effectiveLoopType(); got != LoopForward {
		t.Errorf("effectiveLoopType() = %v, want LoopForward", got)
	}
}

func TestCheckSanityPostloadAcceptsFixture(t *testing.T) {
	mod := newTestModule()
	if err := checkSanityPostload(mod); err != nil {
		t.Fatalf("fixture module should validate: %v", err)
	}
}

func TestCheckSanityPostloadRejectsBadChannelCount(t *testing.T) {
	mod := newTestModule()
	mod.NumChannels = 0
	if err := checkSanityPostload(mod); err == nil {
		t.Fatalf("expected error for num_channels 0")
	}
}

func TestCheckSanityPostloadRejectsOutOfRangePatternTableEntry(t *testing.T) {
	mod := newTestModule()
	mod.PatternTable[0] = 5
	if err := checkSanityPostload(mod); err == nil {
		t.Fatalf("expected error for pattern_table entry referencing a missing pattern")
	}
}

func TestCheckSanityPostloadRejectsNonIncreasingEnvelope(t *testing.T) {
	mod := newTestModule()
	mod.Instruments[0].VolumeEnvelope = Envelope{
		Flags:  EnvelopeEnabled,
		Points: []EnvelopePoint{{Frame: 5, Value: 64}, {Frame: 5, Value: 0}},
	}
	if err := checkSanityPostload(mod); err == nil {
		t.Fatalf("expected error for non-increasing envelope frames")
	}
}

func TestCheckSanityPostloadRejectsBadLoopBounds(t *testing.T) {
	mod := newTestModule()
	mod.Instruments[0].Samples[0].LoopStart = 10
	mod.Instruments[0].Samples[0].LoopEnd = 5
	if err := checkSanityPostload(mod); err == nil {
		t.Fatalf("expected error for loop_start > loop_end")
	}
}
