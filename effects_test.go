package xmengine

import (
	"math"
	"testing"
)

func TestSetTempoAndBPM(t *testing.T) {
	ctx := newTestContext(t)
	ctx.module.Patterns[0].Slots[0] = Slot{EffectType: effSetTempoBPM, EffectParam: 0x10}
	ctx.module.Patterns[0].Slots[2] = Slot{EffectType: effSetTempoBPM, EffectParam: 0x7D}

	ctx.advanceTick() // row 0, tick 0
	tempo, _ := ctx.PlayingSpeed()
	if tempo != 16 {
		t.Fatalf("tempo after F10 = %d, want 16", tempo)
	}

	// Finish row 0 (15 remaining ticks at the new tempo), then process
	// row 1's tick 0, which carries F7D.
	for ctx.currentTick != 0 {
		ctx.advanceTick()
	}
	ctx.advanceTick()
	_, bpm := ctx.PlayingSpeed()
	if bpm != 125 {
		t.Errorf("bpm after F7D = %d, want 125", bpm)
	}
}

func TestSamplesPerTickTimebase(t *testing.T) {
	mod := newTestModule()
	ctx := NewContext(mod, 48000)
	if got := ctx.samplesPerTick(); got != 960 {
		t.Errorf("samplesPerTick at 48000 Hz / 125 bpm = %v, want 960", got)
	}
}

func TestPositionJumpTargetsTableIndex(t *testing.T) {
	mod := newTestModule()
	mod.Length = 3
	ctx := NewContext(mod, 44100)
	ctx.Seek(2, 0, 0)
	ctx.currentPattern().Slots[0] = Slot{EffectType: effPositionJump, EffectParam: 0x01}

	for i := 0; i < ctx.tempo; i++ {
		ctx.advanceTick()
	}

	table, _, row := ctx.GetPosition()
	if table != 1 || row != 0 {
		t.Errorf("position after B01 = (%d,%d), want (1,0)", table, row)
	}
	if ctx.LoopCount() != 0 {
		t.Errorf("loopCount after a backward jump = %d, want 0", ctx.LoopCount())
	}
}

func TestPatternBreakRowEncoding(t *testing.T) {
	mod := newTestModule()
	mod.Length = 2
	mod.Patterns[0].NumRows = 64
	mod.Patterns[0].Slots = make([]Slot, 64*2)
	ctx := NewContext(mod, 44100)
	// D23 breaks to row 2*10+3 = 23 of the next pattern.
	ctx.currentPattern().Slots[0] = Slot{EffectType: effPatternBreak, EffectParam: 0x23}

	for i := 0; i < ctx.tempo; i++ {
		ctx.advanceTick()
	}

	table, _, row := ctx.GetPosition()
	if table != 1 || row != 23 {
		t.Errorf("position after D23 = (%d,%d), want (1,23)", table, row)
	}
}

func TestPatternLoopPlaysRowsThreeTimes(t *testing.T) {
	mod := newTestModule()
	mod.Patterns[0].NumRows = 16
	mod.Patterns[0].Slots = make([]Slot, 16*2)
	ctx := NewContext(mod, 44100)
	pat := ctx.currentPattern()
	pat.Slots[4*2] = Slot{EffectType: effExtended, EffectParam: 0x60} // E60 at row 4
	pat.Slots[7*2] = Slot{EffectType: effExtended, EffectParam: 0x62} // E62 at row 7

	visits := make(map[int]int)
	for i := 0; i < 400; i++ {
		if ctx.currentTick == 0 {
			if ctx.currentRow > 7 {
				break
			}
			visits[ctx.currentRow]++
		}
		ctx.advanceTick()
	}

	// Rows 4..7 play 3 times total: once through, then twice more from
	// the E62 loop jumps.
	for row := 4; row <= 7; row++ {
		if visits[row] != 3 {
			t.Errorf("row %d visited %d times, want 3", row, visits[row])
		}
	}
}

func TestPositionJumpWithPatternBreakCombines(t *testing.T) {
	mod := newTestModule()
	mod.Length = 3
	mod.Patterns[0].NumRows = 64
	mod.Patterns[0].Slots = make([]Slot, 64*2)
	ctx := NewContext(mod, 44100)
	ctx.Seek(2, 0, 0)
	pat := ctx.currentPattern()
	// Bxx supplies the table index, Dxx the row, when both share a row.
	pat.Slots[0] = Slot{EffectType: effPositionJump, EffectParam: 0x01}
	pat.Slots[1] = Slot{EffectType: effPatternBreak, EffectParam: 0x17}

	for i := 0; i < ctx.tempo; i++ {
		ctx.advanceTick()
	}

	table, _, row := ctx.GetPosition()
	if table != 1 || row != 17 {
		t.Errorf("position after B01+D17 = (%d,%d), want (1,17)", table, row)
	}
}

func TestRampWaveformFullPeriod(t *testing.T) {
	// One full ramp per 64-step cycle, matching the sine/square periods.
	if got := waveformValue(1, 0); got != 127 {
		t.Errorf("ramp at offset 0 = %d, want 127", got)
	}
	if got := waveformValue(1, 63); got != 127-63*4 {
		t.Errorf("ramp at offset 63 = %d, want %d", got, 127-63*4)
	}
	if waveformValue(1, 32) == waveformValue(1, 0) {
		t.Errorf("ramp must not repeat mid-cycle at offset 32")
	}
	if waveformValue(1, 64) != waveformValue(1, 0) {
		t.Errorf("ramp must wrap after a full 64-step cycle")
	}
	for i := 1; i < 64; i++ {
		if waveformValue(1, i) >= waveformValue(1, i-1) {
			t.Fatalf("ramp down must decrease monotonically within a cycle, offset %d", i)
		}
	}
}

func TestMultiRetrigVolumeSlideTable(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	slot := &Slot{}

	// Nibble 3 slides by -4/64, not -3/64.
	ch.volume = 0.5
	ch.retriggerMemory = 1
	ch.retriggerVolSlide = 3
	applyMultiRetrig(ctx, ch, slot, 1)
	if want := 0.5 - 4.0/64.0; ch.volume != want {
		t.Errorf("volume after Rx3 = %v, want %v", ch.volume, want)
	}
	if ch.samplePosition != 0 {
		t.Errorf("retrigger should reset the oscillator, position = %v", ch.samplePosition)
	}

	// Nibble 0xB slides by +4/64.
	ch.volume = 0.5
	ch.retriggerVolSlide = 0xB
	applyMultiRetrig(ctx, ch, slot, 1)
	if want := 0.5 + 4.0/64.0; ch.volume != want {
		t.Errorf("volume after RxB = %v, want %v", ch.volume, want)
	}
}

func TestVolumeSlideDirections(t *testing.T) {
	ctx := newTestContext(t)
	ch := &ctx.channels[0]

	ch.volume = 0.5
	applyVolumeSlide(ch, 0x40)
	if ch.volume <= 0.5 {
		t.Errorf("high-nibble slide should raise volume, got %v", ch.volume)
	}

	ch.volume = 0.5
	applyVolumeSlide(ch, 0x04)
	if ch.volume >= 0.5 {
		t.Errorf("low-nibble slide should lower volume, got %v", ch.volume)
	}
}

func TestArpeggioSetsOffsets(t *testing.T) {
	ctx := newTestContext(t)
	ch := &ctx.channels[0]
	slot := &Slot{EffectType: effArpeggio, EffectParam: 0x37}

	ctx.applyRowEffect(ch, slot)
	if ch.arpeggioOffsets != [3]int{0, 3, 7} {
		t.Errorf("arpeggio offsets = %v, want [0 3 7]", ch.arpeggioOffsets)
	}
}

func TestTonePortaApproachesWithoutOvershoot(t *testing.T) {
	ctx := newTestContext(t)
	ch := &ctx.channels[0]
	ch.period = 1000
	ch.tonePortaTarget = 1010
	ch.tonePortaSpeed = 4

	applyTonePorta(ch)
	applyTonePorta(ch)
	applyTonePorta(ch)
	if ch.period != 1010 {
		t.Errorf("period after three 4-unit steps toward 1010 = %v, want exactly 1010", ch.period)
	}
}

func TestNoteDelayPostponesTrigger(t *testing.T) {
	ctx := newTestContext(t)
	ctx.module.Patterns[0].Slots[0] = Slot{
		Note: 49, Instrument: 1,
		EffectType: effExtended, EffectParam: 0xD2, // ED2: delay to tick 2
	}

	ctx.advanceTick() // tick 0
	if ctx.channels[0].sample != nil {
		t.Fatalf("note should not have triggered on tick 0 under ED2")
	}

	ctx.advanceTick() // tick 1
	ctx.advanceTick() // tick 2
	if ctx.channels[0].sample == nil {
		t.Errorf("note should have triggered once tick 2 was processed")
	}
}

func TestNoteCutSilencesAtTick(t *testing.T) {
	ctx := newTestContext(t)
	ctx.module.Patterns[0].Slots[0] = Slot{
		Note: 49, Instrument: 1,
		EffectType: effExtended, EffectParam: 0xC1, // EC1: cut at tick 1
	}

	ctx.advanceTick() // tick 0, note triggers
	if ctx.channels[0].volume == 0 {
		t.Fatalf("note should be audible before the cut tick")
	}
	ctx.advanceTick() // tick 1, cut
	if ctx.channels[0].volume != 0 {
		t.Errorf("channel volume after EC1 = %v, want 0", ctx.channels[0].volume)
	}
}

func TestGlobalVolumeScalesOutput(t *testing.T) {
	ctx := newTestContext(t)
	ch := triggeredTestChannel(ctx)
	// Pin the ramped gains at their targets so both frames mix with
	// identical per-channel gain.
	target := math.Sqrt(0.5)
	ch.actualVolumeL, ch.actualVolumeR = target, target
	ch.samplePosition = 10 // nonzero PCM in the fixture

	out := make([]float32, 2)
	mixFrame(ctx, out)
	loud := out[0]
	if loud == 0 {
		t.Fatalf("expected nonzero output from the fixture sample")
	}

	ctx.globalVolume = 0.5
	ch.samplePosition = 10
	mixFrame(ctx, out)
	if out[0] != loud/2 {
		t.Errorf("halving global volume should halve output: %v then %v", loud, out[0])
	}
}

func TestVolumeColumnSetsVolumeAndPanning(t *testing.T) {
	ctx := newTestContext(t)
	ch := &ctx.channels[0]

	ctx.applyVolumeColumn(ch, 0x30) // set volume 0x20/64
	if ch.volume != float64(0x20)/64.0 {
		t.Errorf("volume after vc 0x30 = %v, want %v", ch.volume, float64(0x20)/64.0)
	}

	ctx.applyVolumeColumn(ch, 0xC8) // set panning 8/15
	if ch.panning != 8.0/15.0 {
		t.Errorf("panning after vc 0xC8 = %v, want %v", ch.panning, 8.0/15.0)
	}
}

func TestRowLoopCountStaysBounded(t *testing.T) {
	ctx := newTestContext(t)
	ch := &ctx.channels[0]
	ch.patternLoopRow = 0

	for i := 0; i < 1000; i++ {
		ctx.applyPatternLoop(ch, 2)
	}
	for _, c := range ctx.rowLoopCount {
		if c > 255 {
			t.Fatalf("rowLoopCount entry exceeded 255")
		}
	}
}
