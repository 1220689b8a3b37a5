package xmengine

import "math"

// effects.go is the Protracker/FT2 effect table. Row-time effects (set
// tempo, jumps, pattern loop, sample offset, ...) run once when a row is
// triggered; tick-time effects (slides, LFOs, arpeggio, retrigger) run on
// every subsequent tick of that row. Unknown opcodes fall through every
// switch below and so load fine but play as no-ops.

const (
	effArpeggio            = 0
	effPortaUp             = 1
	effPortaDown           = 2
	effTonePorta           = 3
	effVibrato             = 4
	effTonePortaVolSlide   = 5
	effVibratoVolSlide     = 6
	effTremolo             = 7
	effSetPanning          = 8
	effSampleOffset        = 9
	effVolumeSlide         = 10 // A
	effPositionJump        = 11 // B
	effSetVolume           = 12 // C
	effPatternBreak        = 13 // D
	effExtended            = 14 // E
	effSetTempoBPM         = 15 // F
	effSetGlobalVolume     = 16 // G
	effGlobalVolumeSlide   = 17 // H
	effKeyOff              = 20 // K
	effSetEnvelopePosition = 21 // L
	effPanningSlide        = 25 // P
	effMultiRetrig         = 27 // R
	effTremor              = 29 // T
	effExtraFinePorta      = 33 // X

	// Extended (Exy) sub-effects, keyed by the high nibble of the param.
	extFinePortaUp      = 0x1
	extFinePortaDown    = 0x2
	extGlissando        = 0x3
	extVibratoControl   = 0x4
	extSetFinetune      = 0x5
	extPatternLoop      = 0x6
	extTremoloControl   = 0x7
	extRetrigger        = 0x9
	extFineVolSlideUp   = 0xA
	extFineVolSlideDown = 0xB
	extNoteCut          = 0xC
	extNoteDelay        = 0xD
	extPatternDelay     = 0xE
)

// applyRowEffect runs the row-time portion of a slot's effect: one-shot
// sets, jump/break/loop requests, and memory updates.
func (ctx *Context) applyRowEffect(ch *Channel, slot *Slot) {
	p := slot.EffectParam
	switch slot.EffectType {
	case effPortaUp:
		if p != 0 {
			ch.portaUpMemory = p
		}
	case effPortaDown:
		if p != 0 {
			ch.portaDownMemory = p
		}
	case effTonePorta:
		if p != 0 {
			ch.tonePortaSpeed = p
		}
	case effTonePortaVolSlide:
		if p != 0 {
			ch.volumeSlideMemory = p
		}
	case effArpeggio:
		ch.arpeggioOffsets[1] = int(p >> 4)
		ch.arpeggioOffsets[2] = int(p & 0xF)
	case effVibrato:
		setVibratoParams(&ch.vibrato, p)
	case effVibratoVolSlide:
		if p != 0 {
			ch.volumeSlideMemory = p
		}
	case effTremolo:
		setVibratoParams(&ch.tremolo, p)
	case effSetPanning:
		ch.panning = float64(p) / 255.0
	case effSampleOffset:
		if p != 0 {
			ch.sampleOffsetMemory = int(p) * 256
		}
		// Only a note trigger on the same row actually starts from the
		// offset; a bare 9xx updates the memory and nothing else.
		if slot.HasNote() && ch.sample != nil {
			ch.samplePosition = float64(ch.sampleOffsetMemory)
		}
	case effVolumeSlide:
		if p != 0 {
			ch.volumeSlideMemory = p
		}
	case effPositionJump:
		ctx.positionJump = true
		ctx.jumpDestTable = int(p)
	case effSetVolume:
		ch.volume = clamp01(float64(p) / 64.0)
	case effPatternBreak:
		ctx.patternBreak = true
		ctx.jumpDestRow = int(p>>4)*10 + int(p&0xF)
	case effExtended:
		ctx.applyExtendedRowEffect(ch, p)
	case effSetTempoBPM:
		if p < 0x20 {
			if p > 0 {
				ctx.tempo = int(p)
			}
		} else {
			ctx.bpm = int(p)
		}
	case effSetGlobalVolume:
		ctx.globalVolume = clamp01(float64(p) / 64.0)
	case effGlobalVolumeSlide:
		if p != 0 {
			ch.globalVolSlideMem = p
		}
	case effKeyOff:
		if p == 0 {
			ch.sustained = false
		} else {
			ch.keyOffTick = int(p)
		}
	case effSetEnvelopePosition:
		ch.volEnvFrame = int(p)
		ch.panEnvFrame = int(p)
	case effPanningSlide:
		if p != 0 {
			ch.panningSlideMemory = p
		}
	case effMultiRetrig:
		if p != 0 {
			ch.retriggerMemory = p & 0xF
			ch.retriggerVolSlide = p >> 4
		}
	case effTremor:
		if p != 0 {
			ch.tremorOnTicks = p>>4 + 1
			ch.tremorOffTicks = p&0xF + 1
		}
	case effExtraFinePorta:
		// X1x/X2x apply once per row, not per tick like 1xx/2xx.
		applyExtraFinePorta(ch, p)
	}
}

// applyExtendedRowEffect dispatches the Exy sub-opcodes.
func (ctx *Context) applyExtendedRowEffect(ch *Channel, p byte) {
	sub := p >> 4
	arg := p & 0xF
	switch sub {
	case extFinePortaUp:
		if arg != 0 {
			ch.finePortaUpMemory = arg
		}
		ch.period = clampPeriod(ch.period - float64(ch.finePortaUpMemory))
	case extFinePortaDown:
		if arg != 0 {
			ch.finePortaDownMemory = arg
		}
		ch.period = clampPeriod(ch.period + float64(ch.finePortaDownMemory))
	case extGlissando:
		ch.glissando = arg != 0
	case extVibratoControl:
		ch.vibrato.waveform = arg & 0x3
		ch.vibrato.retrigger = arg&0x4 == 0
	case extSetFinetune:
		// Overrides the sample's finetune for the sounding note without
		// touching the (shared, immutable) sample itself.
		if ch.sample != nil && ch.origNote > 0 {
			ft := int(arg)<<4 - 128
			period := noteToPeriod(ctx.module.FrequencyType, float64(ch.origNote), ft, ch.sample.RelativeNote)
			ch.period = clampPeriod(period)
			ch.tonePortaTarget = ch.period
		}
	case extPatternLoop:
		ctx.applyPatternLoop(ch, arg)
	case extTremoloControl:
		ch.tremolo.waveform = arg & 0x3
		ch.tremolo.retrigger = arg&0x4 == 0
	case extFineVolSlideUp:
		if arg != 0 {
			ch.fineVolumeSlideUp = arg
		}
		ch.volume = clamp01(ch.volume + float64(ch.fineVolumeSlideUp)/64.0)
	case extFineVolSlideDown:
		if arg != 0 {
			ch.fineVolumeSlideDn = arg
		}
		ch.volume = clamp01(ch.volume - float64(ch.fineVolumeSlideDn)/64.0)
	case extNoteCut:
		ch.noteCutTick = int(arg)
	case extNoteDelay:
		ch.noteDelayTick = int(arg)
	case extPatternDelay:
		ctx.patternDelay = int(arg)
	}
}

// applyPatternLoop implements E60/E6x: E60 marks the loop start row; E6x
// (x>0) jumps back to it until the jump has been taken x times.
func (ctx *Context) applyPatternLoop(ch *Channel, x byte) {
	if x == 0 {
		ch.patternLoopRow = ctx.currentRow
		return
	}
	idx := ctx.rowLoopIndex(ch.patternLoopRow)
	if idx < 0 || idx >= len(ctx.rowLoopCount) {
		return
	}
	if ctx.rowLoopCount[idx] < x {
		ctx.rowLoopCount[idx]++
		ctx.patternLoopPending = true
		ctx.patternLoopTargetRow = ch.patternLoopRow
	} else {
		ctx.rowLoopCount[idx] = 0
	}
}

func applyExtraFinePorta(ch *Channel, p byte) {
	if p&0xF != 0 {
		ch.fineTunePortaMemory = p & 0xF
	}
	amount := float64(ch.fineTunePortaMemory) / 4.0
	switch p >> 4 {
	case 1:
		ch.period = clampPeriod(ch.period - amount)
	case 2:
		ch.period = clampPeriod(ch.period + amount)
	}
}

// applyTickEffect runs the per-tick portion of a slot's effect: slides,
// LFOs, arpeggio rotation, and the retrigger/cut/delay counters.
func (ctx *Context) applyTickEffect(ch *Channel, slot *Slot) {
	tick := ctx.currentTick

	if ch.noteDelayTick == tick {
		ctx.triggerNote(ch, slot)
	}
	if ch.noteCutTick == tick {
		ch.volume = 0
	}
	if ch.keyOffTick == tick {
		ch.sustained = false
	}

	ctx.applyVolumeColumnTick(ch, slot.VolumeColumn)

	switch slot.EffectType {
	case effPortaUp:
		ch.period = clampPeriod(ch.period - float64(ch.portaUpMemory))
	case effPortaDown:
		ch.period = clampPeriod(ch.period + float64(ch.portaDownMemory))
	case effTonePorta:
		applyTonePorta(ch)
	case effTonePortaVolSlide:
		applyTonePorta(ch)
		applyVolumeSlide(ch, ch.volumeSlideMemory)
	case effVibrato:
		advanceVibrato(&ch.vibrato)
	case effVibratoVolSlide:
		advanceVibrato(&ch.vibrato)
		applyVolumeSlide(ch, ch.volumeSlideMemory)
	case effTremolo:
		advanceVibrato(&ch.tremolo)
	case effVolumeSlide:
		applyVolumeSlide(ch, ch.volumeSlideMemory)
	case effGlobalVolumeSlide:
		ctx.globalVolume = clamp01(ctx.globalVolume + globalSlideDelta(ch.globalVolSlideMem))
	case effPanningSlide:
		ch.panning = clamp01(ch.panning + panningSlideDelta(ch.panningSlideMemory))
	case effMultiRetrig:
		applyMultiRetrig(ctx, ch, slot, tick)
	case effTremor:
		applyTremor(ch, tick)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// applyTonePorta glides ch.period toward ch.tonePortaTarget without
// overshoot. In glissando mode (E3x) the audible period snaps to the
// nearest semitone on the way.
func applyTonePorta(ch *Channel) {
	speed := float64(ch.tonePortaSpeed)
	if ch.period < ch.tonePortaTarget {
		ch.period += speed
		if ch.period > ch.tonePortaTarget {
			ch.period = ch.tonePortaTarget
		}
	} else if ch.period > ch.tonePortaTarget {
		ch.period -= speed
		if ch.period < ch.tonePortaTarget {
			ch.period = ch.tonePortaTarget
		}
	}
	if ch.glissando && ch.period != ch.tonePortaTarget {
		// 64 period units per semitone in both frequency systems.
		ch.period = math.Round(ch.period/64.0) * 64.0
	}
}

// applyVolumeSlide applies an Axx-style two-nibble slide: high nibble up,
// else low nibble down.
func applyVolumeSlide(ch *Channel, p byte) {
	up := p >> 4
	down := p & 0xF
	if up > 0 {
		ch.volume = clamp01(ch.volume + float64(up)/64.0)
	} else {
		ch.volume = clamp01(ch.volume - float64(down)/64.0)
	}
}

func globalSlideDelta(p byte) float64 {
	up := p >> 4
	down := p & 0xF
	if up > 0 {
		return float64(up) / 64.0
	}
	return -float64(down) / 64.0
}

func panningSlideDelta(p byte) float64 {
	up := p >> 4
	down := p & 0xF
	if up > 0 {
		return float64(up) / 255.0
	}
	return -float64(down) / 255.0
}

// setVibratoParams decodes the 4xx/7xx (depth,rate) parameter byte,
// keeping the last nonzero nibble per FT2's shared-memory convention.
func setVibratoParams(v *vibratoState, p byte) {
	if p>>4 != 0 {
		v.rate = p >> 4
	}
	if p&0xF != 0 {
		v.depth = p & 0xF
	}
}

// advanceVibrato rotates the waveform offset and keeps it in 0..63; the
// sine/square/ramp/random shapes are sampled by vibratoPeriodOffset /
// tremoloVolumeOffset.
func advanceVibrato(v *vibratoState) {
	v.offset = (v.offset + int(v.rate)) & 63
}

// sineTable is FT2's 32-entry vibrato/tremolo table, values 0..255
// covering the positive half cycle; waveformValue negates it for the
// second half of the 64-step period.
var sineTable = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161,
	180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197,
	180, 161, 141, 120, 97, 74, 49, 24,
}

func waveformValue(waveform byte, offset int) int {
	idx := offset & 63
	switch waveform {
	case 1: // ramp down, one full cycle per 64 steps like the others
		return 127 - idx*4
	case 2: // square
		if idx < 32 {
			return 255 - 128
		}
		return -128
	case 3: // random, approximated deterministically (no host RNG dependency)
		return (sineTable[(idx*7)%32] % 256) - 128
	default: // sine
		if idx < 32 {
			return sineTable[idx]
		}
		return -sineTable[idx-32]
	}
}

// vibratoPeriodOffset returns the current period displacement from the 4xx
// vibrato LFO; applied to frequency only, never to ch.period itself.
func (ch *Channel) vibratoPeriodOffset() int {
	if ch.vibrato.depth == 0 {
		return 0
	}
	return waveformValue(ch.vibrato.waveform, ch.vibrato.offset) * int(ch.vibrato.depth) / 128
}

// tremoloVolumeOffset returns the current volume displacement (0..1 scale)
// from the 7xx tremolo LFO.
func (ch *Channel) tremoloVolumeOffset() float64 {
	if ch.tremolo.depth == 0 {
		return 0
	}
	return float64(waveformValue(ch.tremolo.waveform, ch.tremolo.offset)*int(ch.tremolo.depth)) / (128.0 * 64.0)
}

// retrigSlideAmount maps the Rxy volume-slide nibbles 1..5 (and 9..D,
// offset by 8) onto their doubling slide deltas in 64ths.
var retrigSlideAmount = [6]float64{0, 1, 2, 4, 8, 16}

// applyMultiRetrig implements Rxy: every y ticks, retrigger the sample and
// apply the x volume-slide code.
func applyMultiRetrig(ctx *Context, ch *Channel, slot *Slot, tick int) {
	if ch.retriggerMemory == 0 {
		return
	}
	if tick%int(ch.retriggerMemory) != 0 {
		return
	}
	if ch.sample != nil {
		ch.samplePosition = 0
	}
	switch ch.retriggerVolSlide {
	case 1, 2, 3, 4, 5:
		ch.volume = clamp01(ch.volume - retrigSlideAmount[ch.retriggerVolSlide]/64.0)
	case 6:
		ch.volume = clamp01(ch.volume * 2.0 / 3.0)
	case 7:
		ch.volume = clamp01(ch.volume / 2.0)
	case 9, 0xA, 0xB, 0xC, 0xD:
		ch.volume = clamp01(ch.volume + retrigSlideAmount[ch.retriggerVolSlide-8]/64.0)
	case 0xE:
		ch.volume = clamp01(ch.volume * 1.5)
	case 0xF:
		ch.volume = clamp01(ch.volume * 2.0)
	}
}

// applyTremor implements Txy: audible for x+1 ticks, silent for y+1 ticks,
// repeating.
func applyTremor(ch *Channel, tick int) {
	if ch.tremorOnTicks == 0 && ch.tremorOffTicks == 0 {
		return
	}
	ch.tremorCounter++
	cycle := int(ch.tremorOnTicks) + int(ch.tremorOffTicks)
	if cycle == 0 {
		return
	}
	ch.tremorSilent = int(ch.tremorCounter)%cycle >= int(ch.tremorOnTicks)
}

// applyVolumeColumn decodes the row-time half of the packed volume-column
// byte: one-shot sets and parameter updates. The slide ranges run per tick
// in applyVolumeColumnTick instead.
func (ctx *Context) applyVolumeColumn(ch *Channel, vc byte) {
	switch {
	case vc == 0:
		return
	case vc >= 0x10 && vc <= 0x50:
		ch.volume = clamp01(float64(vc-0x10) / 64.0)
	case vc >= 0x80 && vc <= 0x8F: // fine slide down, row time only
		ch.volume = clamp01(ch.volume - float64(vc-0x80)/64.0)
	case vc >= 0x90 && vc <= 0x9F: // fine slide up, row time only
		ch.volume = clamp01(ch.volume + float64(vc-0x90)/64.0)
	case vc >= 0xA0 && vc <= 0xAF:
		ch.vibrato.rate = vc - 0xA0
	case vc >= 0xB0 && vc <= 0xBF:
		ch.vibrato.depth = vc - 0xB0
	case vc >= 0xC0 && vc <= 0xCF:
		ch.panning = float64(vc-0xC0) / 15.0
	case vc >= 0xF0:
		if vc&0xF != 0 {
			ch.tonePortaSpeed = (vc & 0xF) << 4
		}
	}
}

// applyVolumeColumnTick runs the volume-column slide ranges on every tick
// after the row tick.
func (ctx *Context) applyVolumeColumnTick(ch *Channel, vc byte) {
	switch {
	case vc >= 0x60 && vc <= 0x6F:
		ch.volume = clamp01(ch.volume - float64(vc-0x60)/64.0)
	case vc >= 0x70 && vc <= 0x7F:
		ch.volume = clamp01(ch.volume + float64(vc-0x70)/64.0)
	case vc >= 0xB0 && vc <= 0xBF:
		advanceVibrato(&ch.vibrato)
	case vc >= 0xD0 && vc <= 0xDF:
		ch.panning = clamp01(ch.panning - float64(vc-0xD0)/15.0)
	case vc >= 0xE0 && vc <= 0xEF:
		ch.panning = clamp01(ch.panning + float64(vc-0xE0)/15.0)
	}
}
