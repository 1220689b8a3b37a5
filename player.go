package xmengine

// player.go is the row/tick cursor and the outer per-frame driver: it
// decides when a new tick or row starts and hands each channel's slot to
// the effect table in effects.go.

// GenerateSamples renders nFrames stereo frames into out (len(out) must be
// >= 2*nFrames) starting at the context's current position. It is the only
// entry point that advances playback, and it performs no allocation.
func (ctx *Context) GenerateSamples(out []float32, nFrames int) {
	for i := 0; i < nFrames; i++ {
		if ctx.maxLoopCount > 0 && ctx.loopCount >= ctx.maxLoopCount {
			out[2*i] = 0
			out[2*i+1] = 0
			continue
		}

		if ctx.remainingInTick <= 0 {
			ctx.advanceTick()
		}

		mixFrame(ctx, out[2*i:2*i+2])

		ctx.remainingInTick--
		ctx.generatedSamples++
	}
}

// advanceTick performs exactly one tick: row processing on tick 0, per-tick
// effect updates otherwise, then resolves row/pattern advance once the tick
// counter reaches tempo.
func (ctx *Context) advanceTick() {
	if ctx.currentTick == 0 {
		if ctx.rowRepeat {
			// EEx holds the row for extra passes; notes don't re-trigger
			// but per-tick effects keep running.
			ctx.rowRepeat = false
			ctx.processTickEffects()
		} else {
			ctx.processRow()
		}
	} else {
		ctx.processTickEffects()
	}

	ctx.currentTick++
	if ctx.currentTick >= ctx.tempo {
		ctx.currentTick = 0
		ctx.resolveRowAdvance()
	}

	// Accumulate onto the (non-positive) residue so fractional tick
	// lengths average out exactly over time.
	ctx.remainingInTick += ctx.samplesPerTick()
}

// processRow triggers notes/instruments and runs row-time effects for every
// channel on the current row.
func (ctx *Context) processRow() {
	mod := ctx.module
	pat := ctx.currentPattern()

	for c := 0; c < mod.NumChannels; c++ {
		ch := &ctx.channels[c]
		slot := pat.slot(ctx.currentRow, c, mod.NumChannels)
		ctx.triggerRow(ch, slot)
	}
}

// processTickEffects runs per-tick effect updates (slides, LFOs, arpeggio,
// retrigger/cut/delay counters) without re-reading the row's slots.
func (ctx *Context) processTickEffects() {
	mod := ctx.module
	pat := ctx.currentPattern()

	for c := 0; c < mod.NumChannels; c++ {
		ch := &ctx.channels[c]
		slot := pat.slot(ctx.currentRow, c, mod.NumChannels)
		ctx.applyTickEffect(ch, slot)
		ctx.advanceEnvelopes(ch)
		ctx.recomputeChannelFrequency(ch)
	}
}

func (ctx *Context) currentPattern() *Pattern {
	mod := ctx.module
	return &mod.Patterns[mod.PatternTable[ctx.currentTableIndex]]
}

// triggerRow resolves one channel's slot for the row: instrument/note
// trigger, volume column, then the row-time portion of its effect.
func (ctx *Context) triggerRow(ch *Channel, slot *Slot) {
	mod := ctx.module

	isTonePorta := slot.EffectType == effTonePorta || slot.EffectType == effTonePortaVolSlide

	// Tick-scheduled actions are per-row; clear leftovers from the last row.
	ch.noteDelayTick = -1
	ch.noteCutTick = -1
	ch.keyOffTick = -1

	if slot.Instrument != 0 && int(slot.Instrument)-1 < len(mod.Instruments) {
		ch.instrument = &mod.Instruments[slot.Instrument-1]
	}

	// EDx postpones the trigger to tick x; applyTickEffect fires it then.
	isNoteDelay := slot.EffectType == effExtended &&
		slot.EffectParam>>4 == extNoteDelay && slot.EffectParam&0xF != 0

	switch {
	case slot.HasNote() && isNoteDelay:
	case slot.HasNote() && isTonePorta:
		ctx.setTonePortaTarget(ch, slot)
	case slot.HasNote():
		ctx.triggerNote(ch, slot)
	case slot.IsKeyOff():
		ch.sustained = false
	case slot.Instrument != 0:
		ctx.retriggerInstrumentOnly(ch)
	}

	if slot.EffectType != effArpeggio {
		ch.arpeggioOffsets = [3]int{}
	}

	ctx.applyVolumeColumn(ch, slot.VolumeColumn)
	ctx.applyRowEffect(ch, slot)
	ctx.advanceEnvelopes(ch)
	ctx.recomputeChannelFrequency(ch)
}

// resolveSample looks up the sample a note triggers for the channel's
// current instrument, or nil if the instrument has no sample mapped to it.
func resolveSample(ch *Channel, note byte) *Sample {
	if ch.instrument == nil || note < 1 || note > 96 {
		return nil
	}
	idx := ch.instrument.SampleOfNote[note-1]
	if idx == noSampleForNote || int(idx) >= len(ch.instrument.Samples) {
		return nil
	}
	return &ch.instrument.Samples[idx]
}

// triggerNote resets the oscillator and envelopes and starts a new sample
// playing.
func (ctx *Context) triggerNote(ch *Channel, slot *Slot) {
	smp := resolveSample(ch, slot.Note)
	if smp == nil {
		return
	}

	ch.sample = smp
	ch.note = int(slot.Note)
	ch.origNote = ch.note
	ch.samplePosition = 0
	ch.ping = true

	if ch.vibrato.retrigger {
		ch.vibrato.offset = 0
	}
	if ch.tremolo.retrigger {
		ch.tremolo.offset = 0
	}

	period := noteToPeriod(ctx.module.FrequencyType, float64(ch.note), smp.Finetune, smp.RelativeNote)
	ch.period = clampPeriod(period)
	ch.tonePortaTarget = ch.period

	ch.volEnvFrame = 0
	ch.panEnvFrame = 0
	ch.volume = smp.Volume
	ch.panning = smp.Panning
	ch.sustained = true
	ch.fadeoutVolume = 1.0

	ch.latestTrigger = ctx.generatedSamples
	ch.trigTableIndex = ctx.currentTableIndex
	ch.trigRow = ctx.currentRow
	smp.LatestTrigger = ctx.generatedSamples
	if ch.instrument != nil {
		ch.instrument.LatestTrigger = ctx.generatedSamples
	}
}

// setTonePortaTarget handles a note sharing a row with a tone-porta effect:
// the currently playing sample keeps sounding, only the glide target
// changes.
func (ctx *Context) setTonePortaTarget(ch *Channel, slot *Slot) {
	smp := resolveSample(ch, slot.Note)
	if smp == nil {
		return
	}
	ch.origNote = int(slot.Note)
	target := noteToPeriod(ctx.module.FrequencyType, float64(slot.Note), smp.Finetune, smp.RelativeNote)
	ch.tonePortaTarget = clampPeriod(target)
}

// retriggerInstrumentOnly re-reads volume/panning/envelope state from the
// instrument without restarting the sample.
func (ctx *Context) retriggerInstrumentOnly(ch *Channel) {
	ch.volEnvFrame = 0
	ch.panEnvFrame = 0
	if ch.sample != nil {
		ch.volume = ch.sample.Volume
		ch.panning = ch.sample.Panning
	}
	ch.sustained = true
	ch.fadeoutVolume = 1.0
}

// advanceEnvelopes steps both envelope cursors for one tick and applies
// fadeout while the channel is released.
func (ctx *Context) advanceEnvelopes(ch *Channel) {
	if ch.instrument == nil {
		return
	}
	vol := &ch.instrument.VolumeEnvelope
	pan := &ch.instrument.PanningEnvelope

	if vol.Flags.enabled() {
		ch.volEnvValue = float64(envelopeValue(vol, ch.volEnvFrame)) / 64.0
		ch.volEnvFrame = advanceEnvelopeFrame(vol, ch.volEnvFrame, ch.sustained)
	} else {
		ch.volEnvValue = 1.0
	}
	if pan.Flags.enabled() {
		ch.panEnvValue = (float64(envelopeValue(pan, ch.panEnvFrame)) - 32.0) / 64.0
		ch.panEnvFrame = advanceEnvelopeFrame(pan, ch.panEnvFrame, ch.sustained)
	} else {
		ch.panEnvValue = 0
	}

	if !ch.sustained {
		fadeoutStep := float64(ch.instrument.VolumeFadeout) / 65536.0
		ch.fadeoutVolume -= fadeoutStep
		if ch.fadeoutVolume < 0 {
			ch.fadeoutVolume = 0
		}
	}
}

// recomputeChannelFrequency derives the audible frequency for this tick
// from the channel's period plus any active vibrato/arpeggio offset. Both
// offsets are applied to frequency only, never written back into
// ch.period.
func (ctx *Context) recomputeChannelFrequency(ch *Channel) {
	arpeggioSemitone := ch.arpeggioOffsets[ctx.currentTick%3]
	period := ch.period - float64(arpeggioSemitone*64) - float64(ch.vibratoPeriodOffset())
	ch.frequency = periodToFrequency(ctx.module.FrequencyType, clampPeriod(period))
	if ch.sample != nil {
		ch.step = ch.frequency / float64(ctx.rate)
	}
}

// resolveRowAdvance applies pattern loop/break/jump/delay and steps the
// table index, wrapping to the restart position and incrementing the loop
// counter on overflow.
func (ctx *Context) resolveRowAdvance() {
	mod := ctx.module

	if ctx.patternLoopPending {
		ctx.patternLoopPending = false
		ctx.currentRow = ctx.patternLoopTargetRow
		return
	}

	if ctx.patternDelay > 0 {
		ctx.patternDelay--
		ctx.rowRepeat = true
		return
	}

	pat := ctx.currentPattern()
	nextRow := ctx.currentRow + 1
	nextTable := ctx.currentTableIndex

	switch {
	case ctx.patternBreak && ctx.positionJump:
		// Bxx+Dxx on one row: Bxx supplies the table index, Dxx the row.
		nextTable = ctx.jumpDestTable
		nextRow = ctx.jumpDestRow
		ctx.patternBreak = false
		ctx.positionJump = false
	case ctx.patternBreak:
		nextRow = ctx.jumpDestRow
		nextTable = ctx.currentTableIndex + 1
		ctx.patternBreak = false
	case ctx.positionJump:
		nextTable = ctx.jumpDestTable
		nextRow = 0
		ctx.positionJump = false
	case nextRow >= pat.NumRows:
		nextRow = 0
		nextTable++
	}

	if nextTable >= mod.Length {
		nextTable = mod.RestartPosition
		ctx.loopCount++
	}
	ctx.currentTableIndex = nextTable
	ctx.currentRow = nextRow

	// A Dxx break row can land past the target pattern's last row.
	if ctx.currentRow >= ctx.currentPattern().NumRows {
		ctx.currentRow = 0
	}
}

// Seek moves playback directly to (tableIndex, row, tick) without running
// intervening effects, re-deriving the tick timebase from the current
// tempo/bpm. A plain jump-to-position request is Seek(tableIndex, 0, 0).
func (ctx *Context) Seek(tableIndex, row, tick int) {
	if tableIndex < 0 || tableIndex >= ctx.module.Length {
		tableIndex = 0
	}
	ctx.currentTableIndex = tableIndex
	pat := ctx.currentPattern()
	if row < 0 || row >= pat.NumRows {
		row = 0
	}
	ctx.currentRow = row
	if tick < 0 || tick >= ctx.tempo {
		tick = 0
	}
	ctx.currentTick = tick
	ctx.remainingInTick = 0
	ctx.positionJump = false
	ctx.patternBreak = false
	ctx.patternLoopPending = false
	ctx.rowRepeat = false
	ctx.patternDelay = 0
}
