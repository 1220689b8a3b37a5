package xmengine

// query.go is the read-only introspection surface plus the handful of
// control calls that don't run through GenerateSamples. Callers must
// serialize these against GenerateSamples; a Context carries no locks.

// NumChannels, NumPatterns, NumInstruments, NumSamples, NumRows report the
// static dimensions of the loaded module.
func (ctx *Context) NumChannels() int    { return ctx.module.NumChannels }
func (ctx *Context) NumPatterns() int    { return len(ctx.module.Patterns) }
func (ctx *Context) NumInstruments() int { return len(ctx.module.Instruments) }

func (ctx *Context) NumSamples(instrument int) int {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return 0
	}
	return len(ctx.module.Instruments[instrument-1].Samples)
}

func (ctx *Context) NumRows(tableIndex int) int {
	if tableIndex < 0 || tableIndex >= ctx.module.Length {
		return 0
	}
	pat := ctx.module.Patterns[ctx.module.PatternTable[tableIndex]]
	return pat.NumRows
}

func (ctx *Context) ModuleLength() int { return ctx.module.Length }

// ModuleName and TrackerName expose the two fixed-length ASCII fields
// read from the file header.
func (ctx *Context) ModuleName() string  { return ctx.module.Name }
func (ctx *Context) TrackerName() string { return ctx.module.TrackerName }

// GetPosition reports the current table index, pattern number, and row.
func (ctx *Context) GetPosition() (tableIndex, pattern, row int) {
	return ctx.currentTableIndex, int(ctx.module.PatternTable[ctx.currentTableIndex]), ctx.currentRow
}

// GeneratedSamples is the monotonic output-frame counter.
func (ctx *Context) GeneratedSamples() uint64 { return ctx.generatedSamples }

// PlayingSpeed reports the current tempo (ticks/row) and bpm.
func (ctx *Context) PlayingSpeed() (tempo, bpm int) { return ctx.tempo, ctx.bpm }

// LoopCount is the number of times playback has wrapped from the end of
// the pattern table back to restart_position.
func (ctx *Context) LoopCount() int { return ctx.loopCount }

// SetMaxLoopCount bounds how many times the song may loop before
// GenerateSamples stops advancing playback and emits silence.
func (ctx *Context) SetMaxLoopCount(n int) { ctx.maxLoopCount = n }

// FrequencyOfChannel, VolumeOfChannel, PanningOfChannel, and
// InstrumentOfChannel are 0-indexed per-channel state queries.
func (ctx *Context) FrequencyOfChannel(channel int) float64 {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return 0
	}
	return ctx.channels[channel].frequency
}

func (ctx *Context) VolumeOfChannel(channel int) float64 {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return 0
	}
	ch := &ctx.channels[channel]
	return clamp01(ch.volume * ch.volEnvValue * ch.fadeoutVolume)
}

func (ctx *Context) PanningOfChannel(channel int) float64 {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return 0.5
	}
	ch := &ctx.channels[channel]
	return clamp01(ch.panning + ch.panEnvValue)
}

// InstrumentOfChannel returns the 1-indexed instrument currently assigned
// to a channel, or 0 if none.
func (ctx *Context) InstrumentOfChannel(channel int) int {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return 0
	}
	ch := &ctx.channels[channel]
	if ch.instrument == nil {
		return 0
	}
	for i := range ctx.module.Instruments {
		if &ctx.module.Instruments[i] == ch.instrument {
			return i + 1
		}
	}
	return 0
}

// IsChannelActive reports whether a 0-indexed channel has a sounding
// note: an instrument and sample assigned with the oscillator in range.
// Muting silences a channel in the mix but does not make it inactive.
func (ctx *Context) IsChannelActive(channel int) bool {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return false
	}
	ch := &ctx.channels[channel]
	return ch.instrument != nil && ch.sample != nil && ch.samplePosition >= 0
}

// LatestTriggerOfChannel, LatestTriggerOfInstrument, LatestTriggerOfSample
// expose the monotonic frame counters stamped at trigger time.
func (ctx *Context) LatestTriggerOfChannel(channel int) uint64 {
	if channel < 0 || channel >= ctx.module.NumChannels {
		return 0
	}
	return ctx.channels[channel].latestTrigger
}

func (ctx *Context) LatestTriggerOfInstrument(instrument int) uint64 {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return 0
	}
	return ctx.module.Instruments[instrument-1].LatestTrigger
}

func (ctx *Context) LatestTriggerOfSample(instrument, sample int) uint64 {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return 0
	}
	inst := &ctx.module.Instruments[instrument-1]
	if sample < 0 || sample >= len(inst.Samples) {
		return 0
	}
	return inst.Samples[sample].LatestTrigger
}

// GetSampleWaveform returns the decoded PCM for one sample, for host-side
// waveform display. The slice aliases the module's owned data; callers
// must not mutate it.
func (ctx *Context) GetSampleWaveform(instrument, sample int) []int16 {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return nil
	}
	inst := &ctx.module.Instruments[instrument-1]
	if sample < 0 || sample >= len(inst.Samples) {
		return nil
	}
	return inst.Samples[sample].Data
}

// MuteChannel mutes/unmutes a 1-indexed channel and returns its previous
// state.
func (ctx *Context) MuteChannel(channel int, mute bool) bool {
	if channel < 1 || channel > ctx.module.NumChannels {
		return false
	}
	ch := &ctx.channels[channel-1]
	prev := ch.muted
	ch.muted = mute
	return prev
}

// MuteInstrument mutes/unmutes a 1-indexed instrument and returns its
// previous state.
func (ctx *Context) MuteInstrument(instrument int, mute bool) bool {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return false
	}
	inst := &ctx.module.Instruments[instrument-1]
	prev := inst.Muted
	inst.Muted = mute
	return prev
}

// SetNearestNeighbor toggles nearest-neighbor sample interpolation in
// place of the default linear interpolation.
func (ctx *Context) SetNearestNeighbor(nearest bool) { ctx.nearestNeighbor = nearest }
