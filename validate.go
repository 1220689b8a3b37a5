package xmengine

// validate.go runs pre-load sanity on the raw bytes and post-load sanity
// on the parsed Module. The loader performs all validation up front and
// returns a single error - either a fully valid Module exists or nothing
// does, so the renderer never has to range-check indices mid-mix.

func checkSanityPreload(data []byte, declaredLen int) error {
	if declaredLen < 0 {
		return newLoadError(KindOutOfRange, "negative declared length")
	}
	minHeader := len(xmMagic) + xmModuleNameLen + 1 + xmTrackerNameLen + 2
	if declaredLen < minHeader || len(data) < minHeader {
		return newLoadError(KindTruncated, "input shorter than minimum XM header (%d bytes)", minHeader)
	}
	return nil
}

func checkSanityPostload(mod *Module) error {
	if mod.NumChannels < 1 || mod.NumChannels > 32 {
		return newLoadError(KindOutOfRange, "num_channels %d out of [1,32]", mod.NumChannels)
	}
	if len(mod.Patterns) > maxPatternTableLength {
		return newLoadError(KindOutOfRange, "num_patterns %d > %d", len(mod.Patterns), maxPatternTableLength)
	}
	if mod.Length < 1 || mod.Length > maxPatternTableLength {
		return newLoadError(KindOutOfRange, "length %d out of [1,%d]", mod.Length, maxPatternTableLength)
	}
	if mod.RestartPosition >= mod.Length {
		return newLoadError(KindOutOfRange, "restart_position %d >= length %d", mod.RestartPosition, mod.Length)
	}
	if mod.DefaultTempo < 1 || mod.DefaultTempo > 31 {
		return newLoadError(KindOutOfRange, "default_tempo %d out of [1,31]", mod.DefaultTempo)
	}
	if mod.DefaultBPM < 32 || mod.DefaultBPM > 255 {
		return newLoadError(KindOutOfRange, "default_bpm %d out of [32,255]", mod.DefaultBPM)
	}

	for i := 0; i < mod.Length; i++ {
		if int(mod.PatternTable[i]) >= len(mod.Patterns) {
			return newLoadError(KindOutOfRange, "pattern_table[%d]=%d >= num_patterns %d", i, mod.PatternTable[i], len(mod.Patterns))
		}
	}

	for pi := range mod.Patterns {
		pat := &mod.Patterns[pi]
		if pat.NumRows < 1 || pat.NumRows > maxPatternRows {
			return newLoadError(KindOutOfRange, "pattern %d num_rows %d out of [1,%d]", pi, pat.NumRows, maxPatternRows)
		}
		if len(pat.Slots) != pat.NumRows*mod.NumChannels {
			return newLoadError(KindOutOfRange, "pattern %d has %d slots, want %d", pi, len(pat.Slots), pat.NumRows*mod.NumChannels)
		}
		for si := range pat.Slots {
			s := &pat.Slots[si]
			if s.Instrument != 0 && int(s.Instrument)-1 >= len(mod.Instruments) {
				return newLoadError(KindOutOfRange, "pattern %d slot %d instrument %d out of range", pi, si, s.Instrument)
			}
		}
	}

	for ii := range mod.Instruments {
		inst := &mod.Instruments[ii]
		for _, si := range inst.SampleOfNote {
			if si != noSampleForNote && int(si) >= len(inst.Samples) {
				return newLoadError(KindOutOfRange, "instrument %d sample_of_note references sample %d, has %d samples", ii, si, len(inst.Samples))
			}
		}
		if err := checkEnvelope(&inst.VolumeEnvelope); err != nil {
			return err
		}
		if err := checkEnvelope(&inst.PanningEnvelope); err != nil {
			return err
		}
		for si := range inst.Samples {
			smp := &inst.Samples[si]
			if smp.LoopStart > smp.LoopEnd || smp.LoopEnd > smp.Length {
				return newLoadError(KindOutOfRange, "instrument %d sample %d loop [%d,%d] outside length %d", ii, si, smp.LoopStart, smp.LoopEnd, smp.Length)
			}
		}
	}

	return nil
}

func checkEnvelope(env *Envelope) error {
	if len(env.Points) > maxEnvelopePoints {
		return newLoadError(KindEnvelopeMalformed, "envelope has %d points, max %d", len(env.Points), maxEnvelopePoints)
	}
	for i := 1; i < len(env.Points); i++ {
		if env.Points[i].Frame <= env.Points[i-1].Frame {
			return newLoadError(KindEnvelopeMalformed, "envelope point %d frame %d does not strictly increase past point %d frame %d",
				i, env.Points[i].Frame, i-1, env.Points[i-1].Frame)
		}
	}
	return nil
}
