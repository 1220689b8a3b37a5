package xmengine

import "fmt"

// load.go turns a byte slice into a validated Module graph. LoadXM assumes
// the whole slice is available; LoadXMSafe additionally takes a declared
// length and never reads past it.

// LoadXM parses an in-memory XM file. It performs pre-load and post-load
// validation (component C) before returning a Module; on any failure no
// partially-built Module is returned.
func LoadXM(data []byte) (*Module, error) {
	return LoadXMSafe(data, len(data))
}

// LoadXMSafe parses data, treating declaredLen as the usable length of data
// even if len(data) is larger (or, if data was truncated some other way,
// smaller). It never reads past min(len(data), declaredLen).
func LoadXMSafe(data []byte, declaredLen int) (*Module, error) {
	if err := checkSanityPreload(data, declaredLen); err != nil {
		return nil, err
	}

	r := newReader(data, declaredLen)

	magic, err := r.readBytes(len(xmMagic))
	if err != nil {
		return nil, asTruncated(err)
	}
	if string(magic) != xmMagic {
		return nil, newLoadError(KindMagic, "got %q", magic)
	}

	name, err := r.readFixedString(xmModuleNameLen)
	if err != nil {
		return nil, asTruncated(err)
	}

	marker, err := r.readU8()
	if err != nil {
		return nil, asTruncated(err)
	}
	if marker != xmMarkerByte {
		return nil, newLoadError(KindMagic, "missing 0x1A marker byte")
	}

	trackerName, err := r.readFixedString(xmTrackerNameLen)
	if err != nil {
		return nil, asTruncated(err)
	}

	// The version word is little-endian 0x0104: minor byte first.
	minor, err := r.readU8()
	if err != nil {
		return nil, asTruncated(err)
	}
	major, err := r.readU8()
	if err != nil {
		return nil, asTruncated(err)
	}
	if major != xmSupportedMajor || minor != xmSupportedMinor {
		return nil, newLoadError(KindVersion, "got %d.%02d, want %d.%02d", major, minor, xmSupportedMajor, xmSupportedMinor)
	}

	headerStart := r.cursor
	hdr, err := readXMHeader(r)
	if err != nil {
		return nil, asTruncated(err)
	}

	mod := &Module{
		Name:            name,
		TrackerName:     trackerName,
		RestartPosition: int(hdr.RestartPosition),
		Length:          int(hdr.SongLength),
		NumChannels:     int(hdr.NumChannels),
		DefaultTempo:    int(hdr.DefaultTempo),
		DefaultBPM:      int(hdr.DefaultBPM),
	}
	if hdr.Flags&flagLinearFrequency != 0 {
		mod.FrequencyType = FrequencyLinear
	} else {
		mod.FrequencyType = FrequencyAmiga
	}
	if mod.Length > maxPatternTableLength {
		return nil, newLoadError(KindOutOfRange, "pattern table length %d > %d", mod.Length, maxPatternTableLength)
	}

	orderTable, err := r.readBytes(maxPatternTableLength)
	if err != nil {
		return nil, asTruncated(err)
	}
	copy(mod.PatternTable[:], orderTable)

	// The header declares its own size; honor it so trailing fields this
	// loader does not know about (future FT2 versions, tracker extensions)
	// don't desynchronize the cursor.
	if consumed := r.cursor - headerStart; int(hdr.HeaderSize) > consumed {
		if err := r.skip(int(hdr.HeaderSize) - consumed); err != nil {
			return nil, asTruncated(err)
		}
	}

	mod.Patterns = make([]Pattern, hdr.NumPatterns)
	for i := range mod.Patterns {
		pat, err := loadPattern(r, mod.NumChannels)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		mod.Patterns[i] = pat
	}

	mod.Instruments = make([]Instrument, hdr.NumInstruments)
	for i := range mod.Instruments {
		inst, err := loadInstrument(r)
		if err != nil {
			return nil, fmt.Errorf("instrument %d: %w", i, err)
		}
		mod.Instruments[i] = inst
	}

	if err := checkSanityPostload(mod); err != nil {
		return nil, err
	}

	dumpModule(mod)

	return mod, nil
}

func loadPattern(r *reader, numChannels int) (Pattern, error) {
	ph, err := readXMPatternHeader(r)
	if err != nil {
		return Pattern{}, asTruncated(err)
	}
	if ph.PackingType != patternPackingTypeUncompressed {
		return Pattern{}, newLoadError(KindOutOfRange, "unsupported packing type %d", ph.PackingType)
	}
	if int(ph.NumRows) > maxPatternRows || ph.NumRows == 0 {
		return Pattern{}, newLoadError(KindOutOfRange, "num_rows %d out of range", ph.NumRows)
	}

	pat := Pattern{NumRows: int(ph.NumRows)}
	if ph.PackedSize == 0 {
		pat.Slots = make([]Slot, pat.NumRows*numChannels)
		return pat, nil
	}

	packed, err := r.readBytes(int(ph.PackedSize))
	if err != nil {
		return Pattern{}, asTruncated(err)
	}
	slots, err := unpackPatternSlots(packed, pat.NumRows, numChannels)
	if err != nil {
		return Pattern{}, err
	}
	pat.Slots = slots
	return pat, nil
}

func loadInstrument(r *reader) (Instrument, error) {
	ih, err := readXMInstrumentHeader(r)
	if err != nil {
		return Instrument{}, asTruncated(err)
	}

	inst := Instrument{
		Name:          ih.Name,
		VolumeFadeout: int(ih.VolumeFadeout),
		Vibrato: VibratoSettings{
			Type:  ih.VibratoType,
			Sweep: ih.VibratoSweep,
			Depth: ih.VibratoDepth,
			Rate:  ih.VibratoRate,
		},
	}
	copy(inst.SampleOfNote[:], ih.SampleOfNote[:])

	inst.VolumeEnvelope = decodeEnvelope(ih.VolumePoints[:], ih.NumVolumePoints,
		ih.VolumeSustain, ih.VolumeLoopStart, ih.VolumeLoopEnd, ih.VolumeType)
	inst.PanningEnvelope = decodeEnvelope(ih.PanningPoints[:], ih.NumPanningPoints,
		ih.PanningSustain, ih.PanningLoopStart, ih.PanningLoopEnd, ih.PanningType)

	if ih.NumSamples == 0 {
		return inst, nil
	}

	sampleHeaders := make([]xmSampleHeader, ih.NumSamples)
	for i := range sampleHeaders {
		sh, err := readXMSampleHeader(r, xmSampleNameLen)
		if err != nil {
			return Instrument{}, fmt.Errorf("sample header %d: %w", i, asTruncated(err))
		}
		sampleHeaders[i] = sh
	}

	inst.Samples = make([]Sample, ih.NumSamples)
	for i, sh := range sampleHeaders {
		smp, err := loadSamplePCM(r, sh)
		if err != nil {
			return Instrument{}, fmt.Errorf("sample %d data: %w", i, err)
		}
		inst.Samples[i] = smp
	}

	return inst, nil
}

func decodeEnvelope(raw []uint16, numPoints, sustain, loopStart, loopEnd, flags byte) Envelope {
	env := Envelope{Flags: EnvelopeFlags(flags)}
	n := int(numPoints)
	if n > maxEnvelopePoints {
		n = maxEnvelopePoints
	}
	env.Points = make([]EnvelopePoint, n)
	for i := 0; i < n; i++ {
		env.Points[i] = EnvelopePoint{Frame: int(raw[2*i]), Value: int(raw[2*i+1])}
	}
	env.SustainPoint = int(sustain)
	env.LoopStartPoint = int(loopStart)
	env.LoopEndPoint = int(loopEnd)
	return env
}

func loadSamplePCM(r *reader, sh xmSampleHeader) (Sample, error) {
	is16Bit := sh.Type&sampleTypeBits16 != 0

	rawLen := int(sh.Length)
	raw, err := r.readBytes(rawLen)
	if err != nil {
		return Sample{}, asTruncated(err)
	}

	smp := Sample{
		Name:         sh.Name,
		Finetune:     int(sh.Finetune),
		RelativeNote: int(sh.RelativeNote),
		Volume:       float64(sh.Volume) / 64.0,
		Panning:      float64(sh.Panning) / 255.0,
	}

	switch sh.Type & sampleTypeLoop {
	case 1:
		smp.LoopType = LoopForward
	case 2:
		smp.LoopType = LoopPingPong
	default:
		smp.LoopType = LoopNone
	}

	if is16Bit {
		smp.Bits = 16
		smp.Data = decodeDeltaPCM16(raw)
		smp.Length = len(smp.Data)
		smp.LoopStart = int(sh.LoopStart) / 2
		smp.LoopEnd = smp.LoopStart + int(sh.LoopLen)/2
	} else {
		smp.Bits = 8
		smp.Data = decodeDeltaPCM8(raw)
		smp.Length = len(smp.Data)
		smp.LoopStart = int(sh.LoopStart)
		smp.LoopEnd = smp.LoopStart + int(sh.LoopLen)
	}

	if smp.LoopEnd > smp.Length {
		smp.LoopEnd = smp.Length
	}
	if smp.LoopStart > smp.LoopEnd {
		smp.LoopStart = smp.LoopEnd
	}

	return smp, nil
}
