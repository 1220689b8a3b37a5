package xmengine

// xmformat.go holds the on-disk XM layout constants and the lowest-level
// structure readers. Everything here reads through the bounds-checked
// reader in reader.go.

const (
	xmMagic          = "Extended Module: "
	xmSupportedMajor = 0x01
	xmSupportedMinor = 0x04
	xmMarkerByte     = 0x1A

	xmModuleNameLen  = 20
	xmTrackerNameLen = 20
	xmInstNameLen    = 22
	xmSampleNameLen  = 22

	flagLinearFrequency = 1 << 0

	patternPackingTypeUncompressed = 0

	sampleTypeBits16 = 1 << 4
	sampleTypeLoop   = 0x03 // low 2 bits: 0 none, 1 forward, 2 ping-pong
)

// xmHeader is the fixed portion of the XM header, following the name,
// marker byte, tracker name and version fields that require special
// trimming/validation and so are read directly in load.go.
type xmHeader struct {
	HeaderSize      uint32
	SongLength      uint16
	RestartPosition uint16
	NumChannels     uint16
	NumPatterns     uint16
	NumInstruments  uint16
	Flags           uint16
	DefaultTempo    uint16
	DefaultBPM      uint16
}

func readXMHeader(r *reader) (xmHeader, error) {
	var h xmHeader
	var err error
	if h.HeaderSize, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.SongLength, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.RestartPosition, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.NumChannels, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.NumPatterns, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.NumInstruments, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.Flags, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.DefaultTempo, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.DefaultBPM, err = r.readU16le(); err != nil {
		return h, err
	}
	return h, nil
}

// xmPatternHeader precedes each pattern's (possibly packed) slot data.
type xmPatternHeader struct {
	HeaderSize  uint32
	PackingType byte
	NumRows     uint16
	PackedSize  uint16
}

func readXMPatternHeader(r *reader) (xmPatternHeader, error) {
	var h xmPatternHeader
	var err error
	if h.HeaderSize, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.PackingType, err = r.readU8(); err != nil {
		return h, err
	}
	if h.NumRows, err = r.readU16le(); err != nil {
		return h, err
	}
	if h.PackedSize, err = r.readU16le(); err != nil {
		return h, err
	}
	return h, nil
}

// unpackPatternSlots decodes the compressed-cell pattern format: a byte
// with bit 7 set is a presence bitmask for {note, instrument, volume,
// effect type, effect param}; without bit 7 set, that byte is the note and
// the remaining 4 fields are all present.
func unpackPatternSlots(packed []byte, numRows, numChannels int) ([]Slot, error) {
	slots := make([]Slot, numRows*numChannels)
	pos := 0
	for i := range slots {
		if pos >= len(packed) {
			// Short packed data after the last populated slot is legal;
			// the rest of the pattern is implicitly empty.
			break
		}
		first := packed[pos]
		var hasNote, hasInstrument, hasVolume, hasEffect, hasParam bool
		if first&0x80 != 0 {
			pos++
			hasNote = first&0x01 != 0
			hasInstrument = first&0x02 != 0
			hasVolume = first&0x04 != 0
			hasEffect = first&0x08 != 0
			hasParam = first&0x10 != 0
		} else {
			hasNote, hasInstrument, hasVolume, hasEffect, hasParam = true, true, true, true, true
		}

		s := &slots[i]
		if hasNote {
			if pos >= len(packed) {
				return nil, newLoadError(KindTruncated, "pattern data truncated mid-slot")
			}
			s.Note = packed[pos]
			pos++
		}
		if hasInstrument {
			if pos >= len(packed) {
				return nil, newLoadError(KindTruncated, "pattern data truncated mid-slot")
			}
			s.Instrument = packed[pos]
			pos++
		}
		if hasVolume {
			if pos >= len(packed) {
				return nil, newLoadError(KindTruncated, "pattern data truncated mid-slot")
			}
			s.VolumeColumn = packed[pos]
			pos++
		}
		if hasEffect {
			if pos >= len(packed) {
				return nil, newLoadError(KindTruncated, "pattern data truncated mid-slot")
			}
			s.EffectType = packed[pos]
			pos++
		}
		if hasParam {
			if pos >= len(packed) {
				return nil, newLoadError(KindTruncated, "pattern data truncated mid-slot")
			}
			s.EffectParam = packed[pos]
			pos++
		}
	}
	return slots, nil
}

// xmInstrumentHeader is the fixed instrument header; sample headers and PCM
// follow for NumSamples > 0.
type xmInstrumentHeader struct {
	HeaderSize       uint32
	Name             string
	Type             byte
	NumSamples       uint16
	SampleHeaderSize uint32
	SampleOfNote     [96]byte
	VolumePoints     [maxEnvelopePoints * 2]uint16
	PanningPoints    [maxEnvelopePoints * 2]uint16
	NumVolumePoints  byte
	NumPanningPoints byte
	VolumeSustain    byte
	VolumeLoopStart  byte
	VolumeLoopEnd    byte
	PanningSustain   byte
	PanningLoopStart byte
	PanningLoopEnd   byte
	VolumeType       byte
	PanningType      byte
	VibratoType      byte
	VibratoSweep     byte
	VibratoDepth     byte
	VibratoRate      byte
	VolumeFadeout    uint16
}

// readXMInstrumentHeader reads the instrument header up to (but not
// including) the per-sample headers. The envelope/vibrato fields are read
// only when NumSamples is nonzero; otherwise they are left zero and the
// HeaderSize-based skip moves the cursor to the next instrument.
func readXMInstrumentHeader(r *reader) (xmInstrumentHeader, error) {
	var h xmInstrumentHeader
	var err error

	start := r.cursor
	if h.HeaderSize, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.Name, err = r.readFixedString(xmInstNameLen); err != nil {
		return h, err
	}
	if h.Type, err = r.readU8(); err != nil {
		return h, err
	}
	if h.NumSamples, err = r.readU16le(); err != nil {
		return h, err
	}

	if h.NumSamples > 0 {
		if h.SampleHeaderSize, err = r.readU32le(); err != nil {
			return h, err
		}
		for i := range h.SampleOfNote {
			if h.SampleOfNote[i], err = r.readU8(); err != nil {
				return h, err
			}
		}
		for i := range h.VolumePoints {
			if h.VolumePoints[i], err = r.readU16le(); err != nil {
				return h, err
			}
		}
		for i := range h.PanningPoints {
			if h.PanningPoints[i], err = r.readU16le(); err != nil {
				return h, err
			}
		}
		if h.NumVolumePoints, err = r.readU8(); err != nil {
			return h, err
		}
		if h.NumPanningPoints, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VolumeSustain, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VolumeLoopStart, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VolumeLoopEnd, err = r.readU8(); err != nil {
			return h, err
		}
		if h.PanningSustain, err = r.readU8(); err != nil {
			return h, err
		}
		if h.PanningLoopStart, err = r.readU8(); err != nil {
			return h, err
		}
		if h.PanningLoopEnd, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VolumeType, err = r.readU8(); err != nil {
			return h, err
		}
		if h.PanningType, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VibratoType, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VibratoSweep, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VibratoDepth, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VibratoRate, err = r.readU8(); err != nil {
			return h, err
		}
		if h.VolumeFadeout, err = r.readU16le(); err != nil {
			return h, err
		}
	}

	// HeaderSize is authoritative: skip any reserved/padding bytes between
	// here and the declared end of the instrument header so the cursor is
	// positioned at the first sample header regardless of tracker quirks.
	consumed := r.cursor - start
	if int(h.HeaderSize) > consumed {
		if err := r.skip(int(h.HeaderSize) - consumed); err != nil {
			return h, err
		}
	}

	return h, nil
}

// xmSampleHeader precedes each sample's PCM data within an instrument.
type xmSampleHeader struct {
	Length       uint32
	LoopStart    uint32
	LoopLen      uint32
	Volume       byte
	Finetune     int8
	Type         byte
	Panning      byte
	RelativeNote int8
	Name         string
}

func readXMSampleHeader(r *reader, nameLen int) (xmSampleHeader, error) {
	var h xmSampleHeader
	var err error
	if h.Length, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.LoopStart, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.LoopLen, err = r.readU32le(); err != nil {
		return h, err
	}
	if h.Volume, err = r.readU8(); err != nil {
		return h, err
	}
	var fine byte
	if fine, err = r.readU8(); err != nil {
		return h, err
	}
	h.Finetune = int8(fine)
	if h.Type, err = r.readU8(); err != nil {
		return h, err
	}
	if h.Panning, err = r.readU8(); err != nil {
		return h, err
	}
	var relNote byte
	if relNote, err = r.readU8(); err != nil {
		return h, err
	}
	h.RelativeNote = int8(relNote)
	if _, err = r.readU8(); err != nil { // reserved byte, historically a sample name length hint
		return h, err
	}
	if h.Name, err = r.readFixedString(nameLen); err != nil {
		return h, err
	}
	return h, nil
}

// decodeDeltaPCM8 turns a stream of 8-bit deltas into absolute signed
// samples, then widens to int16 for the mixer. Decoding happens in place
// conceptually but Go needs a destination slice since the source is narrower.
func decodeDeltaPCM8(raw []byte) []int16 {
	out := make([]int16, len(raw))
	var old int8
	for i, b := range raw {
		old += int8(b)
		out[i] = int16(old) << 8
	}
	return out
}

// decodeDeltaPCM16 turns a stream of little-endian 16-bit deltas into
// absolute signed 16-bit samples.
func decodeDeltaPCM16(raw []byte) []int16 {
	n := len(raw) / 2
	out := make([]int16, n)
	var old int16
	for i := 0; i < n; i++ {
		d := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		old += d
		out[i] = old
	}
	return out
}
