package xmengine

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// xmized.go is a relocatable byte snapshot of a validated Module, using
// index-based internal links (a length-prefixed tagged layout) instead of
// raw pointer-offset fixups.
//
// An image captures the Module only, never a Context's mid-song playback
// position; restoring an image always yields a freshly initialized
// Context via NewContext at the caller's sample rate.

const (
	xmizedMagic        = "XMIZ"
	xmizedWordSize     = byte(unsafe.Sizeof(uintptr(0)))
	xmizedVersion      = 1
	xmizedLittleEndian = 1
)

// hostLittleEndian reports this platform's byte order. The image's
// framing (and its aliasable sample PCM) is always written little-endian,
// so restore refuses to run on a big-endian host rather than silently
// reinterpreting the aliased bytes.
var hostLittleEndian = func() bool {
	var v uint16 = 1
	return *(*byte)(unsafe.Pointer(&v)) == 1
}()

// SerializeImage walks mod and emits a self-contained byte image: first
// magic, version, the host's word size and byte-order tag, then every field
// of the module in a fixed order, length-prefixed where variable. The image
// is portable only between hosts sharing that word size and byte order.
func SerializeImage(mod *Module) []byte {
	w := newImageWriter()

	w.writeString(xmizedMagic)
	w.writeU8(xmizedVersion)
	w.writeU8(xmizedWordSize)
	w.writeU8(xmizedLittleEndian)

	w.writeString(mod.Name)
	w.writeString(mod.TrackerName)
	w.writeU32(uint32(mod.RestartPosition))
	w.writeU32(uint32(mod.Length))
	w.writeBytes(mod.PatternTable[:])
	w.writeU8(byte(mod.FrequencyType))
	w.writeU32(uint32(mod.DefaultTempo))
	w.writeU32(uint32(mod.DefaultBPM))
	w.writeU32(uint32(mod.NumChannels))

	w.writeU32(uint32(len(mod.Patterns)))
	for i := range mod.Patterns {
		pat := &mod.Patterns[i]
		w.writeU32(uint32(pat.NumRows))
		w.writeU32(uint32(len(pat.Slots)))
		w.align(2)
		for _, s := range pat.Slots {
			w.writeU8(s.Note)
			w.writeU8(s.Instrument)
			w.writeU8(s.VolumeColumn)
			w.writeU8(s.EffectType)
			w.writeU8(s.EffectParam)
		}
	}

	w.writeU32(uint32(len(mod.Instruments)))
	for i := range mod.Instruments {
		inst := &mod.Instruments[i]
		w.writeString(inst.Name)
		w.writeBytes(inst.SampleOfNote[:])
		w.writeEnvelope(&inst.VolumeEnvelope)
		w.writeEnvelope(&inst.PanningEnvelope)
		w.writeU32(uint32(inst.VolumeFadeout))
		w.writeU8(inst.Vibrato.Type)
		w.writeU8(inst.Vibrato.Sweep)
		w.writeU8(inst.Vibrato.Depth)
		w.writeU8(inst.Vibrato.Rate)

		w.writeU32(uint32(len(inst.Samples)))
		for j := range inst.Samples {
			smp := &inst.Samples[j]
			w.writeString(smp.Name)
			w.writeU32(uint32(smp.Length))
			w.writeU32(uint32(smp.LoopStart))
			w.writeU32(uint32(smp.LoopEnd))
			w.writeU8(byte(smp.Bits))
			w.writeU8(byte(smp.LoopType))
			w.writeF64(smp.Volume)
			w.writeF64(smp.Panning)
			w.writeU32(uint32(int32(smp.Finetune)))
			w.writeU32(uint32(int32(smp.RelativeNote)))
			w.align(2)
			for _, v := range smp.Data {
				w.writeU16(uint16(v))
			}
		}
	}

	return w.finish()
}

// RestoreImage decodes image into a fresh, independently owned Module and
// returns a new Context over it: every slice in the resulting Module is
// backed by newly allocated memory, so image may be discarded or mutated
// by the caller after this returns.
func RestoreImage(image []byte, rate int) (*Context, error) {
	mod, err := decodeImage(image, false)
	if err != nil {
		return nil, err
	}
	return NewContext(mod, rate), nil
}

// RestoreSharedImage decodes image into a Module whose pattern slot data
// and sample PCM alias image's backing array instead of being copied. The
// image must stay intact for as long as the returned Context is used; the
// aliasing slices keep its backing array reachable for the garbage
// collector, so no explicit lifetime management is needed.
func RestoreSharedImage(image []byte, rate int) (*Context, error) {
	mod, err := decodeImage(image, true)
	if err != nil {
		return nil, err
	}
	return NewContext(mod, rate), nil
}

func decodeImage(image []byte, shared bool) (*Module, error) {
	r := newImageReader(image)

	magic, err := r.readString()
	if err != nil {
		return nil, err
	}
	if magic != xmizedMagic {
		return nil, newLoadError(KindMagic, "not an xmized image")
	}
	version, err := r.readU8()
	if err != nil {
		return nil, err
	}
	if version != xmizedVersion {
		return nil, newLoadError(KindVersion, "unsupported xmized version %d", version)
	}
	wordSize, err := r.readU8()
	if err != nil {
		return nil, err
	}
	if wordSize != xmizedWordSize {
		return nil, ErrImageMismatch
	}
	byteOrder, err := r.readU8()
	if err != nil {
		return nil, err
	}
	if byteOrder != xmizedLittleEndian || !hostLittleEndian {
		return nil, ErrImageMismatch
	}

	mod := &Module{}
	if mod.Name, err = r.readString(); err != nil {
		return nil, err
	}
	if mod.TrackerName, err = r.readString(); err != nil {
		return nil, err
	}
	restart, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.RestartPosition = int(restart)
	length, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.Length = int(length)
	tableBytes, err := r.readBytes(maxPatternTableLength)
	if err != nil {
		return nil, err
	}
	copy(mod.PatternTable[:], tableBytes)
	freqType, err := r.readU8()
	if err != nil {
		return nil, err
	}
	mod.FrequencyType = FrequencyType(freqType)
	tempo, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.DefaultTempo = int(tempo)
	bpm, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.DefaultBPM = int(bpm)
	numChannels, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.NumChannels = int(numChannels)

	numPatterns, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.Patterns = make([]Pattern, numPatterns)
	for i := range mod.Patterns {
		numRows, err := r.readU32()
		if err != nil {
			return nil, err
		}
		numSlots, err := r.readU32()
		if err != nil {
			return nil, err
		}
		r.skipAlign(2)
		slotBytes := int(numSlots) * 5
		if shared {
			raw, err := r.sliceBytes(slotBytes)
			if err != nil {
				return nil, err
			}
			mod.Patterns[i] = Pattern{NumRows: int(numRows), Slots: aliasSlots(raw, int(numSlots))}
		} else {
			slots := make([]Slot, numSlots)
			for j := range slots {
				note, err := r.readU8()
				if err != nil {
					return nil, err
				}
				ins, err := r.readU8()
				if err != nil {
					return nil, err
				}
				vol, err := r.readU8()
				if err != nil {
					return nil, err
				}
				eff, err := r.readU8()
				if err != nil {
					return nil, err
				}
				param, err := r.readU8()
				if err != nil {
					return nil, err
				}
				slots[j] = Slot{Note: note, Instrument: ins, VolumeColumn: vol, EffectType: eff, EffectParam: param}
			}
			mod.Patterns[i] = Pattern{NumRows: int(numRows), Slots: slots}
		}
	}

	numInstruments, err := r.readU32()
	if err != nil {
		return nil, err
	}
	mod.Instruments = make([]Instrument, numInstruments)
	for i := range mod.Instruments {
		inst := &mod.Instruments[i]
		if inst.Name, err = r.readString(); err != nil {
			return nil, err
		}
		noteBytes, err := r.readBytes(96)
		if err != nil {
			return nil, err
		}
		copy(inst.SampleOfNote[:], noteBytes)
		if inst.VolumeEnvelope, err = r.readEnvelope(); err != nil {
			return nil, err
		}
		if inst.PanningEnvelope, err = r.readEnvelope(); err != nil {
			return nil, err
		}
		fadeout, err := r.readU32()
		if err != nil {
			return nil, err
		}
		inst.VolumeFadeout = int(fadeout)
		vt, err := r.readU8()
		if err != nil {
			return nil, err
		}
		vs, err := r.readU8()
		if err != nil {
			return nil, err
		}
		vd, err := r.readU8()
		if err != nil {
			return nil, err
		}
		vr, err := r.readU8()
		if err != nil {
			return nil, err
		}
		inst.Vibrato = VibratoSettings{Type: vt, Sweep: vs, Depth: vd, Rate: vr}

		numSamples, err := r.readU32()
		if err != nil {
			return nil, err
		}
		inst.Samples = make([]Sample, numSamples)
		for j := range inst.Samples {
			smp := &inst.Samples[j]
			if smp.Name, err = r.readString(); err != nil {
				return nil, err
			}
			length, err := r.readU32()
			if err != nil {
				return nil, err
			}
			smp.Length = int(length)
			loopStart, err := r.readU32()
			if err != nil {
				return nil, err
			}
			smp.LoopStart = int(loopStart)
			loopEnd, err := r.readU32()
			if err != nil {
				return nil, err
			}
			smp.LoopEnd = int(loopEnd)
			bits, err := r.readU8()
			if err != nil {
				return nil, err
			}
			smp.Bits = int(bits)
			loopType, err := r.readU8()
			if err != nil {
				return nil, err
			}
			smp.LoopType = LoopType(loopType)
			if smp.Volume, err = r.readF64(); err != nil {
				return nil, err
			}
			if smp.Panning, err = r.readF64(); err != nil {
				return nil, err
			}
			finetune, err := r.readU32()
			if err != nil {
				return nil, err
			}
			smp.Finetune = int(int32(finetune))
			relNote, err := r.readU32()
			if err != nil {
				return nil, err
			}
			smp.RelativeNote = int(int32(relNote))
			r.skipAlign(2)

			dataBytes := smp.Length * 2
			if shared {
				raw, err := r.sliceBytes(dataBytes)
				if err != nil {
					return nil, err
				}
				smp.Data = aliasInt16(raw, smp.Length)
			} else {
				data := make([]int16, smp.Length)
				for k := range data {
					v, err := r.readU16()
					if err != nil {
						return nil, err
					}
					data[k] = int16(v)
				}
				smp.Data = data
			}
		}
	}

	// A corrupted image must not yield an invalid Module any more than a
	// corrupted XM file would.
	if err := checkSanityPostload(mod); err != nil {
		return nil, err
	}

	dumpModule(mod)

	return mod, nil
}

// aliasSlots views raw (5 bytes per Slot, matching Slot's declared field
// order) as a []Slot without copying. This is the shared-const restore's
// in-place reference to the image's pattern data.
func aliasSlots(raw []byte, n int) []Slot {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Slot)(unsafe.Pointer(&raw[0])), n)
}

// aliasInt16 views raw (2 little-endian bytes per sample) as a []int16
// without copying. Sound because decodeImage has already rejected the
// image on any host whose native order isn't little-endian.
func aliasInt16(raw []byte, n int) []int16 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&raw[0])), n)
}

// imageWriter is a small append-only byte builder used only by
// SerializeImage; kept separate from reader's bounds-checked reads since
// writing never fails.
type imageWriter struct {
	buf []byte
}

func newImageWriter() *imageWriter { return &imageWriter{} }

func (w *imageWriter) writeU8(v byte)      { w.buf = append(w.buf, v) }
func (w *imageWriter) writeBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *imageWriter) writeU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *imageWriter) writeU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *imageWriter) writeF64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *imageWriter) writeString(s string) {
	w.writeU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *imageWriter) writeEnvelope(env *Envelope) {
	w.writeU8(byte(env.Flags))
	w.writeU32(uint32(env.SustainPoint))
	w.writeU32(uint32(env.LoopStartPoint))
	w.writeU32(uint32(env.LoopEndPoint))
	w.writeU32(uint32(len(env.Points)))
	for _, p := range env.Points {
		w.writeU32(uint32(p.Frame))
		w.writeU32(uint32(p.Value))
	}
}

// align pads the buffer with zero bytes until its length is a multiple of
// n, so the byte region that follows (aliased via unsafe.Slice on
// restore) starts at an n-aligned offset.
func (w *imageWriter) align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *imageWriter) finish() []byte {
	return w.buf
}

// imageReader mirrors reader but over the xmized format, which has no
// declared-length ambiguity (the whole slice is the image).
type imageReader struct {
	base []byte
	pos  int
}

func newImageReader(b []byte) *imageReader { return &imageReader{base: b} }

func (r *imageReader) remaining() int { return len(r.base) - r.pos }

func (r *imageReader) readU8() (byte, error) {
	if r.remaining() < 1 {
		return 0, newLoadError(KindTruncated, "xmized image truncated")
	}
	b := r.base[r.pos]
	r.pos++
	return b, nil
}

func (r *imageReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, newLoadError(KindTruncated, "xmized image truncated")
	}
	b := r.base[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// sliceBytes is like readBytes but documents that the returned slice is
// meant to be aliased (via unsafe.Slice) rather than copied.
func (r *imageReader) sliceBytes(n int) ([]byte, error) { return r.readBytes(n) }

func (r *imageReader) readU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *imageReader) readU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *imageReader) readF64() (float64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func (r *imageReader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *imageReader) readEnvelope() (Envelope, error) {
	var env Envelope
	flags, err := r.readU8()
	if err != nil {
		return env, err
	}
	env.Flags = EnvelopeFlags(flags)
	sustain, err := r.readU32()
	if err != nil {
		return env, err
	}
	env.SustainPoint = int(sustain)
	loopStart, err := r.readU32()
	if err != nil {
		return env, err
	}
	env.LoopStartPoint = int(loopStart)
	loopEnd, err := r.readU32()
	if err != nil {
		return env, err
	}
	env.LoopEndPoint = int(loopEnd)
	n, err := r.readU32()
	if err != nil {
		return env, err
	}
	env.Points = make([]EnvelopePoint, n)
	for i := range env.Points {
		frame, err := r.readU32()
		if err != nil {
			return env, err
		}
		value, err := r.readU32()
		if err != nil {
			return env, err
		}
		env.Points[i] = EnvelopePoint{Frame: int(frame), Value: int(value)}
	}
	return env, nil
}

func (r *imageReader) skipAlign(n int) {
	for r.pos%n != 0 && r.remaining() > 0 {
		r.pos++
	}
}
