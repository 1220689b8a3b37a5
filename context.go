package xmengine

// context.go holds the mutable playback state: the structs the tick/row
// driver in player.go and the effect table in effects.go operate on.

const maxChannels = 32

// vibratoState is shared shape for the 4xx/6xx vibrato and 7xx tremolo LFOs.
type vibratoState struct {
	waveform  byte
	offset    int // position in the waveform cycle, 0..63
	depth     byte
	rate      byte
	retrigger bool
}

// Channel is the complete per-channel playback state: which instrument and
// sample are sounding, the oscillator position, and every effect's memory.
type Channel struct {
	instrument *Instrument
	sample     *Sample

	note     int // 1..96, the note that last triggered this channel
	origNote int // note before arpeggio/porta offsets are applied

	period    float64
	frequency float64

	step           float64 // sample-position increment per output frame
	samplePosition float64 // negative = inactive
	ping           bool    // forward (true) or backward (false) in ping-pong

	sustained bool // cleared on key-off; fadeout applies once false

	volume        float64 // 0..1, set-volume / volume-column / Axx target
	panning       float64 // 0..1
	fadeoutVolume float64 // 1.0 at trigger, decays toward 0 after key-off
	volEnvValue   float64 // 0..1, current volume envelope output
	panEnvValue   float64 // -0.5..0.5, current panning envelope offset

	volEnvFrame int
	panEnvFrame int

	actualVolumeL, actualVolumeR float64 // post-ramp gains applied by the mixer

	portaUpMemory   byte
	portaDownMemory byte
	tonePortaSpeed  byte
	tonePortaTarget float64 // target period for 3xx/5xx

	vibrato vibratoState
	tremolo vibratoState

	arpeggioOffsets [3]int // [0, x_hi, x_lo], cycled by tick%3

	volumeSlideMemory  byte
	fineVolumeSlideUp  byte
	fineVolumeSlideDn  byte
	panningSlideMemory byte
	globalVolSlideMem  byte

	retriggerMemory   byte
	retriggerVolSlide byte
	tremorOnTicks     byte
	tremorOffTicks    byte
	tremorCounter     byte
	tremorSilent      bool

	sampleOffsetMemory  int
	fineTunePortaMemory byte // X1x/X2x extra-fine porta memory
	finePortaUpMemory   byte // E1x
	finePortaDownMemory byte // E2x

	glissando bool // E3x: snap tone-porta target to semitones

	noteDelayTick  int // EDx: trigger postponed to this tick, -1 if none
	noteCutTick    int // ECx: silence at this tick, -1 if none
	keyOffTick     int // Kxx: key-off at this tick, -1 if none
	patternLoopRow int // E6x loop-start row memory for this channel

	muted          bool
	latestTrigger  uint64
	trigTableIndex int // table index of the last note trigger
	trigRow        int // row of the last note trigger
}

// Context is the full mutable playback state: one per concurrently playing
// instance of a Module. A Context is owned by exactly one goroutine at a
// time; it carries no locks of its own.
type Context struct {
	module *Module
	rate   int

	currentTableIndex int
	currentRow        int
	currentTick       int
	remainingInTick   float64 // fractional frames left to render in this tick

	tempo int
	bpm   int

	globalVolume  float64
	amplification float64

	generatedSamples uint64

	positionJump  bool
	patternBreak  bool
	jumpDestTable int // Bxx target
	jumpDestRow   int // Dxx target
	patternDelay  int // EEx: rows to re-process before advancing

	patternLoopPending   bool // E6x: a loop jump was requested this row
	patternLoopTargetRow int
	rowRepeat            bool // EEx: current row is a held repeat, skip triggers

	rowLoopCount []byte // Module.Length * maxPatternRows entries

	loopCount    int
	maxLoopCount int

	channels [maxChannels]Channel

	nearestNeighbor bool // true disables linear interpolation in the mixer
}

// defaultAmplification keeps 32-channel full-volume mixes comfortably
// below clipping without per-song tuning.
const defaultAmplification = 0.25

// rampStep is the per-frame increment toward a gain ramp target; a full
// swing completes within 128 frames.
const rampStep = 1.0 / 128.0

// NewContext builds a fresh Context over an already-validated Module. rate
// is the output sample rate in Hz.
func NewContext(mod *Module, rate int) *Context {
	ctx := &Context{
		module:        mod,
		rate:          rate,
		tempo:         mod.DefaultTempo,
		bpm:           mod.DefaultBPM,
		globalVolume:  1.0,
		amplification: defaultAmplification,
		rowLoopCount:  make([]byte, mod.Length*maxPatternRows),
		maxLoopCount:  0,
	}
	for i := 0; i < mod.NumChannels; i++ {
		ch := &ctx.channels[i]
		ch.ping = true
		ch.samplePosition = -1
		ch.volume = 1.0
		ch.panning = 0.5
		ch.fadeoutVolume = 1.0
		ch.volEnvValue = 1.0
		ch.panEnvValue = 0
		ch.vibrato.retrigger = true
		ch.tremolo.retrigger = true
		ch.noteDelayTick = -1
		ch.noteCutTick = -1
		ch.keyOffTick = -1
	}
	// remainingInTick starts at 0, so the first GenerateSamples call
	// processes row 0 before it mixes any frame.
	return ctx
}

// A tick spans rate*2.5/bpm output frames; the fractional part is carried
// in remainingInTick so the long-run average stays exact.
func (ctx *Context) samplesPerTick() float64 {
	return float64(ctx.rate) * 2.5 / float64(ctx.bpm)
}

func (ctx *Context) recomputeSamplesPerTick() {
	if ctx.remainingInTick <= 0 {
		ctx.remainingInTick = ctx.samplesPerTick()
	}
}

func (ctx *Context) rowLoopIndex(row int) int {
	return ctx.currentTableIndex*maxPatternRows + row
}
