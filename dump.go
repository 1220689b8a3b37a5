package xmengine

import (
	"fmt"
	"io"
)

// dump.go is an optional debug side channel: a host can install a writer
// and the loader will narrate what it parsed. With no writer installed the
// loader emits nothing.

var dumpW io.Writer

// SetDumpWriter installs w as the destination for loader debug output.
// Pass nil to disable. Not safe to call while a load is in progress.
func SetDumpWriter(w io.Writer) {
	dumpW = w
}

func dumpf(format string, args ...any) {
	if dumpW == nil {
		return
	}
	fmt.Fprintf(dumpW, format, args...)
}

func dumpModule(mod *Module) {
	if dumpW == nil {
		return
	}

	dumpf("module %q tracker %q\n", mod.Name, mod.TrackerName)
	freq := "amiga"
	if mod.FrequencyType == FrequencyLinear {
		freq = "linear"
	}
	dumpf("  %d channels, %d patterns, %d instruments, %s frequency table\n",
		mod.NumChannels, len(mod.Patterns), len(mod.Instruments), freq)
	dumpf("  length %d restart %d tempo %d bpm %d\n",
		mod.Length, mod.RestartPosition, mod.DefaultTempo, mod.DefaultBPM)

	dumpf("  order:")
	for i := 0; i < mod.Length; i++ {
		dumpf(" %d", mod.PatternTable[i])
	}
	dumpf("\n")

	for i := range mod.Patterns {
		dumpf("  pattern %d: %d rows\n", i, mod.Patterns[i].NumRows)
	}

	for i := range mod.Instruments {
		inst := &mod.Instruments[i]
		dumpf("  instrument %d %q: %d samples, fadeout %d\n",
			i+1, inst.Name, len(inst.Samples), inst.VolumeFadeout)
		for j := range inst.Samples {
			smp := &inst.Samples[j]
			loop := "none"
			switch smp.LoopType {
			case LoopForward:
				loop = "forward"
			case LoopPingPong:
				loop = "ping-pong"
			}
			dumpf("    sample %d %q: %d frames %d-bit loop %s [%d,%d) rel %d fine %d\n",
				j, smp.Name, smp.Length, smp.Bits, loop, smp.LoopStart, smp.LoopEnd,
				smp.RelativeNote, smp.Finetune)
		}
	}
}
