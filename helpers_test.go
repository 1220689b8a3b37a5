package xmengine

import (
	"testing"

	clone "github.com/huandu/go-clone/generic"
)

const testSampleLength = 64

// testModule is a minimal, valid single-pattern module used as the base
// fixture for every test in this package; individual tests clone it and
// mutate only the fields they care about.
var testModule = Module{
	Name:            "testmodule",
	TrackerName:     "xmengine test",
	RestartPosition: 0,
	Length:          1,
	FrequencyType:   FrequencyLinear,
	DefaultTempo:    6,
	DefaultBPM:      125,
	NumChannels:     2,
	Patterns: []Pattern{
		{
			NumRows: 4,
			Slots:   make([]Slot, 4*2),
		},
	},
	Instruments: []Instrument{
		{
			Name: "testinstrument",
			Samples: []Sample{
				{
					Name:     "testsample",
					Length:   testSampleLength,
					LoopType: LoopNone,
					Bits:     16,
					Data:     make([]int16, testSampleLength),
					Volume:   1.0,
					Panning:  0.5,
				},
			},
		},
	},
}

func init() {
	for i := range testModule.Instruments[0].Samples[0].Data {
		testModule.Instruments[0].Samples[0].Data[i] = int16(i * 100)
	}
	for i := range testModule.Instruments[0].SampleOfNote {
		testModule.Instruments[0].SampleOfNote[i] = 0
	}
}

func newTestModule() *Module {
	mod := clone.Clone(testModule)
	return &mod
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	mod := newTestModule()
	if err := checkSanityPostload(mod); err != nil {
		t.Fatalf("fixture module failed validation: %v", err)
	}
	return NewContext(mod, 44100)
}
