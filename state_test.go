package xmengine

import (
	"bytes"
	"testing"
)

func TestNoteStr(t *testing.T) {
	cases := []struct {
		note byte
		want string
	}{
		{0, "..."},
		{1, "C-0"},
		{49, "C-4"},
		{96, "B-7"},
		{97, "==="},
	}
	for _, c := range cases {
		if got := noteStr(c.note); got != c.want {
			t.Errorf("noteStr(%d) = %q, want %q", c.note, got, c.want)
		}
	}
}

func TestNoteDataForOutOfRange(t *testing.T) {
	ctx := newTestContext(t)
	if nd := ctx.NoteDataFor(-1, 0); nd != nil {
		t.Errorf("negative table index should yield nil note data")
	}
	if nd := ctx.NoteDataFor(0, 999); nd != nil {
		t.Errorf("out-of-range row should yield nil note data")
	}
}

func TestStateReflectsCurrentRow(t *testing.T) {
	ctx := newTestContext(t)
	ctx.module.Patterns[0].Slots[2] = Slot{Note: 49, Instrument: 1} // row 1, channel 0

	st := ctx.State()
	if st.Row != 0 || st.TableIndex != 0 {
		t.Fatalf("initial state position = (%d,%d), want (0,0)", st.TableIndex, st.Row)
	}
	if len(st.Notes) != ctx.module.NumChannels {
		t.Fatalf("state carries %d note columns, want %d", len(st.Notes), ctx.module.NumChannels)
	}
	if st.Notes[0].Note != "..." {
		t.Errorf("row 0 channel 0 note = %q, want empty", st.Notes[0].Note)
	}

	for i := 0; i < ctx.tempo; i++ {
		ctx.advanceTick()
	}
	ctx.advanceTick() // process row 1, which triggers the note

	st = ctx.State()
	if st.Row != 1 {
		t.Fatalf("state row = %d, want 1", st.Row)
	}
	if st.Notes[0].Note != "C-4" {
		t.Errorf("row 1 channel 0 note = %q, want C-4", st.Notes[0].Note)
	}
	if !st.Channels[0].Active || st.Channels[0].TrigRow != 1 {
		t.Errorf("channel 0 state = %+v, want active with TrigRow 1", st.Channels[0])
	}
}

func TestDumpWriterNarratesLoad(t *testing.T) {
	var buf bytes.Buffer
	SetDumpWriter(&buf)
	defer SetDumpWriter(nil)

	if _, err := LoadXM(buildMinimalXM()); err != nil {
		t.Fatalf("LoadXM: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`module "minimal"`)) {
		t.Errorf("dump output missing module header, got %q", buf.String())
	}
}
