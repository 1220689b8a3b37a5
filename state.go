package xmengine

import "fmt"

// state.go bundles the per-row snapshot UI hosts poll between
// GenerateSamples calls. Like the rest of the query surface, these must be
// serialized by the host against the audio callback.

// ChannelNoteData is one channel's slot, pre-formatted for display.
type ChannelNoteData struct {
	Note       string // "C-4", "F#3", "===" for key-off, "..." for empty
	Instrument byte
	Volume     byte
	Effect     byte
	Param      byte
}

// ChannelState is the per-channel portion of a PlayerState snapshot.
type ChannelState struct {
	Instrument int // 1-indexed, 0 = none
	Active     bool
	TrigTable  int // table index of the last note trigger
	TrigRow    int // row of the last note trigger
}

// PlayerState is a point-in-time snapshot of the playback position, taken
// so a UI can redraw only when the row actually changes.
type PlayerState struct {
	TableIndex int
	Pattern    int
	Row        int
	Tempo      int
	BPM        int
	Frame      uint64

	Notes    []ChannelNoteData
	Channels []ChannelState
}

// State captures the current playback position and the current row's note
// data in one call.
func (ctx *Context) State() PlayerState {
	table, pattern, row := ctx.GetPosition()
	st := PlayerState{
		TableIndex: table,
		Pattern:    pattern,
		Row:        row,
		Tempo:      ctx.tempo,
		BPM:        ctx.bpm,
		Frame:      ctx.generatedSamples,
		Notes:      ctx.NoteDataFor(table, row),
		Channels:   make([]ChannelState, ctx.module.NumChannels),
	}
	for i := range st.Channels {
		ch := &ctx.channels[i]
		st.Channels[i] = ChannelState{
			Instrument: ctx.InstrumentOfChannel(i),
			Active:     ctx.IsChannelActive(i),
			TrigTable:  ch.trigTableIndex,
			TrigRow:    ch.trigRow,
		}
	}
	return st
}

// NoteDataFor returns display-formatted note data for one row of the
// pattern at tableIndex, or nil if either index is out of range.
func (ctx *Context) NoteDataFor(tableIndex, row int) []ChannelNoteData {
	mod := ctx.module
	if tableIndex < 0 || tableIndex >= mod.Length {
		return nil
	}
	pat := &mod.Patterns[mod.PatternTable[tableIndex]]
	if row < 0 || row >= pat.NumRows {
		return nil
	}

	nd := make([]ChannelNoteData, mod.NumChannels)
	for c := 0; c < mod.NumChannels; c++ {
		s := pat.slot(row, c, mod.NumChannels)
		nd[c] = ChannelNoteData{
			Note:       noteStr(s.Note),
			Instrument: s.Instrument,
			Volume:     s.VolumeColumn,
			Effect:     s.EffectType,
			Param:      s.EffectParam,
		}
	}
	return nd
}

// InstrumentName returns the name of a 1-indexed instrument, or "" if the
// index is out of range.
func (ctx *Context) InstrumentName(instrument int) string {
	if instrument < 1 || instrument > len(ctx.module.Instruments) {
		return ""
	}
	return ctx.module.Instruments[instrument-1].Name
}

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// noteStr renders a slot note as the three-character tracker convention:
// "..." for empty, "===" for key-off, else name plus octave.
func noteStr(note byte) string {
	switch {
	case note == 0:
		return "..."
	case note == noteKeyOff:
		return "==="
	case note >= 1 && note <= 96:
		n := int(note) - 1
		return fmt.Sprintf("%s%d", noteNames[n%12], n/12)
	default:
		return "???"
	}
}
