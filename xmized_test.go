package xmengine

import (
	"reflect"
	"testing"
)

func TestSerializeRestoreRoundTrip(t *testing.T) {
	mod := newTestModule()
	image := SerializeImage(mod)

	ctx, err := RestoreImage(image, 44100)
	if err != nil {
		t.Fatalf("RestoreImage: %v", err)
	}

	if ctx.module.Name != mod.Name {
		t.Errorf("Name = %q, want %q", ctx.module.Name, mod.Name)
	}
	if ctx.module.NumChannels != mod.NumChannels {
		t.Errorf("NumChannels = %d, want %d", ctx.module.NumChannels, mod.NumChannels)
	}
	if !reflect.DeepEqual(ctx.module.Patterns, mod.Patterns) {
		t.Errorf("Patterns mismatch after round trip")
	}
	if !reflect.DeepEqual(ctx.module.Instruments[0].Samples[0].Data, mod.Instruments[0].Samples[0].Data) {
		t.Errorf("sample data mismatch after round trip")
	}
}

func TestSerializeRestoreSharedAliases(t *testing.T) {
	mod := newTestModule()
	image := SerializeImage(mod)

	ctx, err := RestoreSharedImage(image, 44100)
	if err != nil {
		t.Fatalf("RestoreSharedImage: %v", err)
	}

	data := ctx.module.Instruments[0].Samples[0].Data
	if !reflect.DeepEqual(data, mod.Instruments[0].Samples[0].Data) {
		t.Fatalf("shared-restored sample data mismatch")
	}

	// Mutating the image's backing array must be visible through the
	// aliased slice: this is what distinguishes shared restore from
	// owning restore.
	before := data[0]
	for i := range image {
		image[i] = 0xAA
	}
	if data[0] == before {
		t.Fatalf("shared-restored sample data did not alias the image backing array")
	}
}

func TestRestoreImageRejectsBadMagic(t *testing.T) {
	if _, err := RestoreImage([]byte("not an image"), 44100); err == nil {
		t.Fatalf("expected an error for a non-xmized image")
	}
}

func TestRestoreImageRejectsTruncated(t *testing.T) {
	mod := newTestModule()
	image := SerializeImage(mod)
	truncated := image[:len(image)/2]

	if _, err := RestoreImage(truncated, 44100); err == nil {
		t.Fatalf("expected an error for a truncated image")
	}
}

func TestRestoreImageWordSizeMismatch(t *testing.T) {
	mod := newTestModule()
	image := SerializeImage(mod)

	// Byte 8 (after the 4-byte magic length prefix + "XMIZ") is the
	// version; byte 9 is the word-size tag.
	idx := 4 + len(xmizedMagic) + 1
	image[idx] = 0xFF

	if _, err := RestoreImage(image, 44100); err != ErrImageMismatch {
		t.Fatalf("got err %v, want ErrImageMismatch", err)
	}
}

func TestRestoreImageByteOrderMismatch(t *testing.T) {
	mod := newTestModule()
	image := SerializeImage(mod)

	// The byte-order tag follows the version and word-size bytes.
	idx := 4 + len(xmizedMagic) + 2
	image[idx] = 0

	if _, err := RestoreImage(image, 44100); err != ErrImageMismatch {
		t.Fatalf("got err %v, want ErrImageMismatch", err)
	}
}

func TestRestoredContextPlaysIdenticallyToOriginal(t *testing.T) {
	mod := newTestModule()
	mod.Patterns[0].Slots[0] = Slot{Note: 49, Instrument: 1, EffectType: 0, EffectParam: 0}

	image := SerializeImage(mod)
	restored, err := RestoreImage(image, 44100)
	if err != nil {
		t.Fatalf("RestoreImage: %v", err)
	}
	original := NewContext(mod, 44100)

	outA := make([]float32, 256)
	outB := make([]float32, 256)
	original.GenerateSamples(outA, 128)
	restored.GenerateSamples(outB, 128)

	if !reflect.DeepEqual(outA, outB) {
		t.Fatalf("restored context produced different output than the original module")
	}
}
