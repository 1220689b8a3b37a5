package xmengine

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies a load failure. Each kind maps onto a stable
// integer code (0=ok, 1=invalid/unsafe, 2=out_of_memory, 3=truncated) so
// callers that only want a code can still get one via LoadError.Kind.
type ErrorKind int

const (
	// KindOK is never attached to a returned error; it exists so the
	// zero value of ErrorKind is meaningful on its own.
	KindOK ErrorKind = iota
	KindTruncated
	KindMagic
	KindVersion
	KindOutOfRange
	KindEnvelopeMalformed
	KindOutOfMemory
)

func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindMagic:
		return "bad magic"
	case KindVersion:
		return "unsupported version"
	case KindOutOfRange:
		return "out of range"
	case KindEnvelopeMalformed:
		return "malformed envelope"
	case KindOutOfMemory:
		return "out of memory"
	default:
		return "ok"
	}
}

// Code returns the integer code for this kind: 0=ok, 1=invalid/unsafe,
// 2=out_of_memory, 3=truncated. Hosts that only want an int can use this
// instead of pattern-matching on the error.
func (k ErrorKind) Code() int {
	switch k {
	case KindTruncated:
		return 3
	case KindOutOfMemory:
		return 2
	case KindOK:
		return 0
	default:
		return 1
	}
}

// LoadError is returned by LoadXM/LoadXMSafe/Restore whenever loading fails.
type LoadError struct {
	Kind ErrorKind
	Msg  string
}

func (e *LoadError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the sentinel error matching e.Kind, so errors.Is works
// with ErrTruncated, ErrBadMagic and ErrUnsupportedVersion.
func (e *LoadError) Unwrap() error {
	switch e.Kind {
	case KindTruncated:
		return ErrTruncated
	case KindMagic:
		return ErrBadMagic
	case KindVersion:
		return ErrUnsupportedVersion
	default:
		return nil
	}
}

func newLoadError(kind ErrorKind, format string, args ...any) *LoadError {
	return &LoadError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrTruncated is returned (wrapped) whenever a read runs past the declared
// input length.
var ErrTruncated = errors.New("xmengine: truncated input")

// ErrBadMagic is returned (wrapped) when the XM header's ID text, or an
// xmized image's magic, does not match.
var ErrBadMagic = errors.New("xmengine: not an XM module")

// ErrUnsupportedVersion is returned (wrapped) for XM files whose version
// isn't 0x0104, and for xmized images of an unknown format version.
var ErrUnsupportedVersion = errors.New("xmengine: unsupported XM version")

// ErrImageMismatch is returned by RestoreImage/RestoreSharedImage when the
// image's word size or byte order does not match this platform.
var ErrImageMismatch = errors.New("xmengine: xmized image built for a different word size or byte order")

// asTruncated converts an io.EOF/io.ErrUnexpectedEOF from the stdlib binary
// readers into our own *LoadError so callers see a uniform error kind.
func asTruncated(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newLoadError(KindTruncated, "%v", err)
	}
	return err
}
