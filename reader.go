package xmengine

// reader.go is component A: a bounds-checked little-endian reader that every
// loader read goes through. Any read past limit, or any length that would
// overflow the remaining input, fails with Truncated instead of panicking or
// reading garbage - this is what makes LoadXMSafe safe to run on arbitrary
// untrusted/truncated bytes.

type reader struct {
	base   []byte
	cursor int
	limit  int // exclusive upper bound, <= len(base)
}

func newReader(data []byte, declaredLen int) *reader {
	limit := len(data)
	if declaredLen >= 0 && declaredLen < limit {
		limit = declaredLen
	}
	return &reader{base: data, limit: limit}
}

func (r *reader) remaining() int {
	return r.limit - r.cursor
}

func (r *reader) skip(n int) error {
	if n < 0 || n > r.remaining() {
		return newLoadError(KindTruncated, "skip %d bytes, only %d remain", n, r.remaining())
	}
	r.cursor += n
	return nil
}

func (r *reader) readU8() (byte, error) {
	if r.remaining() < 1 {
		return 0, newLoadError(KindTruncated, "read u8 past end of input")
	}
	b := r.base[r.cursor]
	r.cursor++
	return b, nil
}

func (r *reader) readU16le() (uint16, error) {
	if r.remaining() < 2 {
		return 0, newLoadError(KindTruncated, "read u16 past end of input")
	}
	v := uint16(r.base[r.cursor]) | uint16(r.base[r.cursor+1])<<8
	r.cursor += 2
	return v, nil
}

func (r *reader) readU32le() (uint32, error) {
	if r.remaining() < 4 {
		return 0, newLoadError(KindTruncated, "read u32 past end of input")
	}
	v := uint32(r.base[r.cursor]) | uint32(r.base[r.cursor+1])<<8 |
		uint32(r.base[r.cursor+2])<<16 | uint32(r.base[r.cursor+3])<<24
	r.cursor += 4
	return v, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, newLoadError(KindTruncated, "read %d bytes, only %d remain", n, r.remaining())
	}
	b := r.base[r.cursor : r.cursor+n]
	r.cursor += n
	return b, nil
}

// readFixedString reads n bytes and trims trailing NUL/space padding, the
// convention FastTracker II uses for the module/tracker/sample name fields.
func (r *reader) readFixedString(n int) (string, error) {
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	end := len(b)
	for end > 0 && (b[end-1] == 0x00 || b[end-1] == 0x20) {
		end--
	}
	return string(b[:end]), nil
}
