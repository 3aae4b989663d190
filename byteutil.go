package ordkv

import (
	"encoding/binary"
	"io"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func appendRaw(buf []byte, chunk []byte) []byte {
	n := len(chunk)
	off, buf := grow(buf, n)
	copy(buf[off:], chunk)
	return buf
}

type bytesBuilder struct {
	Buf []byte
}

var _ io.Writer = (*bytesBuilder)(nil)

func (bb *bytesBuilder) Grow(n int) (off int) {
	off, bb.Buf = grow(bb.Buf, n)
	return
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	off := bb.Grow(1)
	bb.Buf[off] = v
	return nil
}

func appendUint64(buf []byte, v uint64) []byte {
	off, buf := grow(buf, 8)
	binary.BigEndian.PutUint64(buf[off:], v)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	off, buf := grow(buf, 4)
	binary.BigEndian.PutUint32(buf[off:], v)
	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	off, buf := grow(buf, 2)
	binary.BigEndian.PutUint16(buf[off:], v)
	return buf
}

func appendUint8(buf []byte, v uint8) []byte {
	off, buf := grow(buf, 1)
	buf[off] = v
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	off, buf := grow(buf, binary.MaxVarintLen64)
	off += binary.PutUvarint(buf[off:], v)
	return buf[:off]
}

// Escaped byte strings keep their relative order and are self-delimiting:
// 0x00 becomes 0x00 0xFF, and the string ends with 0x00 0x01.
const (
	escByte    = 0x00
	escZero    = 0xFF
	escEnd     = 0x01
	escTermLen = 2
)

func appendEscaped(buf []byte, v []byte) []byte {
	n := len(v) + escTermLen
	for _, b := range v {
		if b == escByte {
			n++
		}
	}
	off, buf := grow(buf, n)
	for _, b := range v {
		buf[off] = b
		off++
		if b == escByte {
			buf[off] = escZero
			off++
		}
	}
	buf[off] = escByte
	buf[off+1] = escEnd
	return buf
}

func appendEscapedString(buf []byte, v string) []byte {
	return appendEscaped(buf, unsafeBytesFromString(v))
}

// decodeEscaped returns a freshly allocated unescaped copy and the remaining
// input.
func decodeEscaped(data []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != escByte {
			out = append(out, b)
			continue
		}
		if i+1 >= len(data) {
			return nil, nil, dataErrf(data, i, nil, "truncated escape sequence")
		}
		switch data[i+1] {
		case escZero:
			out = append(out, escByte)
			i++
		case escEnd:
			return out, data[i+2:], nil
		default:
			return nil, nil, dataErrf(data, i, nil, "invalid escape sequence %02x%02x", b, data[i+1])
		}
	}
	return nil, nil, dataErrf(data, len(data), nil, "unterminated byte string")
}

type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.Buf)
	if n <= 0 {
		return 0, dataErrf(d.Orig, d.Off(), nil, "invalid uvarint")
	}
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *byteDecoder) Raw(n int) ([]byte, error) {
	if len(d.Buf) < n {
		return nil, dataErrf(d.Orig, d.Off(), nil, "not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *byteDecoder) Uint64() (uint64, error) {
	b, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}
