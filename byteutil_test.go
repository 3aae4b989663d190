package ordkv

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})

	_, _ = bb.Write([]byte{9, 8})
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 3, 9, 8}) {
		t.Fatalf("after Write: bb.Buf = %x, wanted 0102030908", bb.Buf)
	}

	_ = bb.WriteByte(7)
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 3, 9, 8, 7}) {
		t.Fatalf("after WriteByte: bb.Buf = %x, wanted 010203090807", bb.Buf)
	}
}

func TestByteUtil_AppendHelpers(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}

	buf = appendUint8(nil, 1)
	buf = appendUint16(buf, 0x0203)
	buf = appendUint32(buf, 0x04050607)
	buf = appendUint64(buf, 0x08090A0B0C0D0E0F)
	deepEqual(t, buf, x("01 0203 04050607 08090a0b0c0d0e0f"))

	buf = appendUvarint(nil, 300)
	v, n := binary.Uvarint(buf)
	if v != 300 || n != len(buf) {
		t.Fatalf("appendUvarint(300) = %x", buf)
	}

	buf = ensureCapacity(make([]byte, 2, 2), 100)
	if len(buf) != 2 || cap(buf) < 100 {
		t.Fatalf("ensureCapacity = len %d cap %d, wanted len 2 cap >= 100", len(buf), cap(buf))
	}
}

func TestEscaped(t *testing.T) {
	for _, s := range []string{"", "a", "\x00", "a\x00b", "\x00\x00\xff\x01"} {
		enc := appendEscapedString(x("aa"), s)
		enc = append(enc, 0x42)
		out, rest, err := decodeEscaped(enc[1:])
		if err != nil {
			t.Fatalf("decodeEscaped(%x) failed: %v", enc[1:], err)
		}
		deepEqual(t, string(out), s)
		deepEqual(t, rest, []byte{0x42})
	}
	deepEqual(t, appendEscaped(nil, []byte{0, 1}), x("00ff 01 0001"))

	for _, bad := range [][]byte{x(""), x("61"), x("6100"), x("6100 02")} {
		if _, _, err := decodeEscaped(bad); !IsDecodeError(err) {
			t.Errorf("decodeEscaped(%x) = %v, wanted a decode error", bad, err)
		}
	}
}

func TestByteDecoder(t *testing.T) {
	buf := appendUvarint(nil, 5)
	buf = appendUint64(buf, 42)
	buf = append(buf, 1, 2)

	d := makeByteDecoder(buf)
	deepEqual(t, must(d.Uvarint()), uint64(5))
	deepEqual(t, must(d.Uint64()), uint64(42))
	deepEqual(t, d.Off(), 9)
	deepEqual(t, must(d.Raw(2)), []byte{1, 2})
}

func TestByteDecoder_Errors(t *testing.T) {
	t.Run("invalid uvarint", func(t *testing.T) {
		d := makeByteDecoder([]byte{0x80}) // continuation bit with no terminator
		_, err := d.Uvarint()
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("Uvarint err = %T %v, wanted *DataError", err, err)
		}
		if de.Off != 0 {
			t.Fatalf("DataError.Off = %d, wanted 0", de.Off)
		}
	})

	t.Run("Raw not enough data", func(t *testing.T) {
		d := makeByteDecoder([]byte{1, 2})
		_, err := d.Raw(3)
		if err == nil {
			t.Fatalf("Raw err = nil, wanted error")
		}
	})

	t.Run("Uint64 not enough data", func(t *testing.T) {
		d := makeByteDecoder([]byte{1, 2, 3})
		_, err := d.Uint64()
		if !IsDecodeError(err) {
			t.Fatalf("Uint64 err = %v, wanted a decode error", err)
		}
	})
}
