package ordkv

import (
	"reflect"

	"github.com/golang/snappy"
)

// Compression of value bodies.
type Compression int

const (
	NoCompression Compression = iota
	SnappyCompression
)

type valueFlags uint64

const (
	vfVer1 = valueFlags(1 << iota)
	vfSnappy
	vfJSON

	vfSupportedMask = (vfVer1 | vfSnappy | vfJSON)

	minValueSize = 1 + 8
)

// Value format: flags (uvarint), layout hash (8 bytes big-endian), body.
// The body is msgpack (or JSON with vfJSON), snappy-compressed with vfSnappy.
type valueLayout struct {
	typ  reflect.Type
	desc Descriptor
	enc  Encoding
	comp Compression
}

func newValueLayout(typ reflect.Type, enc Encoding, comp Compression) *valueLayout {
	return &valueLayout{
		typ:  typ,
		desc: descriptorOf(typ),
		enc:  enc,
		comp: comp,
	}
}

func (vl *valueLayout) flags() valueFlags {
	f := vfVer1
	if vl.enc == JSON {
		f |= vfJSON
	}
	if vl.comp == SnappyCompression {
		f |= vfSnappy
	}
	return f
}

func (vl *valueLayout) encode(buf []byte, val reflect.Value) ([]byte, error) {
	flags := vl.flags()
	buf = appendUvarint(buf, uint64(flags))
	buf = appendUint64(buf, vl.desc.Hash)
	if flags&vfSnappy == 0 {
		return vl.enc.EncodeValue(buf, val)
	}

	scratch := valueBytesPool.Get().([]byte)
	defer func() { releaseValueBytes(scratch) }()
	body, err := vl.enc.EncodeValue(scratch[:0], val)
	if err != nil {
		return nil, err
	}
	scratch = body

	off, buf := grow(buf, snappy.MaxEncodedLen(len(body)))
	out := snappy.Encode(buf[off:], body)
	return buf[:off+len(out)], nil
}

// decode decodes data into ptrVal, a pointer to the value type. With strict
// set, a value written under a different layout is rejected.
func (vl *valueLayout) decode(data []byte, ptrVal reflect.Value, strict bool) error {
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(data)
	v, err := d.Uvarint()
	if err != nil {
		return err
	}
	flags := valueFlags(v)
	if flags&^vfSupportedMask != 0 || flags&vfVer1 == 0 {
		return dataErrf(data, 0, nil, "invalid value: unsupported flags %x", v)
	}
	hash, err := d.Uint64()
	if err != nil {
		return err
	}
	if strict && hash != vl.desc.Hash {
		return dataErrf(data, d.Off(), nil, "value layout %016x does not match %v layout %016x", hash, vl.typ, vl.desc.Hash)
	}

	body := d.Buf
	if flags&vfSnappy != 0 {
		body, err = snappy.Decode(nil, body)
		if err != nil {
			return dataErrf(data, d.Off(), err, "invalid snappy body")
		}
	}
	enc := MsgPack
	if flags&vfJSON != 0 {
		enc = JSON
	}
	return enc.DecodeValue(body, ptrVal)
}

// layoutHash extracts the layout hash of an encoded value.
func layoutHash(data []byte) (uint64, error) {
	d := makeByteDecoder(data)
	if _, err := d.Uvarint(); err != nil {
		return 0, err
	}
	return d.Uint64()
}
