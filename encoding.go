package ordkv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects how value bodies are serialized.
type Encoding int

const (
	MsgPack Encoding = iota
	JSON
)

func (enc Encoding) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Encoding(%d)", int(enc))
	}
}

func (enc Encoding) EncodeValue(buf []byte, objVal reflect.Value) ([]byte, error) {
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		enc := msgpack.GetEncoder()
		enc.ResetDict(&bb, nil)
		enc.SetSortMapKeys(true)
		err := enc.EncodeValue(objVal)
		msgpack.PutEncoder(enc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v using MsgPack: %w", objVal.Type(), err)
		}
		return bb.Buf, nil
	case JSON:
		raw, err := json.Marshal(objVal.Interface())
		if err != nil {
			return nil, fmt.Errorf("failed to encode %v to JSON: %w", objVal.Type(), err)
		}
		return appendRaw(buf, raw), nil
	default:
		panic("unsupported encoding")
	}
}

func (enc Encoding) DecodeValue(buf []byte, objPtrVal reflect.Value) error {
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.ResetDict(&r, nil)
		err := dec.DecodeValue(objPtrVal)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %v", objPtrVal.Type().Elem())
		}
		return nil
	case JSON:
		err := json.Unmarshal(buf, objPtrVal.Interface())
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %v", objPtrVal.Type().Elem())
		}
		return nil
	default:
		panic("unsupported encoding")
	}
}
