package ordkv

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	timeType = reflect.TypeOf((*time.Time)(nil)).Elem()
	byteType = reflect.TypeOf((byte)(0))
)

var keyLayouts = xsync.NewMapOf[reflect.Type, *keyLayout]()

// keyLayout is the cached binary layout of a key type. Every component
// encodes in an order-preserving, self-delimiting way, so a concatenation of
// components compares bytewise exactly like the decoded values compare
// component by component.
type keyLayout struct {
	typ        reflect.Type
	components []*keyComponent
	desc       string
}

type keyComponent struct {
	Type    reflect.Type
	Path    string
	Index   []int
	Encode  func(buf []byte, v reflect.Value) []byte
	Decode  func(b []byte, v reflect.Value) ([]byte, error)
	Compare func(a, b reflect.Value) int
}

func keyLayoutOf(typ reflect.Type) *keyLayout {
	if lay, ok := keyLayouts.Load(typ); ok {
		return lay
	}
	lay := &keyLayout{
		typ:  typ,
		desc: describeKeyType(typ),
	}
	enumerateKeyComponents(typ, nil, "", func(kc *keyComponent) {
		lay.components = append(lay.components, kc)
	})
	actual, _ := keyLayouts.LoadOrStore(typ, lay)
	return actual
}

func fieldAt(v reflect.Value, index []int) reflect.Value {
	for _, i := range index {
		v = v.Field(i)
	}
	return v
}

func (lay *keyLayout) encode(buf []byte, val reflect.Value) []byte {
	for _, kc := range lay.components {
		buf = kc.Encode(buf, fieldAt(val, kc.Index))
	}
	return buf
}

// decodeInto decodes data into val, which must be settable.
func (lay *keyLayout) decodeInto(data []byte, val reflect.Value) error {
	rest := data
	for _, kc := range lay.components {
		off := len(data) - len(rest)
		var err error
		rest, err = kc.Decode(rest, fieldAt(val, kc.Index))
		if err != nil {
			return dataErrf(data, off, err, "invalid %v key%s", lay.typ, kc.Path)
		}
	}
	if len(rest) != 0 {
		return dataErrf(data, len(data)-len(rest), nil, "invalid %v key: %d trailing bytes", lay.typ, len(rest))
	}
	return nil
}

func (lay *keyLayout) compare(a, b reflect.Value) int {
	for _, kc := range lay.components {
		if c := kc.Compare(fieldAt(a, kc.Index), fieldAt(b, kc.Index)); c != 0 {
			return c
		}
	}
	return 0
}

func take(b []byte, n int) ([]byte, []byte, error) {
	if len(b) < n {
		return nil, nil, fmt.Errorf("need %d bytes, have %d", n, len(b))
	}
	return b[:n], b[n:], nil
}

func describeKeyType(typ reflect.Type) string {
	if typ == timeType {
		return "time"
	}
	switch typ.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		return fmt.Sprintf("u%d", typ.Size()*8)
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return fmt.Sprintf("i%d", typ.Size()*8)
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("f%d", typ.Size()*8)
	case reflect.String:
		return "str"
	case reflect.Slice:
		return "bytes"
	case reflect.Array:
		return fmt.Sprintf("[%d]byte", typ.Len())
	case reflect.Struct:
		var buf strings.Builder
		buf.WriteByte('{')
		for i := 0; i < typ.NumField(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			f := typ.Field(i)
			buf.WriteString(f.Name)
			buf.WriteByte(':')
			buf.WriteString(describeKeyType(f.Type))
		}
		buf.WriteByte('}')
		return buf.String()
	default:
		return typ.Kind().String()
	}
}

func enumerateKeyComponents(typ reflect.Type, index []int, path string, f func(kc *keyComponent)) {
	if typ == timeType {
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			// seconds since the epoch with the sign flipped, then nanoseconds
			Encode: func(buf []byte, v reflect.Value) []byte {
				t := v.Interface().(time.Time)
				buf = appendUint64(buf, uint64(t.Unix())^(1<<63))
				return appendUint32(buf, uint32(t.Nanosecond()))
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, 12)
				if err != nil {
					return nil, err
				}
				sec := int64(binary.BigEndian.Uint64(raw) ^ (1 << 63))
				nsec := binary.BigEndian.Uint32(raw[8:])
				if nsec >= 1e9 {
					return nil, fmt.Errorf("invalid nanoseconds %d", nsec)
				}
				v.Set(reflect.ValueOf(time.Unix(sec, int64(nsec)).UTC()))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return a.Interface().(time.Time).Compare(b.Interface().(time.Time))
			},
		})
		return
	}

	switch typ.Kind() {
	case reflect.Bool:
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				if v.Bool() {
					return appendUint8(buf, 1)
				}
				return appendUint8(buf, 0)
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, 1)
				if err != nil {
					return nil, err
				}
				if raw[0] > 1 {
					return nil, fmt.Errorf("invalid bool byte %02x", raw[0])
				}
				v.SetBool(raw[0] == 1)
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return cmpBool(a.Bool(), b.Bool())
			},
		})
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		width := int(typ.Size())
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendFixed(buf, v.Uint(), width)
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, width)
				if err != nil {
					return nil, err
				}
				v.SetUint(readFixed(raw))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return cmp.Compare(a.Uint(), b.Uint())
			},
		})
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		width := int(typ.Size())
		bits := uint(width * 8)
		sign := uint64(1) << (bits - 1)
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendFixed(buf, uint64(v.Int())^sign, width)
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, width)
				if err != nil {
					return nil, err
				}
				u := readFixed(raw) ^ sign
				// sign-extend from the component width
				v.SetInt(int64(u<<(64-bits)) >> (64 - bits))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return cmp.Compare(a.Int(), b.Int())
			},
		})
	case reflect.Float32:
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendUint32(buf, orderedFloat32Bits(float32(v.Float())))
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, 4)
				if err != nil {
					return nil, err
				}
				v.SetFloat(float64(float32FromOrderedBits(binary.BigEndian.Uint32(raw))))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return cmp.Compare(a.Float(), b.Float())
			},
		})
	case reflect.Float64:
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendUint64(buf, orderedFloat64Bits(v.Float()))
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, 8)
				if err != nil {
					return nil, err
				}
				v.SetFloat(float64FromOrderedBits(binary.BigEndian.Uint64(raw)))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return cmp.Compare(a.Float(), b.Float())
			},
		})
	case reflect.String:
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendEscapedString(buf, v.String())
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				s, rest, err := decodeEscaped(b)
				if err != nil {
					return nil, err
				}
				v.SetString(string(s))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return strings.Compare(a.String(), b.String())
			},
		})
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.Uint8 {
			panic(fmt.Errorf("ordkv: cannot use slice %v as a key component%s", typ, path))
		}
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendEscaped(buf, v.Bytes())
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				s, rest, err := decodeEscaped(b)
				if err != nil {
					return nil, err
				}
				v.SetBytes(s)
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return bytes.Compare(a.Bytes(), b.Bytes())
			},
		})
	case reflect.Array:
		if typ.Elem() != byteType {
			panic(fmt.Errorf("ordkv: cannot use array %v as a key component%s", typ, path))
		}
		n := typ.Len()
		f(&keyComponent{
			Type:  typ,
			Path:  path,
			Index: index,
			Encode: func(buf []byte, v reflect.Value) []byte {
				return appendRaw(buf, arrayBytes(v))
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				raw, rest, err := take(b, n)
				if err != nil {
					return nil, err
				}
				reflect.Copy(v, reflect.ValueOf(raw))
				return rest, nil
			},
			Compare: func(a, b reflect.Value) int {
				return bytes.Compare(arrayBytes(a), arrayBytes(b))
			},
		})
	case reflect.Struct:
		n := typ.NumField()
		for i := 0; i < n; i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				panic(fmt.Errorf("ordkv: key field %v.%s must be exported", typ, field.Name))
			}
			sub := append(append(make([]int, 0, len(index)+1), index...), i)
			enumerateKeyComponents(field.Type, sub, path+"."+field.Name, f)
		}
	default:
		panic(fmt.Errorf("ordkv: cannot use %v as a key component%s", typ, path))
	}
}

func appendFixed(buf []byte, v uint64, width int) []byte {
	switch width {
	case 1:
		return appendUint8(buf, uint8(v))
	case 2:
		return appendUint16(buf, uint16(v))
	case 4:
		return appendUint32(buf, uint32(v))
	default:
		return appendUint64(buf, v)
	}
}

func readFixed(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(raw))
	case 4:
		return uint64(binary.BigEndian.Uint32(raw))
	default:
		return binary.BigEndian.Uint64(raw)
	}
}

func arrayBytes(v reflect.Value) []byte {
	if v.CanAddr() {
		return v.Bytes()
	}
	b := make([]byte, v.Len())
	reflect.Copy(reflect.ValueOf(b), v)
	return b
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// All NaNs map to the zero pattern, below -Inf, matching cmp.Compare.
// Negative zero is stored as positive zero.
func orderedFloat64Bits(f float64) uint64 {
	if f != f {
		return 0
	}
	if f == 0 {
		f = 0
	}
	b := math.Float64bits(f)
	if b>>63 == 0 {
		return b | 1<<63
	}
	return ^b
}

func float64FromOrderedBits(b uint64) float64 {
	if b>>63 == 1 {
		return math.Float64frombits(b &^ (1 << 63))
	}
	return math.Float64frombits(^b)
}

func orderedFloat32Bits(f float32) uint32 {
	if f != f {
		return 0
	}
	if f == 0 {
		f = 0
	}
	b := math.Float32bits(f)
	if b>>31 == 0 {
		return b | 1<<31
	}
	return ^b
}

func float32FromOrderedBits(b uint32) float32 {
	if b>>31 == 1 {
		return math.Float32frombits(b &^ (1 << 31))
	}
	return math.Float32frombits(^b)
}

// KeyCodec encodes keys of type K into an order-preserving, self-delimiting
// byte format: bytes.Compare on two encodings agrees with the native order of
// the decoded keys.
type KeyCodec[K any] struct {
	lay *keyLayout
}

func NewKeyCodec[K any]() KeyCodec[K] {
	return KeyCodec[K]{keyLayoutOf(reflect.TypeFor[K]())}
}

// Append appends the encoding of k to buf.
func (c KeyCodec[K]) Append(buf []byte, k K) []byte {
	return c.lay.encode(buf, reflect.ValueOf(&k).Elem())
}

func (c KeyCodec[K]) Decode(data []byte) (K, error) {
	var k K
	err := c.lay.decodeInto(data, reflect.ValueOf(&k).Elem())
	if err != nil {
		var zero K
		return zero, err
	}
	return k, nil
}

// Compare orders two keys natively, component by component.
func (c KeyCodec[K]) Compare(a, b K) int {
	return c.lay.compare(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem())
}

func (c KeyCodec[K]) Layout() string {
	return c.lay.desc
}

func (c KeyCodec[K]) Comparator() *Comparator {
	return newComparator(c.lay)
}
