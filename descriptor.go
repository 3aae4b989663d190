package ordkv

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Descriptor is the binary layout metadata of a value type. Hash identifies
// the layout and is stored in every encoded value.
type Descriptor struct {
	Hash     uint64 `msgpack:"h"`
	TypeName string `msgpack:"t"`
	Layout   string `msgpack:"l"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%016x %s %s", d.Hash, d.TypeName, d.Layout)
}

var valueDescriptors = xsync.NewMapOf[reflect.Type, Descriptor]()

var (
	binaryMarshalerType  = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	msgpackCustomEncType = reflect.TypeOf((*msgpack.CustomEncoder)(nil)).Elem()
)

// DescriptorOf returns the cached descriptor of T.
func DescriptorOf[T any]() Descriptor {
	return descriptorOf(reflect.TypeFor[T]())
}

func descriptorOf(typ reflect.Type) Descriptor {
	if d, ok := valueDescriptors.Load(typ); ok {
		return d
	}
	layout := describeValueType(typ, make(map[reflect.Type]bool))
	d := Descriptor{
		Hash:     xxhash.Sum64String(layout),
		TypeName: typ.String(),
		Layout:   layout,
	}
	actual, _ := valueDescriptors.LoadOrStore(typ, d)
	return actual
}

// describeValueType renders the msgpack-visible shape of typ.
func describeValueType(typ reflect.Type, seen map[reflect.Type]bool) string {
	if typ == timeType {
		return "time"
	}
	if typ.Implements(msgpackCustomEncType) || typ.Implements(binaryMarshalerType) {
		return "opaque(" + typ.String() + ")"
	}
	switch typ.Kind() {
	case reflect.Ptr:
		return "*" + describeValueType(typ.Elem(), seen)
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return "bytes"
		}
		return "[]" + describeValueType(typ.Elem(), seen)
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", typ.Len(), describeValueType(typ.Elem(), seen))
	case reflect.Map:
		return "map[" + describeValueType(typ.Key(), seen) + "]" + describeValueType(typ.Elem(), seen)
	case reflect.Interface:
		return "any"
	case reflect.Struct:
		if seen[typ] {
			return typ.String()
		}
		seen[typ] = true
		defer delete(seen, typ)

		var buf strings.Builder
		buf.WriteByte('{')
		first := true
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("msgpack"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.WriteString(name)
			buf.WriteByte(':')
			buf.WriteString(describeValueType(f.Type, seen))
		}
		buf.WriteByte('}')
		return buf.String()
	default:
		return typ.Kind().String()
	}
}
