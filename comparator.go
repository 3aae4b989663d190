package ordkv

import (
	"bytes"
	"reflect"
)

// Comparator is a total order over encoded keys. It decodes both sides and
// compares the decoded values natively, component by component. Keys that
// fail to decode fall back to bytewise order, which for valid keys coincides
// with the decoded order anyway, so the result is still a total order.
//
// The key layout must not change while a store holding such keys exists.
type Comparator struct {
	lay  *keyLayout
	name string
}

func newComparator(lay *keyLayout) *Comparator {
	return &Comparator{
		lay:  lay,
		name: "ordkv.key/" + lay.desc,
	}
}

// ComparatorFor returns the comparator for keys of type K.
func ComparatorFor[K any]() *Comparator {
	return newComparator(keyLayoutOf(reflect.TypeFor[K]()))
}

func (c *Comparator) Compare(a, b []byte) int {
	va := reflect.New(c.lay.typ).Elem()
	vb := reflect.New(c.lay.typ).Elem()
	if c.lay.decodeInto(a, va) != nil || c.lay.decodeInto(b, vb) != nil {
		return bytes.Compare(a, b)
	}
	return c.lay.compare(va, vb)
}

// Name identifies the key layout. Stores that persist the comparator name
// (leveldb) refuse to reopen data written under a different layout.
func (c *Comparator) Name() string {
	return c.name
}
