package ordkv

import (
	"fmt"
	"testing"
)

func TestKeyFilter(t *testing.T) {
	f := newKeyFilter(1000)
	for i := 0; i < 500; i++ {
		f.add([]byte(fmt.Sprint("key", i)))
	}
	for i := 0; i < 500; i++ {
		if !f.mayContain([]byte(fmt.Sprint("key", i))) {
			t.Fatalf("filter lost key%d", i)
		}
	}
	var fp int
	for i := 0; i < 1000; i++ {
		if f.mayContain([]byte(fmt.Sprint("other", i))) {
			fp++
		}
	}
	if fp > 50 {
		t.Errorf("%d false positives out of 1000", fp)
	}

	f.reset()
	if f.mayContain([]byte("key1")) {
		t.Errorf("reset filter still contains key1")
	}
}

func TestKeyFilter_Disabled(t *testing.T) {
	f := newKeyFilter(0)
	if f != nil {
		t.Fatalf("newKeyFilter(0) = %v, wanted nil", f)
	}
	f.add([]byte("a"))
	f.reset()
	deepEqual(t, f.mayContain([]byte("anything")), true)
}
