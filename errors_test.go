package ordkv

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2)") {
			t.Fatalf("err.Error() = %q, wanted message with oops/inner/(2)", s)
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		err := dataErrf(data, 0, nil, "oops")
		s := err.Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})
}

func TestTableError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := tableErrf("users", []byte("k"), inner, "oops %d", 1)
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is(err, inner) = false, wanted true")
	}
	s := err.Error()
	if !strings.Contains(s, "users/6b") || !strings.Contains(s, "oops 1") || !strings.Contains(s, "inner") {
		t.Fatalf("err.Error() = %q, wanted table/key/msg/inner", s)
	}

	s = (&TableError{Table: "T", Err: inner}).Error()
	if !strings.Contains(s, "T: inner") {
		t.Fatalf("TableError.Error() = %q, wanted %q", s, "T: inner")
	}

	err = tableErrf("events", nil, ErrOverflow, "full")
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("errors.Is(err, ErrOverflow) = false, wanted true")
	}
}

func TestStoreError(t *testing.T) {
	if storeErr("put", "p", nil, nil) != nil {
		t.Fatalf("storeErr(nil) != nil")
	}
	inner := errors.New("disk full")
	key := []byte{0xAB}
	err := storeErr("put", "/tmp/x.db", key, inner)
	key[0] = 0
	var se *StoreError
	if !errors.As(err, &se) || !errors.Is(err, inner) {
		t.Fatalf("err = %v, wanted *StoreError wrapping inner", err)
	}
	deepEqual(t, se.Key, []byte{0xAB})
	deepEqual(t, err.Error(), "ordkv: put /tmp/x.db [ab]: disk full")
	deepEqual(t, storeErr("flush", "/tmp/x.db", nil, inner).Error(), "ordkv: flush /tmp/x.db: disk full")
}

func TestOpenError(t *testing.T) {
	inner := errors.New("locked")
	err := error(&OpenError{BoltBackend, "/tmp/x.db", inner})
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is(err, inner) = false, wanted true")
	}
	deepEqual(t, err.Error(), "ordkv: open bolt store /tmp/x.db: locked")
}
