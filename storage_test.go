package ordkv

import (
	"testing"
)

func setupStore(t testing.TB, backend Backend) Store {
	t.Helper()
	s := must(OpenStore(testPath(t), StoreOptions{Backend: backend, IsTesting: true}))
	t.Cleanup(func() { s.Close() })
	return s
}

func cursorKeys(c Cursor, k []byte, step func() ([]byte, []byte)) []string {
	var out []string
	for ; k != nil; k, _ = step() {
		out = append(out, hexstr(k))
	}
	return out
}

func TestStore_CursorSemantics(t *testing.T) {
	forEachBackend(t, allBackends, func(t *testing.T, backend Backend) {
		s := setupStore(t, backend)
		for _, k := range []string{"10", "20", "2000", "30"} {
			ensure(s.Put(x(k), x("ee"+k)))
		}

		c := must(s.NewCursor())
		defer c.Close()

		k, v := c.First()
		deepEqual(t, k, x("10"))
		deepEqual(t, v, x("ee10"))
		deepEqual(t, cursorKeys(c, k, c.Next), []string{"10", "20", "2000", "30"})

		k, _ = c.Last()
		deepEqual(t, cursorKeys(c, k, c.Prev), []string{"30", "2000", "20", "10"})

		k, _ = c.Seek(x("15"))
		deepEqual(t, k, x("20"))
		k, _ = c.Seek(x("20"))
		deepEqual(t, k, x("20"))
		k, _ = c.Seek(x("31"))
		deepEqual(t, k, []byte(nil))

		k, _ = c.SeekForPrev(x("2001"))
		deepEqual(t, k, x("2000"))
		k, _ = c.SeekForPrev(x("20"))
		deepEqual(t, k, x("20"))
		k, _ = c.SeekForPrev(x("ff"))
		deepEqual(t, k, x("30"))
		k, _ = c.SeekForPrev(x("01"))
		deepEqual(t, k, []byte(nil))

		// changing direction mid-walk
		k, _ = c.Seek(x("20"))
		deepEqual(t, k, x("20"))
		k, _ = c.Next()
		deepEqual(t, k, x("2000"))
		k, _ = c.Prev()
		deepEqual(t, k, x("20"))
		k, _ = c.Prev()
		deepEqual(t, k, x("10"))
		k, _ = c.Next()
		deepEqual(t, k, x("20"))

		ensure(c.Err())
	})
}

func TestStore_GetPutDelete(t *testing.T) {
	forEachBackend(t, allBackends, func(t *testing.T, backend Backend) {
		s := setupStore(t, backend)
		_, found, err := s.Get(x("01"))
		ensure(err)
		deepEqual(t, found, false)

		ensure(s.Put(x("01"), x("abcd")))
		v, found, err := s.Get(x("01"))
		ensure(err)
		deepEqual(t, found, true)
		deepEqual(t, v, x("abcd"))

		ensure(s.Delete(x("01")))
		ensure(s.Delete(x("01")))
		_, found, _ = s.Get(x("01"))
		deepEqual(t, found, false)

		ensure(s.Flush())
		ensure(s.Compact())
	})
}

func TestStore_DeleteRange(t *testing.T) {
	forEachBackend(t, allBackends, func(t *testing.T, backend Backend) {
		s := setupStore(t, backend)
		rd, ok := s.(RangeDeleter)
		if !ok {
			t.Skipf("%s has no native range delete", backend)
		}
		for _, k := range []string{"01", "02", "0201", "03", "04"} {
			ensure(s.Put(x(k), x("00")))
		}
		deepEqual(t, must(rd.DeleteRange(x("02"), x("04"))), 3)

		c := must(s.NewCursor())
		defer c.Close()
		k, _ := c.First()
		deepEqual(t, cursorKeys(c, k, c.Next), []string{"01", "04"})
	})
}

func TestStore_CustomComparator(t *testing.T) {
	type key struct {
		Name string
		N    int16
	}
	codec := NewKeyCodec[key]()
	for _, backend := range []Backend{LevelDBBackend, MemoryBackend} {
		t.Run(string(backend), func(t *testing.T) {
			s := must(OpenStore(testPath(t), StoreOptions{Backend: backend, Comparator: codec.Comparator(), IsTesting: true}))
			defer s.Close()
			for _, k := range []key{{"b", -1}, {"a", 5}, {"a", -5}, {"", 0}} {
				ensure(s.Put(codec.Append(nil, k), nil))
			}
			c := must(s.NewCursor())
			defer c.Close()
			var got []key
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				got = append(got, must(codec.Decode(k)))
			}
			deepEqual(t, got, []key{{"", 0}, {"a", -5}, {"a", 5}, {"b", -1}})
		})
	}
}

func TestParseBackend(t *testing.T) {
	deepEqual(t, must(ParseBackend("")), BoltBackend)
	deepEqual(t, must(ParseBackend("badger")), BadgerBackend)
	if _, err := ParseBackend("rocksdb"); err == nil {
		t.Fatalf("ParseBackend(rocksdb) succeeded, wanted an error")
	}
}
