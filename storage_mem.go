package ordkv

import (
	"fmt"
	"sync"

	"github.com/google/btree"
)

const memTreeDegree = 32

type memKV struct {
	key   []byte
	value []byte
}

// memStore is a transient in-memory store ordered by the configured
// comparator. Cursors iterate over a copy-on-write clone of the tree, which
// gives them a consistent snapshot. Data does not survive Close.
type memStore struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[memKV]
	compare func(a, b []byte) int
	closed  bool
}

func newMemStore(opt StoreOptions) Store {
	compare := storeCompare(opt)
	return &memStore{
		tree: btree.NewG(memTreeDegree, func(a, b memKV) bool {
			return compare(a.key, b.key) < 0
		}),
		compare: compare,
	}
}

var errMemStoreClosed = fmt.Errorf("memory store closed")

func (s *memStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, errMemStoreClosed
	}
	item, ok := s.tree.Get(memKV{key: key})
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(item.value), true, nil
}

func (s *memStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errMemStoreClosed
	}
	s.tree.ReplaceOrInsert(memKV{key: cloneBytes(key), value: append([]byte{}, value...)})
	return nil
}

func (s *memStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errMemStoreClosed
	}
	s.tree.Delete(memKV{key: key})
	return nil
}

func (s *memStore) DeleteRange(begin, end []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errMemStoreClosed
	}
	var doomed []memKV
	s.tree.AscendRange(memKV{key: begin}, memKV{key: end}, func(item memKV) bool {
		doomed = append(doomed, item)
		return true
	})
	for _, item := range doomed {
		s.tree.Delete(item)
	}
	return len(doomed), nil
}

func (s *memStore) NewCursor() (Cursor, error) {
	// Clone mutates the source tree's copy-on-write state, so it needs the
	// write lock.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errMemStoreClosed
	}
	return &memCursor{tree: s.tree.Clone(), compare: s.compare}, nil
}

func (s *memStore) Flush() error { return nil }

func (s *memStore) Compact() error { return nil }

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree = nil
	return nil
}

// memCursor re-seeks the snapshot tree from the current key on every move.
type memCursor struct {
	tree    *btree.BTreeG[memKV]
	compare func(a, b []byte) int
	cur     memKV
	valid   bool
}

func (c *memCursor) set(item memKV, ok bool) ([]byte, []byte) {
	c.cur, c.valid = item, ok
	if !ok {
		return nil, nil
	}
	return item.key, item.value
}

func (c *memCursor) First() ([]byte, []byte) {
	return c.set(c.tree.Min())
}

func (c *memCursor) Last() ([]byte, []byte) {
	return c.set(c.tree.Max())
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	var found memKV
	var ok bool
	c.tree.AscendGreaterOrEqual(memKV{key: seek}, func(item memKV) bool {
		found, ok = item, true
		return false
	})
	return c.set(found, ok)
}

func (c *memCursor) SeekForPrev(seek []byte) ([]byte, []byte) {
	var found memKV
	var ok bool
	c.tree.DescendLessOrEqual(memKV{key: seek}, func(item memKV) bool {
		found, ok = item, true
		return false
	})
	return c.set(found, ok)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if !c.valid {
		return nil, nil
	}
	var found memKV
	var ok bool
	c.tree.AscendGreaterOrEqual(c.cur, func(item memKV) bool {
		if c.compare(item.key, c.cur.key) == 0 {
			return true
		}
		found, ok = item, true
		return false
	})
	return c.set(found, ok)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if !c.valid {
		return nil, nil
	}
	var found memKV
	var ok bool
	c.tree.DescendLessOrEqual(c.cur, func(item memKV) bool {
		if c.compare(item.key, c.cur.key) == 0 {
			return true
		}
		found, ok = item, true
		return false
	})
	return c.set(found, ok)
}

func (c *memCursor) Err() error { return nil }

func (c *memCursor) Close() error {
	c.tree = nil
	return nil
}
