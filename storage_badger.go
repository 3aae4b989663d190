package ordkv

import (
	"bytes"
	"errors"
	"os"

	"github.com/dgraph-io/badger"
)

// badgerStore orders keys bytewise.
type badgerStore struct {
	db *badger.DB
}

func openBadgerStore(path string, opt StoreOptions) (Store, error) {
	if err := os.MkdirAll(path, 0777); err != nil {
		return nil, err
	}
	bopt := badger.DefaultOptions
	bopt.Dir = path
	bopt.ValueDir = path
	bopt.SyncWrites = opt.SyncWrites && !opt.IsTesting
	db, err := badger.Open(bopt)
	if err != nil {
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

func (s *badgerStore) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		found = err == nil
		return err
	})
	return value, found, err
}

func (s *badgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) NewCursor() (Cursor, error) {
	return &badgerCursor{txn: s.db.NewTransaction(false)}, nil
}

// Flush is a no-op: badger commits are durable once SyncWrites is on, and
// otherwise it syncs on its own schedule.
func (s *badgerStore) Flush() error {
	return nil
}

func (s *badgerStore) Compact() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

// badgerCursor emulates a bidirectional cursor with two one-way iterators
// over the same read-only transaction, switching when the direction changes.
type badgerCursor struct {
	txn     *badger.Txn
	it      *badger.Iterator
	reverse bool
	key     []byte
	err     error
}

func (c *badgerCursor) iter(reverse bool) *badger.Iterator {
	if c.it != nil && c.reverse == reverse {
		return c.it
	}
	if c.it != nil {
		c.it.Close()
	}
	o := badger.DefaultIteratorOptions
	o.PrefetchValues = false
	o.Reverse = reverse
	c.it = c.txn.NewIterator(o)
	c.reverse = reverse
	return c.it
}

func (c *badgerCursor) current() ([]byte, []byte) {
	if !c.it.Valid() {
		c.key = nil
		return nil, nil
	}
	item := c.it.Item()
	v, err := item.Value()
	if err != nil {
		c.err = err
		c.key = nil
		return nil, nil
	}
	c.key = item.Key()
	return c.key, v
}

func (c *badgerCursor) First() ([]byte, []byte) {
	c.iter(false).Rewind()
	return c.current()
}

func (c *badgerCursor) Last() ([]byte, []byte) {
	c.iter(true).Rewind()
	return c.current()
}

func (c *badgerCursor) Seek(seek []byte) ([]byte, []byte) {
	c.iter(false).Seek(seek)
	return c.current()
}

// SeekForPrev relies on reverse iterators seeking to the largest key <= seek.
func (c *badgerCursor) SeekForPrev(seek []byte) ([]byte, []byte) {
	c.iter(true).Seek(seek)
	return c.current()
}

func (c *badgerCursor) Next() ([]byte, []byte) {
	return c.step(false)
}

func (c *badgerCursor) Prev() ([]byte, []byte) {
	return c.step(true)
}

func (c *badgerCursor) step(reverse bool) ([]byte, []byte) {
	if c.key == nil {
		return nil, nil
	}
	if c.it != nil && c.reverse == reverse {
		c.it.Next()
		return c.current()
	}
	pos := cloneBytes(c.key)
	it := c.iter(reverse)
	it.Seek(pos)
	if it.Valid() && bytes.Equal(it.Item().Key(), pos) {
		it.Next()
	}
	return c.current()
}

func (c *badgerCursor) Err() error { return c.err }

func (c *badgerCursor) Close() error {
	if c.it != nil {
		c.it.Close()
		c.it = nil
	}
	c.txn.Discard()
	return nil
}
