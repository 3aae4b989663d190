package ordkv

import (
	"bytes"
	"time"

	"go.etcd.io/bbolt"
)

var boltDataBucket = []byte("data")

// boltStore keeps all records in a single bucket of a bbolt file. Bolt
// orders keys bytewise; key encodings are order-preserving, so that matches
// the comparator order.
type boltStore struct {
	bdb *bbolt.DB
}

func openBoltStore(path string, opt StoreOptions) (Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, err
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltDataBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return &boltStore{bdb: bdb}, nil
}

func (s *boltStore) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		v := btx.Bucket(boltDataBucket).Get(key)
		if v != nil {
			value, found = cloneBytes(v), true
		}
		return nil
	})
	return value, found, err
}

func (s *boltStore) Put(key, value []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltDataBucket).Put(key, value)
	})
}

func (s *boltStore) Delete(key []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(boltDataBucket).Delete(key)
	})
}

// DeleteRange deletes [begin, end) in a single write transaction.
func (s *boltStore) DeleteRange(begin, end []byte) (int, error) {
	var n int
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(boltDataBucket)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(begin); k != nil && bytes.Compare(k, end) < 0; k, _ = c.Next() {
			keys = append(keys, cloneBytes(k))
		}
		// deleting through the cursor while iterating skips elements in bolt
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *boltStore) NewCursor() (Cursor, error) {
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return nil, err
	}
	return &boltCursor{btx: btx, c: btx.Bucket(boltDataBucket).Cursor()}, nil
}

func (s *boltStore) Flush() error {
	return s.bdb.Sync()
}

// Compact is a no-op: bolt reuses freed pages in place.
func (s *boltStore) Compact() error {
	return nil
}

func (s *boltStore) Close() error {
	return s.bdb.Close()
}

// boltCursor holds a read-only transaction for its whole life. Bolt may block
// a writer that needs to grow the mmap until the transaction ends, so callers
// must not write from the goroutine holding an open cursor.
type boltCursor struct {
	btx *bbolt.Tx
	c   *bbolt.Cursor
}

func (c *boltCursor) First() ([]byte, []byte) { return c.c.First() }

func (c *boltCursor) Last() ([]byte, []byte) { return c.c.Last() }

func (c *boltCursor) Seek(seek []byte) ([]byte, []byte) { return c.c.Seek(seek) }

func (c *boltCursor) SeekForPrev(seek []byte) ([]byte, []byte) {
	k, v := c.c.Seek(seek)
	if k == nil {
		return c.c.Last()
	}
	if bytes.Equal(k, seek) {
		return k, v
	}
	return c.c.Prev()
}

func (c *boltCursor) Next() ([]byte, []byte) { return c.c.Next() }

func (c *boltCursor) Prev() ([]byte, []byte) { return c.c.Prev() }

func (c *boltCursor) Err() error { return nil }

func (c *boltCursor) Close() error {
	err := c.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}
