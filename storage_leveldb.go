package ordkv

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelDBDeleteBatch = 1024

// levelDBComparer installs a decode-based Comparator into goleveldb.
// Separator and Successor never shorten keys: a shortened key might not
// decode, and index blocks would then be ordered by the bytewise fallback.
type levelDBComparer struct {
	c *Comparator
}

var _ comparer.Comparer = levelDBComparer{}

func (lc levelDBComparer) Compare(a, b []byte) int { return lc.c.Compare(a, b) }

func (lc levelDBComparer) Name() string { return lc.c.Name() }

func (lc levelDBComparer) Separator(dst, a, b []byte) []byte { return nil }

func (lc levelDBComparer) Successor(dst, b []byte) []byte { return nil }

type levelDBStore struct {
	db      *leveldb.DB
	compare func(a, b []byte) int
	wopt    *opt.WriteOptions
}

func openLevelDBStore(path string, o StoreOptions) (Store, error) {
	lopt := &opt.Options{
		Compression: opt.SnappyCompression,
	}
	if o.Comparator != nil {
		lopt.Comparer = levelDBComparer{o.Comparator}
	}
	if o.IsTesting {
		lopt.NoSync = true
		lopt.WriteBuffer = 1024 * 1024
	}
	db, err := leveldb.OpenFile(path, lopt)
	if err != nil {
		return nil, err
	}
	return &levelDBStore{
		db:      db,
		compare: storeCompare(o),
		wopt:    &opt.WriteOptions{Sync: o.SyncWrites && !o.IsTesting},
	}, nil
}

func (s *levelDBStore) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *levelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, s.wopt)
}

func (s *levelDBStore) Delete(key []byte) error {
	return s.db.Delete(key, s.wopt)
}

// DeleteRange deletes [begin, end) in batches. The iterator range is
// evaluated with the installed comparer.
func (s *levelDBStore) DeleteRange(begin, end []byte) (int, error) {
	it := s.db.NewIterator(&util.Range{Start: begin, Limit: end}, nil)
	defer it.Release()

	var n int
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(it.Key())
		if batch.Len() >= levelDBDeleteBatch {
			if err := s.db.Write(batch, s.wopt); err != nil {
				return n, err
			}
			n += batch.Len()
			batch.Reset()
		}
	}
	if err := it.Error(); err != nil {
		return n, err
	}
	if batch.Len() > 0 {
		if err := s.db.Write(batch, s.wopt); err != nil {
			return n, err
		}
		n += batch.Len()
	}
	return n, nil
}

func (s *levelDBStore) NewCursor() (Cursor, error) {
	return &levelDBCursor{it: s.db.NewIterator(nil, nil), compare: s.compare}, nil
}

// Flush writes a synced no-op batch, which fsyncs the journal.
func (s *levelDBStore) Flush() error {
	batch := new(leveldb.Batch)
	batch.Delete(nil)
	return s.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (s *levelDBStore) Compact() error {
	return s.db.CompactRange(util.Range{})
}

func (s *levelDBStore) Close() error {
	return s.db.Close()
}

type levelDBCursor struct {
	it      iterator.Iterator
	compare func(a, b []byte) int
}

func (c *levelDBCursor) current(ok bool) ([]byte, []byte) {
	if !ok {
		return nil, nil
	}
	return c.it.Key(), c.it.Value()
}

func (c *levelDBCursor) First() ([]byte, []byte) { return c.current(c.it.First()) }

func (c *levelDBCursor) Last() ([]byte, []byte) { return c.current(c.it.Last()) }

func (c *levelDBCursor) Seek(seek []byte) ([]byte, []byte) { return c.current(c.it.Seek(seek)) }

func (c *levelDBCursor) SeekForPrev(seek []byte) ([]byte, []byte) {
	if !c.it.Seek(seek) {
		return c.current(c.it.Last())
	}
	if c.compare(c.it.Key(), seek) == 0 {
		return c.current(true)
	}
	return c.current(c.it.Prev())
}

func (c *levelDBCursor) Next() ([]byte, []byte) { return c.current(c.it.Next()) }

func (c *levelDBCursor) Prev() ([]byte, []byte) { return c.current(c.it.Prev()) }

func (c *levelDBCursor) Err() error { return c.it.Error() }

func (c *levelDBCursor) Close() error {
	c.it.Release()
	return nil
}
