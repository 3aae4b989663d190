package ordkv

import (
	"bytes"
	"log/slog"
	"sync"
	"time"
)

// RawTable passes byte keys and values straight to the store.
type RawTable struct {
	opt Options

	mu      sync.RWMutex
	store   Store
	path    string
	name    string
	logger  *slog.Logger
	metrics *tableMetrics
}

func NewRawTable(opt Options) *RawTable {
	return &RawTable{
		opt:    opt,
		logger: opt.logger(),
	}
}

func OpenRawTable(path string, opt Options) (*RawTable, error) {
	t := NewRawTable(opt)
	if err := t.Open(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Open opens the store at path, closing the currently open one first. Raw
// tables always order keys bytewise.
func (t *RawTable) Open(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.closeLocked(); err != nil {
		return err
	}
	store, err := OpenStore(path, t.opt.storeOptions(nil))
	if err != nil {
		return err
	}
	t.store, t.path, t.name = store, path, t.opt.name(path)
	t.metrics = newTableMetrics(t.opt.Metrics, t.name)
	if t.opt.Verbose {
		t.logger.Debug("ordkv: raw table opened", "table", t.name, "path", path)
	}
	return nil
}

func (t *RawTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *RawTable) closeLocked() error {
	if t.store == nil {
		return nil
	}
	err := t.store.Close()
	t.store = nil
	return storeErr("close", t.path, nil, err)
}

func (t *RawTable) Path() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.path
}

func (t *RawTable) Stats() TableStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.metrics == nil {
		return TableStats{}
	}
	return t.metrics.stats()
}

func (t *RawTable) acquire() (Store, error) {
	t.mu.RLock()
	if t.store == nil {
		t.mu.RUnlock()
		return nil, ErrClosed
	}
	return t.store, nil
}

func (t *RawTable) release() {
	t.mu.RUnlock()
}

func (t *RawTable) Insert(k, v []byte) error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	defer t.metrics.insertDuration.UpdateDuration(time.Now())

	if err := store.Put(k, v); err != nil {
		return storeErr("put", t.path, k, err)
	}
	t.metrics.inserts.Inc()
	return nil
}

func (t *RawTable) Find(k []byte) ([]byte, bool, error) {
	store, err := t.acquire()
	if err != nil {
		return nil, false, err
	}
	defer t.release()
	defer t.metrics.findDuration.UpdateDuration(time.Now())
	t.metrics.finds.Inc()

	v, found, err := store.Get(k)
	if err != nil {
		return nil, false, storeErr("get", t.path, k, err)
	}
	return v, found, nil
}

// FindPrev returns the record with the largest key <= k.
func (t *RawTable) FindPrev(k []byte) (key, value []byte, found bool, err error) {
	store, err := t.acquire()
	if err != nil {
		return nil, nil, false, err
	}
	defer t.release()
	t.metrics.finds.Inc()

	err = iterateStore(store, t.path, k, true, func(ck, cv []byte) bool {
		key, value, found = cloneBytes(ck), cloneBytes(cv), true
		return false
	})
	if err != nil {
		return nil, nil, false, err
	}
	return key, value, found, nil
}

// Erase deletes k and reports whether it existed.
func (t *RawTable) Erase(k []byte) (bool, error) {
	store, err := t.acquire()
	if err != nil {
		return false, err
	}
	defer t.release()

	_, found, err := store.Get(k)
	if err != nil {
		return false, storeErr("get", t.path, k, err)
	}
	if !found {
		return false, nil
	}
	if err := store.Delete(k); err != nil {
		return false, storeErr("delete", t.path, k, err)
	}
	t.metrics.erases.Inc()
	return true, nil
}

// EraseMany erases keys on a bounded worker pool and returns how many of
// them existed. Failures are logged and do not stop the remaining keys.
func (t *RawTable) EraseMany(keys [][]byte) int {
	return forEachParallel(len(keys), t.opt.workers(), func(i int) (int, error) {
		ok, err := t.Erase(keys[i])
		if ok {
			return 1, err
		}
		return 0, err
	}, func(i int, err error) {
		t.logger.Warn("ordkv: bulk erase failed", "path", t.Path(), hexAttr("key", keys[i]), "err", err)
	})
}

// Scan calls f for every record whose key starts with prefix, in ascending
// key order, until f returns false. The slices passed to f are only valid
// during the call, and f must not write to the table.
func (t *RawTable) Scan(prefix []byte, f func(k, v []byte) bool) error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	t.metrics.scans.Inc()

	var seek []byte
	if len(prefix) > 0 {
		seek = prefix
	}
	return iterateStore(store, t.path, seek, false, func(k, v []byte) bool {
		if !bytes.HasPrefix(k, prefix) {
			return false
		}
		return f(k, v)
	})
}

// NewCursor returns a cursor over a snapshot of the table. Close it before
// closing the table.
func (t *RawTable) NewCursor() (Cursor, error) {
	store, err := t.acquire()
	if err != nil {
		return nil, err
	}
	defer t.release()
	c, err := store.NewCursor()
	if err != nil {
		return nil, storeErr("iterate", t.path, nil, err)
	}
	return c, nil
}

func (t *RawTable) Flush() error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	return storeErr("flush", t.path, nil, store.Flush())
}

func (t *RawTable) Compact() error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	return storeErr("compact", t.path, nil, store.Compact())
}
