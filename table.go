package ordkv

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

const eraseBatchSize = 1024

// Table is a persistent single-valued map from K to V, ordered by K.
//
// Keys are encoded with KeyCodec[K]; values are msgpack documents behind a
// small header. All methods are safe for concurrent use. Substrate I/O
// failures are returned as *StoreError; records that fail to decode are
// treated as absent and logged at debug level.
type Table[K, V any] struct {
	opt  Options
	keys KeyCodec[K]
	vals *valueLayout
	cmp  *Comparator

	// filterKey maps an encoded key to the part tracked by the key filter.
	filterKey func(key []byte) []byte

	mu      sync.RWMutex
	store   Store
	path    string
	name    string
	logger  *slog.Logger
	metrics *tableMetrics
	filter  *keyFilter
}

// NewTable returns a closed table; call Open before use.
func NewTable[K, V any](opt Options) *Table[K, V] {
	keys := NewKeyCodec[K]()
	return &Table[K, V]{
		opt:       opt,
		keys:      keys,
		vals:      newValueLayout(reflect.TypeFor[V](), opt.Encoding, opt.Compression),
		cmp:       keys.Comparator(),
		filterKey: func(key []byte) []byte { return key },
		logger:    opt.logger(),
	}
}

func OpenTable[K, V any](path string, opt Options) (*Table[K, V], error) {
	t := NewTable[K, V](opt)
	if err := t.Open(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Open opens the store at path, closing the currently open one first.
func (t *Table[K, V]) Open(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.closeLocked(); err != nil {
		return err
	}

	store, err := OpenStore(path, t.opt.storeOptions(t.cmp))
	if err != nil {
		return err
	}
	t.store, t.path, t.name = store, path, t.opt.name(path)
	t.metrics = newTableMetrics(t.opt.Metrics, t.name)
	t.filter = newKeyFilter(t.opt.KeyFilterSize)

	if t.filter != nil {
		err = t.iterate(store, nil, false, func(key, _ []byte) bool {
			t.filter.add(t.filterKey(key))
			return true
		})
		if err != nil {
			t.closeLocked()
			return err
		}
	}
	if reg := t.opt.Registry; reg != nil {
		if _, err := reg.Register(t.vals.desc); err != nil {
			t.closeLocked()
			return tableErrf(t.name, nil, err, "register value descriptor")
		}
	}
	if t.opt.Verbose {
		t.logger.Debug("ordkv: table opened", "table", t.name, "path", path, "backend", t.backend(), "key", t.keys.Layout(), "value", t.vals.desc.Layout)
	}
	return nil
}

// Close closes the store. Closing a closed table does nothing.
func (t *Table[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *Table[K, V]) closeLocked() error {
	if t.store == nil {
		return nil
	}
	err := t.store.Close()
	t.store = nil
	if t.opt.Verbose {
		t.logger.Debug("ordkv: table closed", "table", t.name, "path", t.path)
	}
	return storeErr("close", t.path, nil, err)
}

func (t *Table[K, V]) backend() Backend {
	if t.opt.Backend == "" {
		return defaultBackend
	}
	return t.opt.Backend
}

func (t *Table[K, V]) Path() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.path
}

func (t *Table[K, V]) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// Stats returns the operation counters of the table.
func (t *Table[K, V]) Stats() TableStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.metrics == nil {
		return TableStats{}
	}
	return t.metrics.stats()
}

// acquire pins the open store; the caller must call release.
func (t *Table[K, V]) acquire() (Store, error) {
	t.mu.RLock()
	if t.store == nil {
		t.mu.RUnlock()
		return nil, ErrClosed
	}
	return t.store, nil
}

func (t *Table[K, V]) release() {
	t.mu.RUnlock()
}

// Insert stores v under k, replacing any previous value.
func (t *Table[K, V]) Insert(k K, v V) error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	defer t.metrics.insertDuration.UpdateDuration(time.Now())

	key := t.encodeKey(k)
	defer releaseKeyBytes(key)
	return t.put(store, key, v)
}

// Find returns the value stored under k. Absent and undecodable records both
// report found == false with a nil error.
func (t *Table[K, V]) Find(k K) (V, bool, error) {
	var zero V
	store, err := t.acquire()
	if err != nil {
		return zero, false, err
	}
	defer t.release()
	defer t.metrics.findDuration.UpdateDuration(time.Now())
	t.metrics.finds.Inc()

	key := t.encodeKey(k)
	defer releaseKeyBytes(key)
	if !t.filter.mayContain(t.filterKey(key)) {
		t.metrics.filterSkips.Inc()
		return zero, false, nil
	}

	raw, found, err := store.Get(key)
	if err != nil {
		return zero, false, storeErr("get", t.path, key, err)
	}
	if !found {
		return zero, false, nil
	}
	v, err := t.decodeValue(raw)
	if err != nil {
		t.skipped(key, err)
		return zero, false, nil
	}
	return v, true, nil
}

// Erase deletes k and reports whether it existed.
func (t *Table[K, V]) Erase(k K) (bool, error) {
	store, err := t.acquire()
	if err != nil {
		return false, err
	}
	defer t.release()

	key := t.encodeKey(k)
	defer releaseKeyBytes(key)
	return t.eraseKey(store, key)
}

// Scan calls f for every decodable record in ascending key order. Records
// that fail to decode are skipped. f must not write to the table.
func (t *Table[K, V]) Scan(f func(k K, v V)) error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	t.metrics.scans.Inc()

	return t.iterate(store, nil, false, func(key, raw []byte) bool {
		k, v, err := t.decodeRecord(key, raw)
		if err != nil {
			t.skipped(key, err)
			return true
		}
		f(k, v)
		return true
	})
}

// Truncate deletes every record and returns how many were deleted.
func (t *Table[K, V]) Truncate() (int, error) {
	store, err := t.acquire()
	if err != nil {
		return 0, err
	}
	defer t.release()

	// Keys inserted after the reset are re-added to the filter; keys inserted
	// before it are in the scan snapshot and get deleted.
	t.filter.reset()
	return t.eraseScan(store, nil, func([]byte) scanAction { return scanTake })
}

func (t *Table[K, V]) Flush() error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	return storeErr("flush", t.path, nil, store.Flush())
}

func (t *Table[K, V]) Compact() error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	return storeErr("compact", t.path, nil, store.Compact())
}

func (t *Table[K, V]) encodeKey(k K) []byte {
	return t.keys.Append(keyBytesPool.Get().([]byte), k)
}

func (t *Table[K, V]) decodeValue(raw []byte) (V, error) {
	var v V
	if err := t.vals.decode(raw, reflect.ValueOf(&v), t.opt.StrictLayout); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

func (t *Table[K, V]) decodeRecord(key, raw []byte) (K, V, error) {
	var zeroV V
	k, err := t.keys.Decode(key)
	if err != nil {
		return k, zeroV, err
	}
	v, err := t.decodeValue(raw)
	return k, v, err
}

func (t *Table[K, V]) put(store Store, key []byte, v V) error {
	val, err := t.vals.encode(valueBytesPool.Get().([]byte), reflect.ValueOf(&v).Elem())
	if err != nil {
		return tableErrf(t.name, key, err, "encode value")
	}
	defer releaseValueBytes(val)
	if err := store.Put(key, val); err != nil {
		return storeErr("put", t.path, key, err)
	}
	t.filter.add(t.filterKey(key))
	t.metrics.inserts.Inc()
	return nil
}

func (t *Table[K, V]) eraseKey(store Store, key []byte) (bool, error) {
	_, found, err := store.Get(key)
	if err != nil {
		return false, storeErr("get", t.path, key, err)
	}
	if !found {
		return false, nil
	}
	if err := store.Delete(key); err != nil {
		return false, storeErr("delete", t.path, key, err)
	}
	t.metrics.erases.Inc()
	return true, nil
}

func (t *Table[K, V]) skipped(key []byte, err error) {
	t.metrics.decodeErrors.Inc()
	t.logger.LogAttrs(context.Background(), slog.LevelDebug, "ordkv: skipping undecodable record",
		slog.String("table", t.name), hexAttr("key", key), slog.Any("err", err))
}

func (t *Table[K, V]) iterate(store Store, seek []byte, reverse bool, f func(key, value []byte) bool) error {
	return iterateStore(store, t.path, seek, reverse, f)
}

// iterateStore walks the store from seek calling f until it returns false. A
// nil seek starts at the first (or, with reverse, the last) record; otherwise
// the walk starts at the first key >= seek, or with reverse at the last key
// <= seek.
func iterateStore(store Store, path string, seek []byte, reverse bool, f func(key, value []byte) bool) error {
	c, err := store.NewCursor()
	if err != nil {
		return storeErr("iterate", path, seek, err)
	}
	defer c.Close()

	var k, v []byte
	switch {
	case seek == nil && !reverse:
		k, v = c.First()
	case seek == nil:
		k, v = c.Last()
	case !reverse:
		k, v = c.Seek(seek)
	default:
		k, v = c.SeekForPrev(seek)
	}
	for k != nil {
		if !f(k, v) {
			break
		}
		if reverse {
			k, v = c.Prev()
		} else {
			k, v = c.Next()
		}
	}
	return storeErr("iterate", path, nil, c.Err())
}

type scanAction int

const (
	scanTake scanAction = iota
	scanSkip
	scanStop
)

// eraseScan deletes records from seek onwards while match keeps the scan
// going. Keys are collected in batches and deleted after the cursor is
// closed, so no read snapshot stays open across writes.
func (t *Table[K, V]) eraseScan(store Store, seek []byte, match func(key []byte) scanAction) (int, error) {
	var n int
	seek = cloneBytes(seek)
	for {
		var batch [][]byte
		done := true
		err := t.iterate(store, seek, false, func(key, _ []byte) bool {
			switch match(key) {
			case scanStop:
				return false
			case scanTake:
				batch = append(batch, cloneBytes(key))
				if len(batch) >= eraseBatchSize {
					done = false
					return false
				}
			}
			return true
		})
		if err != nil {
			return n, err
		}
		for _, key := range batch {
			if err := store.Delete(key); err != nil {
				return n, storeErr("delete", t.path, key, err)
			}
			n++
		}
		t.metrics.erases.Add(len(batch))
		if done {
			return n, nil
		}
		seek = batch[len(batch)-1]
	}
}
