package ordkv

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// MaxIndex is reserved as the probe sentinel and is never assigned. The
// largest index a key can hold is MaxIndex-1.
const MaxIndex = math.MaxUint32

// FindMode selects how far a MultiTable lookup runs past the requested key.
type FindMode int

const (
	// Equal returns the records of exactly the requested key.
	Equal FindMode = iota

	// GreaterEqual returns the records of the requested key and of every key
	// after it.
	GreaterEqual
)

func (m FindMode) String() string {
	switch m {
	case Equal:
		return "equal"
	case GreaterEqual:
		return "greater-equal"
	default:
		return "FindMode(?)"
	}
}

// Entry is one MultiTable record.
type Entry[K, V any] struct {
	Key   K
	Index uint32
	Value V
}

type compositeKey[K any] struct {
	Key   K
	Index uint32
}

// MultiTable maps each K to an ordered sequence of V. Every value is stored
// as its own record under (K, index), where index is assigned on insert as
// one more than the largest index currently stored for K.
type MultiTable[K, V any] struct {
	tbl  *Table[compositeKey[K], V]
	keys KeyCodec[K]

	// insertMu serializes index probing with the write that follows it.
	insertMu sync.Mutex
}

func NewMultiTable[K, V any](opt Options) *MultiTable[K, V] {
	t := &MultiTable[K, V]{
		tbl:  NewTable[compositeKey[K], V](opt),
		keys: NewKeyCodec[K](),
	}
	t.tbl.filterKey = primaryKeyPrefix
	return t
}

func OpenMultiTable[K, V any](path string, opt Options) (*MultiTable[K, V], error) {
	t := NewMultiTable[K, V](opt)
	if err := t.Open(path); err != nil {
		return nil, err
	}
	return t, nil
}

// primaryKeyPrefix strips the index from an encoded composite key.
func primaryKeyPrefix(key []byte) []byte {
	if len(key) < 4 {
		return key
	}
	return key[:len(key)-4]
}

func (t *MultiTable[K, V]) Open(path string) error { return t.tbl.Open(path) }
func (t *MultiTable[K, V]) Close() error           { return t.tbl.Close() }
func (t *MultiTable[K, V]) Flush() error           { return t.tbl.Flush() }
func (t *MultiTable[K, V]) Compact() error         { return t.tbl.Compact() }
func (t *MultiTable[K, V]) Path() string           { return t.tbl.Path() }
func (t *MultiTable[K, V]) Name() string           { return t.tbl.Name() }
func (t *MultiTable[K, V]) Stats() TableStats      { return t.tbl.Stats() }

// Truncate deletes every record of every key.
func (t *MultiTable[K, V]) Truncate() (int, error) { return t.tbl.Truncate() }

func (t *MultiTable[K, V]) encodeKey(k K, idx uint32) []byte {
	return t.tbl.encodeKey(compositeKey[K]{k, idx})
}

// Insert appends v to the sequence of k and returns the index assigned to it.
func (t *MultiTable[K, V]) Insert(k K, v V) (uint32, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return 0, err
	}
	defer t.tbl.release()
	defer t.tbl.metrics.insertDuration.UpdateDuration(time.Now())

	t.insertMu.Lock()
	defer t.insertMu.Unlock()

	idx, err := t.nextIndex(store, k)
	if err != nil {
		return 0, err
	}
	if idx == MaxIndex {
		return 0, t.overflow(k)
	}

	key := t.encodeKey(k, idx)
	defer releaseKeyBytes(key)
	if err := t.tbl.put(store, key, v); err != nil {
		return 0, err
	}
	return idx, nil
}

// InsertMany appends vs to the sequence of k after a single index probe. It
// returns the number of values written; on failure the values written before
// it stay committed.
func (t *MultiTable[K, V]) InsertMany(k K, vs ...V) (int, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return 0, err
	}
	defer t.tbl.release()

	t.insertMu.Lock()
	defer t.insertMu.Unlock()

	idx, err := t.nextIndex(store, k)
	if err != nil {
		return 0, err
	}
	key := keyBytesPool.Get().([]byte)
	defer func() { releaseKeyBytes(key) }()
	for i, v := range vs {
		if idx == MaxIndex {
			return i, t.overflow(k)
		}
		key = t.tbl.keys.Append(key[:0], compositeKey[K]{k, idx})
		if err := t.tbl.put(store, key, v); err != nil {
			return i, err
		}
		idx++
	}
	return len(vs), nil
}

// nextIndex returns the index the next record of k gets: one more than the
// largest stored index of k, or 0. MaxIndex means the key space of k is
// exhausted.
func (t *MultiTable[K, V]) nextIndex(store Store, k K) (uint32, error) {
	probe := t.encodeKey(k, MaxIndex)
	defer releaseKeyBytes(probe)

	var next uint32
	err := t.tbl.iterate(store, probe, true, func(key, _ []byte) bool {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		if t.keys.Compare(ck.Key, k) == 0 {
			if ck.Index >= MaxIndex-1 {
				next = MaxIndex
			} else {
				next = ck.Index + 1
			}
		}
		return false
	})
	return next, err
}

func (t *MultiTable[K, V]) overflow(k K) error {
	t.tbl.metrics.overflows.Inc()
	prefix := t.keys.Append(keyBytesPool.Get().([]byte), k)
	defer releaseKeyBytes(prefix)
	t.tbl.logger.LogAttrs(context.Background(), slog.LevelWarn, "ordkv: index space exhausted",
		slog.String("table", t.tbl.name), hexAttr("key", prefix))
	return tableErrf(t.tbl.name, prefix, ErrOverflow, "cannot assign index past %d", uint32(MaxIndex-1))
}

// Find returns the values of k in ascending index order. With GreaterEqual it
// continues into the following keys.
func (t *MultiTable[K, V]) Find(k K, mode FindMode) ([]V, error) {
	entries, err := t.FindEntries(k, mode)
	return entryValues(entries), err
}

// FindEntries is Find that also returns keys and indices.
func (t *MultiTable[K, V]) FindEntries(k K, mode FindMode) ([]Entry[K, V], error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return nil, err
	}
	defer t.tbl.release()
	defer t.tbl.metrics.findDuration.UpdateDuration(time.Now())
	t.tbl.metrics.finds.Inc()

	if mode == Equal && !t.mayContain(k) {
		t.tbl.metrics.filterSkips.Inc()
		return nil, nil
	}

	seek := t.encodeKey(k, 0)
	defer releaseKeyBytes(seek)

	var result []Entry[K, V]
	err = t.tbl.iterate(store, seek, false, func(key, raw []byte) bool {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		c := t.keys.Compare(ck.Key, k)
		if c < 0 || (c > 0 && mode == Equal) {
			return false
		}
		v, err := t.tbl.decodeValue(raw)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		result = append(result, Entry[K, V]{ck.Key, ck.Index, v})
		return true
	})
	return result, err
}

// FindLast returns up to limit values of k, newest first. A limit of zero or
// less returns all of them.
func (t *MultiTable[K, V]) FindLast(k K, limit int) ([]V, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return nil, err
	}
	defer t.tbl.release()
	t.tbl.metrics.finds.Inc()

	if !t.mayContain(k) {
		t.tbl.metrics.filterSkips.Inc()
		return nil, nil
	}

	seek := t.encodeKey(k, MaxIndex)
	defer releaseKeyBytes(seek)

	var result []V
	err = t.tbl.iterate(store, seek, true, func(key, raw []byte) bool {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		if t.keys.Compare(ck.Key, k) != 0 {
			return false
		}
		v, err := t.tbl.decodeValue(raw)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		result = append(result, v)
		return limit <= 0 || len(result) < limit
	})
	return result, err
}

// FindRange returns the values of every key in [begin, end), ordered by key
// and then by index.
func (t *MultiTable[K, V]) FindRange(begin, end K) ([]V, error) {
	entries, err := t.FindRangeEntries(begin, end)
	return entryValues(entries), err
}

func (t *MultiTable[K, V]) FindRangeEntries(begin, end K) ([]Entry[K, V], error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return nil, err
	}
	defer t.tbl.release()
	t.tbl.metrics.scans.Inc()

	if t.keys.Compare(begin, end) >= 0 {
		return nil, nil
	}

	seek := t.encodeKey(begin, 0)
	defer releaseKeyBytes(seek)

	var result []Entry[K, V]
	err = t.tbl.iterate(store, seek, false, func(key, raw []byte) bool {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		if t.keys.Compare(ck.Key, end) >= 0 {
			return false
		}
		v, err := t.tbl.decodeValue(raw)
		if err != nil {
			t.tbl.skipped(key, err)
			return true
		}
		result = append(result, Entry[K, V]{ck.Key, ck.Index, v})
		return true
	})
	return result, err
}

// Erase deletes the record (k, index) and reports whether it existed.
func (t *MultiTable[K, V]) Erase(k K, index uint32) (bool, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return false, err
	}
	defer t.tbl.release()

	key := t.encodeKey(k, index)
	defer releaseKeyBytes(key)
	return t.tbl.eraseKey(store, key)
}

// EraseAll deletes the records Find(k, mode) would return, plus any
// undecodable values among them, and returns how many were deleted.
func (t *MultiTable[K, V]) EraseAll(k K, mode FindMode) (int, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return 0, err
	}
	defer t.tbl.release()

	seek := t.encodeKey(k, 0)
	defer releaseKeyBytes(seek)

	return t.tbl.eraseScan(store, seek, func(key []byte) scanAction {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			return scanSkip
		}
		c := t.keys.Compare(ck.Key, k)
		if c < 0 || (c > 0 && mode == Equal) {
			return scanStop
		}
		return scanTake
	})
}

// EraseRange deletes the records of every key in [begin, end).
func (t *MultiTable[K, V]) EraseRange(begin, end K) (int, error) {
	store, err := t.tbl.acquire()
	if err != nil {
		return 0, err
	}
	defer t.tbl.release()

	if t.keys.Compare(begin, end) >= 0 {
		return 0, nil
	}

	lo := t.encodeKey(begin, 0)
	defer releaseKeyBytes(lo)

	if rd, ok := store.(RangeDeleter); ok {
		hi := t.encodeKey(end, 0)
		defer releaseKeyBytes(hi)
		n, err := rd.DeleteRange(lo, hi)
		t.tbl.metrics.erases.Add(n)
		return n, storeErr("delete range", t.tbl.path, lo, err)
	}

	return t.tbl.eraseScan(store, lo, func(key []byte) scanAction {
		ck, err := t.tbl.keys.Decode(key)
		if err != nil {
			return scanSkip
		}
		if t.keys.Compare(ck.Key, end) >= 0 {
			return scanStop
		}
		return scanTake
	})
}

// EraseAllMany runs EraseAll(k, Equal) for every key on a bounded worker
// pool and returns the total number of records deleted. Failures are logged
// and do not stop the remaining keys.
func (t *MultiTable[K, V]) EraseAllMany(keys []K) int {
	return forEachParallel(len(keys), t.tbl.opt.workers(), func(i int) (int, error) {
		return t.EraseAll(keys[i], Equal)
	}, func(i int, err error) {
		t.tbl.logger.Warn("ordkv: bulk erase failed", "table", t.Name(), "key", keys[i], "err", err)
	})
}

// Scan calls f for every decodable record, ordered by key and then by index.
func (t *MultiTable[K, V]) Scan(f func(k K, v V)) error {
	return t.tbl.Scan(func(ck compositeKey[K], v V) {
		f(ck.Key, v)
	})
}

// ScanEntries is Scan with indices.
func (t *MultiTable[K, V]) ScanEntries(f func(e Entry[K, V])) error {
	return t.tbl.Scan(func(ck compositeKey[K], v V) {
		f(Entry[K, V]{ck.Key, ck.Index, v})
	})
}

func (t *MultiTable[K, V]) mayContain(k K) bool {
	if t.tbl.filter == nil {
		return true
	}
	prefix := t.keys.Append(keyBytesPool.Get().([]byte), k)
	defer releaseKeyBytes(prefix)
	return t.tbl.filter.mayContain(prefix)
}

func entryValues[K, V any](entries []Entry[K, V]) []V {
	if entries == nil {
		return nil
	}
	values := make([]V, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values
}
