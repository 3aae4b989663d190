package ordkv

import (
	"bytes"
	"fmt"
)

// Backend names an ordered byte store implementation.
type Backend string

const (
	BoltBackend    Backend = "bolt"
	LevelDBBackend Backend = "leveldb"
	BadgerBackend  Backend = "badger"
	MemoryBackend  Backend = "memory"

	defaultBackend = BoltBackend
)

// Store is the ordered byte store every table sits on. Keys are ordered by
// the store's comparator (bytewise unless StoreOptions.Comparator is set and
// the backend supports it).
type Store interface {
	// Get returns a copy of the value stored under key.
	Get(key []byte) (value []byte, found bool, err error)

	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// NewCursor returns a cursor over a consistent snapshot taken now.
	// The caller must close it.
	NewCursor() (Cursor, error)

	// Flush makes buffered writes durable.
	Flush() error

	Compact() error

	Close() error
}

// RangeDeleter is implemented by stores that can delete [begin, end)
// natively.
type RangeDeleter interface {
	DeleteRange(begin, end []byte) (int, error)
}

// Cursor iterates over a sorted snapshot. Methods return a nil key when the
// cursor moves past either end. Returned slices are valid until the next
// call on the cursor.
type Cursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Last moves to the last key-value pair.
	Last() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// SeekForPrev moves to the last key <= seek.
	SeekForPrev(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Prev moves to the previous key-value pair.
	Prev() (key, value []byte)

	// Err returns an I/O error encountered while iterating, if any.
	Err() error

	Close() error
}

type StoreOptions struct {
	Backend Backend

	// Comparator orders keys for backends that accept a custom order
	// (leveldb, memory). Bolt and badger always order bytewise.
	Comparator *Comparator

	// IsTesting trades durability for speed.
	IsTesting bool

	// MmapSize is the initial bolt mmap size.
	MmapSize int

	// SyncWrites fsyncs every write (leveldb, badger).
	SyncWrites bool
}

// OpenStore opens or creates the store at path.
func OpenStore(path string, opt StoreOptions) (Store, error) {
	if opt.Backend == "" {
		opt.Backend = defaultBackend
	}
	var s Store
	var err error
	switch opt.Backend {
	case BoltBackend:
		s, err = openBoltStore(path, opt)
	case LevelDBBackend:
		s, err = openLevelDBStore(path, opt)
	case BadgerBackend:
		s, err = openBadgerStore(path, opt)
	case MemoryBackend:
		s, err = newMemStore(opt), nil
	default:
		err = fmt.Errorf("unknown backend %q", opt.Backend)
	}
	if err != nil {
		return nil, &OpenError{opt.Backend, path, err}
	}
	return s, nil
}

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BoltBackend, LevelDBBackend, BadgerBackend, MemoryBackend:
		return b, nil
	case "":
		return defaultBackend, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

func storeCompare(opt StoreOptions) func(a, b []byte) int {
	if opt.Comparator != nil {
		return opt.Comparator.Compare
	}
	return bytes.Compare
}
