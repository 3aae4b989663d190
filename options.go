package ordkv

import (
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/VictoriaMetrics/metrics"
)

// Options configure a table. The zero value is usable: bolt backend,
// msgpack values, no compression, default slog logger.
type Options struct {
	Backend Backend

	// Name labels log records and metrics; defaults to the absolute store
	// path. Tables sharing a metrics set need distinct names.
	Name string

	Logger  *slog.Logger
	Verbose bool

	// Metrics receives the table's counters; defaults to a package-level set
	// exposed by WriteMetrics.
	Metrics *metrics.Set

	Encoding    Encoding
	Compression Compression

	// StrictLayout rejects values written under a different value layout
	// instead of letting msgpack decode them by field name.
	StrictLayout bool

	// KeyFilterSize enables a bloom filter over primary keys sized for the
	// given number of keys. Lookups of absent keys then skip the store.
	KeyFilterSize uint

	// Workers bounds the parallelism of bulk erase; defaults to GOMAXPROCS.
	Workers int

	// Registry, if set, records the table's value descriptor on open.
	Registry *Registry

	IsTesting  bool
	MmapSize   int
	SyncWrites bool
}

func (opt Options) storeOptions(cmp *Comparator) StoreOptions {
	return StoreOptions{
		Backend:    opt.Backend,
		Comparator: cmp,
		IsTesting:  opt.IsTesting,
		MmapSize:   opt.MmapSize,
		SyncWrites: opt.SyncWrites,
	}
}

func (opt Options) name(path string) string {
	if opt.Name != "" {
		return opt.Name
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (opt Options) logger() *slog.Logger {
	if opt.Logger != nil {
		return opt.Logger
	}
	return slog.Default()
}

func (opt Options) workers() int {
	if opt.Workers > 0 {
		return opt.Workers
	}
	return runtime.GOMAXPROCS(0)
}
