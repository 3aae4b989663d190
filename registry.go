package ordkv

import (
	"sort"
	"sync"
)

// Registry persists the value descriptors of the tables that use it, keyed by
// layout hash, so the layout a stored value was written with can be looked up
// later.
type Registry struct {
	tbl *Table[uint64, Descriptor]

	mu    sync.Mutex
	known map[uint64]Descriptor
}

func OpenRegistry(path string, opt Options) (*Registry, error) {
	opt.Registry = nil
	tbl, err := OpenTable[uint64, Descriptor](path, opt)
	if err != nil {
		return nil, err
	}
	r := &Registry{tbl: tbl}
	if err := r.load(); err != nil {
		tbl.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) Close() error {
	return r.tbl.Close()
}

func (r *Registry) load() error {
	known := make(map[uint64]Descriptor)
	err := r.tbl.Scan(func(hash uint64, d Descriptor) {
		known[hash] = d
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.known = known
	r.mu.Unlock()
	return nil
}

// Sync records every descriptor not stored yet and returns how many were
// added.
func (r *Registry) Sync(descs ...Descriptor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, d := range descs {
		if _, ok := r.known[d.Hash]; ok {
			continue
		}
		if err := r.tbl.Insert(d.Hash, d); err != nil {
			return n, err
		}
		r.known[d.Hash] = d
		n++
	}
	if n > 0 {
		r.tbl.logger.Debug("ordkv: registry updated", "path", r.tbl.Path(), "added", n)
	}
	return n, nil
}

// Register records a single descriptor and reports whether it was new.
func (r *Registry) Register(d Descriptor) (bool, error) {
	n, err := r.Sync(d)
	return n > 0, err
}

func (r *Registry) Lookup(hash uint64) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.known[hash]
	return d, ok
}

// All returns the known descriptors ordered by hash.
func (r *Registry) All() []Descriptor {
	r.mu.Lock()
	result := make([]Descriptor, 0, len(r.known))
	for _, d := range r.known {
		result = append(result, d)
	}
	r.mu.Unlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Hash < result[j].Hash
	})
	return result
}
