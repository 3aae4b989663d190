package ordkv

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const keyFilterFalsePositiveRate = 0.01

// keyFilter is a bloom filter over encoded primary keys. It only ever
// answers "definitely absent" or "maybe present", so erased keys stay in it
// until the table is truncated or reopened.
type keyFilter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
	n  uint
}

func newKeyFilter(n uint) *keyFilter {
	if n == 0 {
		return nil
	}
	return &keyFilter{
		bf: bloom.NewWithEstimates(n, keyFilterFalsePositiveRate),
		n:  n,
	}
}

func (f *keyFilter) add(key []byte) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *keyFilter) mayContain(key []byte) bool {
	if f == nil {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

func (f *keyFilter) reset() {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.bf.ClearAll()
	f.mu.Unlock()
}
