package ordkv

import (
	"path/filepath"
	"testing"
)

func TestRegistry_Sync(t *testing.T) {
	forEachBackend(t, persistentBackends, func(t *testing.T, backend Backend) {
		path := filepath.Join(t.TempDir(), "registry.db")
		opt := testOptions(backend)

		reg := must(OpenRegistry(path, opt))
		du, ds := DescriptorOf[user](), DescriptorOf[string]()
		deepEqual(t, must(reg.Sync(du, ds)), 2)
		deepEqual(t, must(reg.Sync(du, ds)), 0)
		ensure(reg.Close())

		reg = must(OpenRegistry(path, opt))
		defer reg.Close()
		d, ok := reg.Lookup(du.Hash)
		deepEqual(t, ok, true)
		deepEqual(t, d, du)
		deepEqual(t, len(reg.All()), 2)

		di := DescriptorOf[int]()
		deepEqual(t, must(reg.Sync(du, di)), 1)
		_, ok = reg.Lookup(di.Hash)
		deepEqual(t, ok, true)
	})
}

func TestRegistry_TablesRegisterOnOpen(t *testing.T) {
	dir := t.TempDir()
	reg := must(OpenRegistry(filepath.Join(dir, "registry.db"), testOptions(BoltBackend)))
	defer reg.Close()

	opt := testOptions(BoltBackend)
	opt.Registry = reg
	users := must(OpenTable[string, user](filepath.Join(dir, "users.db"), opt))
	defer users.Close()
	events := must(OpenMultiTable[int64, valueSample](filepath.Join(dir, "events.db"), opt))
	defer events.Close()

	_, ok := reg.Lookup(DescriptorOf[user]().Hash)
	deepEqual(t, ok, true)
	d, ok := reg.Lookup(DescriptorOf[valueSample]().Hash)
	deepEqual(t, ok, true)
	deepEqual(t, d.TypeName, "ordkv.valueSample")

	all := reg.All()
	deepEqual(t, len(all), 2)
	if all[0].Hash > all[1].Hash {
		t.Errorf("All() is not ordered by hash")
	}
}
