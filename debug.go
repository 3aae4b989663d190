package ordkv

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpRows
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the table for debugging: one line per record, with the
// decoded key and the value as JSON.
func (t *Table[K, V]) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	err := t.dump(&buf, f, func(w *strings.Builder, prefix string, pos int, key, raw []byte) {
		k, v, err := t.decodeRecord(key, raw)
		if err != nil {
			fmt.Fprintf(w, "%s.%d = %s ** ERROR: %v\n", prefix, pos, hexstr(key), err)
			return
		}
		fmt.Fprintf(w, "%s.%d = %v => %s\n", prefix, pos, k, dumpJSON(v))
	})
	return buf.String(), err
}

// Dump renders the table for debugging, one line per (key, index) record.
func (t *MultiTable[K, V]) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	err := t.tbl.dump(&buf, f, func(w *strings.Builder, prefix string, pos int, key, raw []byte) {
		ck, v, err := t.tbl.decodeRecord(key, raw)
		if err != nil {
			fmt.Fprintf(w, "%s.%d = %s ** ERROR: %v\n", prefix, pos, hexstr(key), err)
			return
		}
		fmt.Fprintf(w, "%s.%d = %v#%d => %s\n", prefix, pos, ck.Key, ck.Index, dumpJSON(v))
	})
	return buf.String(), err
}

func (t *Table[K, V]) dump(w *strings.Builder, f DumpFlags, dumpRow func(w *strings.Builder, prefix string, pos int, key, raw []byte)) error {
	store, err := t.acquire()
	if err != nil {
		return err
	}
	defer t.release()
	prefix := t.name

	if f.Contains(DumpHeader) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%s, %s)\n", prefix, t.backend(), t.path)
	}
	if f.Contains(DumpStats) {
		s := t.metrics.stats()
		fmt.Fprintf(w, "%s.stats: inserts = %d, finds = %d, erases = %d, scans = %d, decode_errors = %d, overflows = %d\n", prefix, s.Inserts, s.Finds, s.Erases, s.Scans, s.DecodeErrors, s.Overflows)
	}
	if !f.Contains(DumpRows) {
		return nil
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(w, dumpSep2)
	}
	var pos int
	return t.iterate(store, nil, false, func(key, raw []byte) bool {
		pos++
		dumpRow(w, prefix, pos, key, raw)
		return true
	})
}

// Dump renders the raw records as hex.
func (t *RawTable) Dump(f DumpFlags) (string, error) {
	store, err := t.acquire()
	if err != nil {
		return "", err
	}
	defer t.release()

	var w strings.Builder
	if f.Contains(DumpHeader) {
		fmt.Fprintln(&w, dumpSep1)
		fmt.Fprintf(&w, "%s (raw, %s)\n", t.name, t.path)
	}
	if !f.Contains(DumpRows) {
		return w.String(), nil
	}
	var pos int
	err = iterateStore(store, t.path, nil, false, func(key, raw []byte) bool {
		pos++
		fmt.Fprintf(&w, "%s.%d = %s => %s\n", t.name, pos, hexstr(key), hexstr(raw))
		return true
	})
	return w.String(), err
}

func dumpJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("** ERROR: %v", err)
	}
	return string(raw)
}
