package ordkv

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var defaultMetrics = metrics.NewSet()

// WriteMetrics writes the default metrics set in Prometheus text format.
func WriteMetrics(w io.Writer) {
	defaultMetrics.WritePrometheus(w)
}

type tableMetrics struct {
	inserts      *metrics.Counter
	finds        *metrics.Counter
	erases       *metrics.Counter
	scans        *metrics.Counter
	decodeErrors *metrics.Counter
	overflows    *metrics.Counter
	filterSkips  *metrics.Counter

	insertDuration *metrics.Histogram
	findDuration   *metrics.Histogram
}

func newTableMetrics(set *metrics.Set, table string) *tableMetrics {
	if set == nil {
		set = defaultMetrics
	}
	op := func(name string) string {
		return fmt.Sprintf(`ordkv_ops_total{table=%q,op=%q}`, table, name)
	}
	dur := func(name string) string {
		return fmt.Sprintf(`ordkv_op_duration_seconds{table=%q,op=%q}`, table, name)
	}
	return &tableMetrics{
		inserts:        set.GetOrCreateCounter(op("insert")),
		finds:          set.GetOrCreateCounter(op("find")),
		erases:         set.GetOrCreateCounter(op("erase")),
		scans:          set.GetOrCreateCounter(op("scan")),
		decodeErrors:   set.GetOrCreateCounter(fmt.Sprintf(`ordkv_decode_errors_total{table=%q}`, table)),
		overflows:      set.GetOrCreateCounter(fmt.Sprintf(`ordkv_overflows_total{table=%q}`, table)),
		filterSkips:    set.GetOrCreateCounter(fmt.Sprintf(`ordkv_filter_skips_total{table=%q}`, table)),
		insertDuration: set.GetOrCreateHistogram(dur("insert")),
		findDuration:   set.GetOrCreateHistogram(dur("find")),
	}
}

// TableStats is a snapshot of a table's operation counters.
type TableStats struct {
	Inserts      uint64
	Finds        uint64
	Erases       uint64
	Scans        uint64
	DecodeErrors uint64
	Overflows    uint64
	FilterSkips  uint64
}

func (m *tableMetrics) stats() TableStats {
	return TableStats{
		Inserts:      m.inserts.Get(),
		Finds:        m.finds.Get(),
		Erases:       m.erases.Get(),
		Scans:        m.scans.Get(),
		DecodeErrors: m.decodeErrors.Get(),
		Overflows:    m.overflows.Get(),
		FilterSkips:  m.filterSkips.Get(),
	}
}
