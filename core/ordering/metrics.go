package ordering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/academia/core"
)

const (
	opInsert  = "insert"
	opMove    = "move"
	opDelete  = "delete"
	opCompact = "compact"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academia",
		Name:      "reindex_operations_total",
		Help:      "Ordered collection operations, by collection, operation and result.",
	}, []string{"collection", "op", "result"})

	shiftSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "academia",
		Name:      "reindex_shift_size",
		Help:      "Number of siblings renumbered by a committed operation.",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	}, []string{"collection", "op"})
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsValidationError(err):
		return "invalid"
	case core.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

func (r *Reindexer) observe(op string, shifted int, err error) {
	operationsTotal.WithLabelValues(r.collection, op, resultLabel(err)).Inc()
	if err == nil {
		shiftSize.WithLabelValues(r.collection, op).Observe(float64(shifted))
	}
}
