package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// exportedTotal counts exported records.
// Labels: sink (csv, sql, png, memory, remote), result (success, error)
var exportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rfiflag",
	Name:      "exported_records_total",
	Help:      "Records handed to an exporter",
}, []string{"sink", "result"})
