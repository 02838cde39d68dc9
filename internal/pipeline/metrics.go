package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/bankscan/internal/model"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "pipeline",
		Name:      "records_total",
		Help:      "Processed images by record status.",
	}, []string{"status"})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "pipeline",
		Name:      "validations_total",
		Help:      "Successful records by ledger validation status.",
	}, []string{"status"})

	imageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bankscan",
		Subsystem: "pipeline",
		Name:      "image_duration_seconds",
		Help:      "End-to-end processing time per image.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "pipeline",
		Name:      "batches_total",
		Help:      "Completed batches.",
	})
)

func observe(rec model.ExtractedRecord) {
	recordsTotal.WithLabelValues(string(rec.Status)).Inc()
	if rec.ValidationStatus != "" {
		validationsTotal.WithLabelValues(string(rec.ValidationStatus)).Inc()
	}
	imageDuration.Observe(rec.ProcessingTime)
}
