package ocr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "ocr",
		Name:      "provider_calls_total",
		Help:      "OCR provider calls by outcome (ok, error, panic, circuit_open).",
	}, []string{"provider", "outcome"})

	providerFragments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "ocr",
		Name:      "fragments_total",
		Help:      "Text fragments returned per provider.",
	}, []string{"provider"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bankscan",
		Subsystem: "ocr",
		Name:      "provider_duration_seconds",
		Help:      "OCR provider call latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	fallbackUsed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bankscan",
		Subsystem: "ocr",
		Name:      "simulated_fallback_total",
		Help:      "Images for which no provider returned text and canned fragments were used.",
	})
)
