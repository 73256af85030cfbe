package silo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionMethodTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "silo_extraction_method_total",
		Help: "Content extractions by method (direct, renderer).",
	}, []string{"method"})

	ocrRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "silo_screenshot_ocr_total",
		Help: "Screenshot OCR attempts on sparse pages.",
	})

	fetchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "silo_fetch_failures_total",
		Help: "URL fetches that produced no usable content.",
	})

	linksSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "silo_links_saved_total",
		Help: "Links saved by final status (saved, context_only, unreachable).",
	}, []string{"status"})
)
