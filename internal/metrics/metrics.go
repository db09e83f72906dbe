package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bulk_downloader"

var (
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Terminal task outcomes by kind",
	}, []string{"outcome"})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "download_bytes_total",
		Help:      "Total bytes of accepted artifacts",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of single fetch attempts in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Retries scheduled by the retry policy",
	}, []string{"reason"})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inflight",
		Help:      "Tasks currently being fetched",
	})

	CircuitPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_paused",
		Help:      "1 while the circuit breaker holds dispatch",
	})

	PauseEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pause_events_total",
		Help:      "Number of circuit breaker trips",
	})

	CheckpointSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoint_saves_total",
		Help:      "Checkpoint save attempts by result",
	}, []string{"result"})

	TasksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_skipped_total",
		Help:      "Tasks skipped because they were already completed",
	})
)
