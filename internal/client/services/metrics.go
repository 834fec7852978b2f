package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sealOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truecam_seal_outcomes_total",
		Help: "Sealing runs by outcome (sealed, local_only).",
	}, []string{"status"})

	sealStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truecam_seal_step_failures_total",
		Help: "Sealing protocol failures by step.",
	}, []string{"step"})

	syncOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truecam_sync_outcomes_total",
		Help: "Remote replication results (synced, skipped, blob_failed, metadata_failed).",
	}, []string{"result"})

	signedURLCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truecam_signed_url_cache_hits_total",
		Help: "Signed read URLs served from the in-memory cache.",
	})
	signedURLCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truecam_signed_url_cache_misses_total",
		Help: "Signed read URLs that had to be minted.",
	})
)
