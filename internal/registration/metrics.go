package registration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	insertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "festreg_registrations_inserted_total",
		Help: "Registration rows written to event tables.",
	})
	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "festreg_registrations_skipped_total",
		Help: "Registration attempts skipped as already registered.",
	})
	lookupServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festreg_lookups_total",
		Help: "User lookups served, by layer (cache, index, scan).",
	}, []string{"layer"})
	adminScans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "festreg_admin_scans_total",
		Help: "Full admin aggregate scans across all event tables.",
	})
)
