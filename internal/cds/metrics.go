package cds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// browseRequests counts Browse calls by flag and result
	browseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upnpcds_browse_requests_total",
		Help: "Total Browse requests by browse flag and result",
	}, []string{"flag", "result"})

	// browseDuration tracks Browse latency
	browseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upnpcds_browse_duration_seconds",
		Help:    "Browse duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"flag"})

	// browseReturned tracks the window size of BrowseDirectChildren responses
	browseReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upnpcds_browse_returned_items",
		Help:    "Number of items returned per BrowseDirectChildren request",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
	})

	// routedOperations counts routed refresh/update fan-outs by result
	routedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upnpcds_routed_operations_total",
		Help: "Total routed repository operations by operation and result",
	}, []string{"operation", "result"})

	// IngestedFiles counts files accepted by repositories, by repository kind
	IngestedFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upnpcds_ingested_files_total",
		Help: "Total files ingested into the catalog by repository kind",
	}, []string{"kind"})

	// IngestErrors counts files skipped because ingestion failed
	IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upnpcds_ingest_errors_total",
		Help: "Total files skipped after an ingestion failure by repository kind",
	}, []string{"kind"})
)
