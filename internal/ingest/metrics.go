package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spatial_ingest_pages_total",
	Help: "Slide pages produced from uploads",
}, []string{"kind"})
