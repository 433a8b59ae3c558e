package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_catalog_cache_lookups_total",
		Help: "Catalog snapshot lookups, labeled by hit or miss",
	}, []string{"result"})
	reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_catalog_reloads_total",
		Help: "Catalog file reloads, labeled by outcome",
	}, []string{"outcome"})
)
