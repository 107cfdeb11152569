package refs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricResolutions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetstruct_ref_resolutions_total",
		Help: "Reference resolution requests.",
	})

	metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetstruct_ref_outcomes_total",
		Help: "Reference resolution outcomes.",
	}, []string{"outcome"})

	metricCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetstruct_ref_cache_total",
		Help: "Reference cache consultations.",
	}, []string{"result"})

	metricLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetstruct_ref_portal_lookups_total",
		Help: "Object lookups issued to the portal.",
	})

	metricInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetstruct_ref_invalid_identifying_values_total",
		Help: "Reference values rejected before lookup because no identifying property could match them.",
	})
)
