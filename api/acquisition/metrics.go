package acquisition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acqStartedCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acquisitions_started_total",
		Help: "Number of acquisition runs started.",
	})
	acqFinishedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acquisitions_finished_total",
		Help: "Number of acquisition runs finished, by terminal state.",
	}, []string{"state"})
	acqActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acquisitions_active",
		Help: "Acquisition runs currently in flight.",
	})
	acqTilesDoneGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acquisition_tiles_done",
		Help: "Tiles acquired so far by the active run on each microscope.",
	}, []string{"microscope"})
)
