package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// deliveryEvents mirrors every counter increment into the default Prometheus
// registry so operational dashboards see the same numbers as Snapshot,
// without the persisted snapshot depending on a scrape.
var deliveryEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifykit_delivery_events_total",
		Help: "Total delivery events by channel and event type",
	},
	[]string{"channel", "event"},
)

func observe(channel string, c Counter) {
	deliveryEvents.WithLabelValues(channel, string(c)).Inc()
}

func observeN(channel string, c Counter, delta int64) {
	if delta > 0 {
		deliveryEvents.WithLabelValues(channel, string(c)).Add(float64(delta))
	}
}
