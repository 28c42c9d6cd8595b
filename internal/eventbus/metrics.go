package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics экспортирует счётчики шины в Prometheus.
// Значения читаются из bus.Metrics() в момент сбора.
func RegisterMetrics(reg prometheus.Registerer, bus EventBus) error {
	counter := func(name, help string, get func(Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(bus.Metrics())) })
	}

	collectors := []prometheus.Collector{
		counter("messages_published_total", "Общее число опубликованных сообщений.",
			func(s Stats) uint64 { return s.Published }),
		counter("messages_consumed_total", "Общее число доставленных сообщений подписчикам.",
			func(s Stats) uint64 { return s.Consumed }),
		counter("messages_dropped_total", "Сообщений, отброшенных из-за ошибок или ограничения back-pressure.",
			func(s Stats) uint64 { return s.Dropped }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений, находящихся в очереди (не доставленных).",
		}, func() float64 { return float64(bus.Metrics().InFlight) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
