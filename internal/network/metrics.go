package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики сервера синхронизации.
// Метрики:
// * tileworld_connections - открытые соединения
// * tileworld_players_joined - игроки в состоянии Joined
// * tileworld_messages_total{tag,direction} - сообщения по тегам
// * tileworld_mutations_dropped_total{tag,reason} - отброшенные изменения мира
// * tileworld_join_rejected_total - отказы во входе
// * tileworld_broadcast_failures_total - неудачные отправки при рассылке
// * tileworld_request_duration_seconds{tag} - время обработки под блокировкой
type Metrics struct {
	Connections       prometheus.Gauge
	Joined            prometheus.Gauge
	Messages          *prometheus.CounterVec
	Dropped           *prometheus.CounterVec
	Rejected          prometheus.Counter
	BroadcastFailures prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil - без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const ns = "tileworld"
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "connections",
			Help:      "Открытые соединения.",
		}),
		Joined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "players_joined",
			Help:      "Игроки, вошедшие в мир.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "messages_total",
			Help:      "Сообщения по тегам и направлению.",
		}, []string{"tag", "direction"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "mutations_dropped_total",
			Help:      "Запросы, молча отброшенные из-за невыполненных условий.",
		}, []string{"tag", "reason"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "join_rejected_total",
			Help:      "Отказы во входе.",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "broadcast_failures_total",
			Help:      "Неудачные отправки при рассылке.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Длительность обработки запроса под общей блокировкой.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"tag"}),
	}

	if reg != nil {
		reg.MustRegister(m.Connections, m.Joined, m.Messages, m.Dropped,
			m.Rejected, m.BroadcastFailures, m.RequestDuration)
	}
	return m
}
