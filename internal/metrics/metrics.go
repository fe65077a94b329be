package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счетчики жизненного цикла сессий
var (
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_sessions_started_total",
			Help: "Количество начатых игровых сессий",
		},
	)

	SessionsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_sessions_settled_total",
			Help: "Количество рассчитанных сессий по причинам завершения",
		},
		[]string{"reason"},
	)

	RakeNanoTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_rake_nano_total",
			Help: "Суммарная удержанная комиссия в нанотонах",
		},
	)
)

// Метрики денежных потоков
var (
	StakesHeldNano = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_stakes_held_nano_total",
			Help: "Суммарно зарезервированные ставки в нанотонах",
		},
	)

	PayoutsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_payouts_forwarded_total",
			Help: "Пересылки выигрышей в сеть по исходу",
		},
		[]string{"status"},
	)
)

// Онлайн
var (
	WsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_ws_connections",
			Help: "Открытые websocket соединения",
		},
	)

	WaitingClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_waiting_clients",
			Help: "Клиенты в очереди подбора соперника",
		},
	)
)

// RegisterActiveSessions публикует датчик живых сессий движка;
// f дергается на каждом скрейпе
func RegisterActiveSessions(f func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "arena_active_sessions",
			Help: "Сессии, которые движок держит в памяти",
		},
		func() float64 { return float64(f()) },
	)
}
