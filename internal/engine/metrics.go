package engine

import "github.com/prometheus/client_golang/prometheus"

// Métricas Prometheus do motor. Registradas no main do engine-service.
var (
	BetsPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_bets_placed_total",
		Help: "Apostas colocadas, por variante",
	}, []string{"variant"})

	BetsSettled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_bets_settled_total",
		Help: "Apostas liquidadas",
	})

	BetsRefunded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_bets_refunded_total",
		Help: "Apostas devolvidas por timeout",
	})

	ReserveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_reserve_failures_total",
		Help: "Reservas recusadas pela tesouraria",
	})

	ReleaseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_release_failures_total",
		Help: "Liberações de reserva que falharam após a transição terminal",
	})

	PayoutUnits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_payout_units_total",
		Help: "Total pago em units (liquidações)",
	})
)

// Collectors lista tudo pra registrar de uma vez no main.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{BetsPlaced, BetsSettled, BetsRefunded, ReserveFailures, ReleaseFailures, PayoutUnits}
}
