package escrow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var depositCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "escrowd_deposits_recorded_total",
	Help: "deposits accepted into escrows",
})

var settlementCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "escrowd_settlements_total",
	Help: "escrows settled and locked",
})

var withdrawalCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "escrowd_withdrawals_total",
	Help: "settled credits withdrawn",
})
