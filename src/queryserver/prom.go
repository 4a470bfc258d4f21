package queryserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var queryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "escrowd_query_requests_total",
	Help: "query surface requests served, by endpoint",
}, []string{"endpoint"})

func StartPromServer(logger *zap.Logger, port string) {
	logger.Info("serving prom stats on " + port)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("prom server stopped", zap.Error(err))
		}
	}()
}
