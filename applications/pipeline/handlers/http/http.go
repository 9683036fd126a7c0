package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediastor/imgmeta/applications/pipeline/config"
)

// NewHTTPServer serves the worker's observability surface: liveness and
// prometheus metrics.
func NewHTTPServer(conf config.Api, reg *prometheus.Registry, logger log.Logger) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", HealthHandler(logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: r,
	}
}

func HealthHandler(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			level.Error(logger).Log("msg", "can't write health response", "err", err)
		}
	}
}
