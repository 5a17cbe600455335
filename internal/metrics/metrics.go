package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total de requisições HTTP",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duração das requisições HTTP em segundos",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requisições HTTP em processamento",
		},
	)

	ocorrenciasCriadas = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocorrencias_criadas_total",
			Help: "Total de ocorrências registradas",
		},
		[]string{"instituicao"},
	)

	statusAlterados = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocorrencias_status_alterado_total",
			Help: "Total de transições de status de ocorrências",
		},
		[]string{"de", "para"},
	)
)

// ObserveHTTP registra contagem e duração de uma requisição atendida.
func ObserveHTTP(method, path string, status int, dur time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// IncInFlight marca início de requisição.
func IncInFlight() { httpRequestsInFlight.Inc() }

// DecInFlight marca término de requisição.
func DecInFlight() { httpRequestsInFlight.Dec() }

// OcorrenciaCriada contabiliza registro de nova ocorrência.
func OcorrenciaCriada(instituicao string) {
	ocorrenciasCriadas.WithLabelValues(instituicao).Inc()
}

// StatusAlterado contabiliza transição de status.
func StatusAlterado(de, para string) {
	statusAlterados.WithLabelValues(de, para).Inc()
}

// Handler expõe o endpoint Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
