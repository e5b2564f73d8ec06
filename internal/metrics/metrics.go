// Package metrics expone los contadores Prometheus del servicio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokensIssued cuenta tokens emitidos por tipo.
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssohub_tokens_issued_total",
		Help: "Tokens emitidos, por tipo.",
	}, []string{"type"})

	// TokenValidations cuenta validaciones por resultado (ok | invalid | error).
	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssohub_token_validations_total",
		Help: "Validaciones de tokens, por resultado.",
	}, []string{"result"})

	// AuthorizationOps cuenta operaciones sobre autorizaciones (grant | revoke).
	AuthorizationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssohub_authorization_ops_total",
		Help: "Operaciones sobre autorizaciones.",
	}, []string{"op"})

	// HTTPRequests cuenta requests por ruta y status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ssohub_http_requests_total",
		Help: "Requests HTTP, por ruta y status.",
	}, []string{"path", "status"})
)

// Handler expone /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
