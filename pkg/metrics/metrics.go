package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NoteSaves counts accepted note writes, labeled by whether the write
	// carried an expected version ("conditional") or not ("unconditional").
	NoteSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "covestack",
		Name:      "note_saves_total",
		Help:      "Accepted note writes.",
	}, []string{"mode"})

	// NoteConflicts counts rejected note writes due to a version mismatch.
	NoteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "covestack",
		Name:      "note_conflicts_total",
		Help:      "Note writes rejected with a version conflict.",
	})

	// SocketClients tracks currently connected hub clients.
	SocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "covestack",
		Name:      "socket_clients",
		Help:      "Connected WebSocket clients.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
