package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks live sessions currently open
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_bridge_active_sessions",
			Help: "Number of open live sessions",
		},
	)

	// SessionsTotal counts finished bridge runs by outcome
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_bridge_sessions_total",
			Help: "Total number of bridge runs by outcome",
		},
		[]string{"outcome"},
	)

	// TurnsForwarded counts sends issued to live sessions
	TurnsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_bridge_turns_forwarded_total",
			Help: "Total number of sends issued to live sessions",
		},
		[]string{"route"},
	)

	// ChunksEmitted counts response chunks produced from session events
	ChunksEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_bridge_chunks_emitted_total",
			Help: "Total number of response chunks emitted",
		},
		[]string{"kind"},
	)

	// ToolCalls counts server-side function executions
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_bridge_tool_calls_total",
			Help: "Total number of server-side tool executions",
		},
		[]string{"tool", "status"},
	)

	// WebsocketConnections tracks open client websocket connections
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_bridge_websocket_connections",
			Help: "Number of open client websocket connections",
		},
	)
)

// Route labels for TurnsForwarded
const (
	RouteClientContent = "client_content"
	RouteToolResponse  = "tool_response"
	RouteRealtimeAudio = "realtime_audio"
	RouteRealtimeMedia = "realtime_media"
)

// Outcome labels for SessionsTotal
const (
	OutcomeEmpty   = "empty"
	OutcomeClosed  = "closed"
	OutcomeFailed  = "failed"
	OutcomeAborted = "aborted"
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
