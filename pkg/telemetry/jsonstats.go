package telemetry

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flowforge/cgnat/pkg/stats"
)

// jsonSnapshot is the object spec.md §6's JSON stats sink returns from
// GET /api/stats.
type jsonSnapshot struct {
	PacketsRx              uint64  `json:"packets_rx"`
	PacketsTx              uint64  `json:"packets_tx"`
	PacketsDropped         uint64  `json:"packets_dropped"`
	BytesRx                uint64  `json:"bytes_rx"`
	BytesTx                uint64  `json:"bytes_tx"`
	ActiveSessions         int64   `json:"active_sessions"`
	SessionsCreated        uint64  `json:"sessions_created"`
	SessionsExpired        uint64  `json:"sessions_expired"`
	PortAllocationFailures uint64  `json:"port_allocation_failures"`
	AvgLatencyUS           float64 `json:"avg_latency_us"`
	MaxLatencyUS           float64 `json:"max_latency_us"`
	Timestamp              int64   `json:"timestamp"`
}

// JSONHandler serves GET /api/stats from agg's snapshot; any other path
// 404s with an empty body, per spec.md §6.
func JSONHandler(agg *stats.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Connection", "close")

		if r.URL.Path != "/api/stats" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		snap := agg.Snapshot()
		body := jsonSnapshot{
			PacketsRx:              snap.PacketsRx,
			PacketsTx:              snap.PacketsTx,
			PacketsDropped:         snap.PacketsDropped,
			BytesRx:                snap.BytesRx,
			BytesTx:                snap.BytesTx,
			ActiveSessions:         snap.SessionsActive,
			SessionsCreated:        snap.SessionsCreated,
			SessionsExpired:        snap.SessionsExpired,
			PortAllocationFailures: snap.PortAllocationFailures,
			AvgLatencyUS:           snap.AvgLatencyMicros,
			MaxLatencyUS:           snap.MaxLatencyMicros,
			Timestamp:              time.Now().Unix(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
