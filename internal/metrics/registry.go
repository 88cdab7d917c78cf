package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the auction domain collectors.
type Registry struct {
	BidsAccepted   *prometheus.CounterVec
	BidsRejected   *prometheus.CounterVec
	PlayersSold    prometheus.Counter
	PlayersUnsold  prometheus.Counter
	TradesExecuted prometheus.Counter
	UndosApplied   prometheus.Counter

	LiveAuctions     prometheus.Gauge
	ConnectedClients prometheus.Gauge

	CommandDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers the collectors on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BidsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_accepted_total",
			Help:      "Accepted bids.",
		}, []string{"auction_id"}),
		BidsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "bids_rejected_total",
			Help:      "Rejected bid attempts by reason.",
		}, []string{"auction_id", "reason"}),
		PlayersSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "players_sold_total",
			Help:      "Players sold across all auctions.",
		}),
		PlayersUnsold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "players_unsold_total",
			Help:      "Players passed unsold across all auctions.",
		}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "trades_executed_total",
			Help:      "Executed trades.",
		}),
		UndosApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "undos_applied_total",
			Help:      "Admin undo operations applied.",
		}),
		LiveAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auction",
			Name:      "live_auctions",
			Help:      "Auctions currently live or paused.",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auction",
			Name:      "websocket_clients",
			Help:      "Connected realtime subscribers.",
		}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auction",
			Name:      "command_duration_seconds",
			Help:      "Coordinator command execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(
		r.BidsAccepted, r.BidsRejected,
		r.PlayersSold, r.PlayersUnsold,
		r.TradesExecuted, r.UndosApplied,
		r.LiveAuctions, r.ConnectedClients,
		r.CommandDuration,
	)
	return r
}
