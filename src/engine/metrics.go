package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricItemsActivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbox_items_activated_total",
		Help: "Playlist item activations, by outcome (ok/failed).",
	}, []string{"outcome"})

	metricPlayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbox_play_attempts_total",
		Help: "Play attempts, by reason.",
	}, []string{"reason"})

	metricMediaErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playbox_media_errors_total",
		Help: "Escalated media errors, by category.",
	}, []string{"category"})

	metricAdBreaks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playbox_ad_breaks_total",
		Help: "Instream ad breaks started.",
	})

	metricPlayerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "playbox_player_state",
		Help: "Current player state, 1 for the active state and 0 otherwise.",
	}, []string{"state"})
)
