// Package metrics holds the Prometheus collectors shared by the pipeline,
// the player and the event hub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DownloadJobs counts finished jobs by terminal status.
	DownloadJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bard",
		Name:      "download_jobs_total",
		Help:      "Download jobs that reached a terminal status.",
	}, []string{"status"})

	// StageSeconds observes how long each pipeline stage ran.
	StageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bard",
		Name:      "download_stage_seconds",
		Help:      "Duration of download pipeline stages.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"stage"})

	// PlayerCommands counts owner-loop commands by operation and result.
	PlayerCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bard",
		Name:      "player_commands_total",
		Help:      "Playback commands handled by the owner loop.",
	}, []string{"op", "result"})

	// HubSubscribers is the number of live subscribers per topic.
	HubSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bard",
		Name:      "hub_subscribers",
		Help:      "Connected event stream subscribers.",
	}, []string{"topic"})

	// HubDropped counts subscribers removed because their queue was full.
	HubDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bard",
		Name:      "hub_dropped_subscribers_total",
		Help:      "Subscribers dropped for falling behind.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(DownloadJobs, StageSeconds, PlayerCommands, HubSubscribers, HubDropped)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
