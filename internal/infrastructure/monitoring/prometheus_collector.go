package monitoring

import (
	"livegate/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	liveStreams   prometheus.Gauge
	viewerCount   *prometheus.GaugeVec
	chatMessages  *prometheus.CounterVec
	reactions     *prometheus.CounterVec
	authFailures  *prometheus.CounterVec
	recordRetries *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		liveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livegate_streams_live_total",
			Help: "Number of streams currently live",
		}),

		viewerCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livegate_viewer_count",
			Help: "Number of viewers in each stream room",
		}, []string{"stream_key"}),

		chatMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_chat_messages_total",
			Help: "Total chat messages delivered per stream",
		}, []string{"stream_key"}),

		reactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_reactions_total",
			Help: "Total reactions delivered per stream",
		}, []string{"stream_key"}),

		authFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_auth_failures_total",
			Help: "Authorization rejections by action",
		}, []string{"action"}),

		recordRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_recording_retries_total",
			Help: "Retried recording service calls per stream",
		}, []string{"stream_key"}),
	}
}

func (p *PrometheusCollector) SetLiveStreams(count int) {
	p.liveStreams.Set(float64(count))
}

func (p *PrometheusCollector) SetViewerCount(key domain.StreamKey, count int) {
	if count == 0 {
		p.viewerCount.DeleteLabelValues(string(key))
		return
	}
	p.viewerCount.WithLabelValues(string(key)).Set(float64(count))
}

func (p *PrometheusCollector) RecordChatMessage(key domain.StreamKey) {
	p.chatMessages.WithLabelValues(string(key)).Inc()
}

func (p *PrometheusCollector) RecordReaction(key domain.StreamKey) {
	p.reactions.WithLabelValues(string(key)).Inc()
}

func (p *PrometheusCollector) RecordAuthFailure(action string) {
	p.authFailures.WithLabelValues(action).Inc()
}

func (p *PrometheusCollector) RecordRecordingRetry(key domain.StreamKey) {
	p.recordRetries.WithLabelValues(string(key)).Inc()
}

// NopCollector discards all measurements. Used when monitoring is disabled
// and in tests.
type NopCollector struct{}

func (NopCollector) SetLiveStreams(int)                    {}
func (NopCollector) SetViewerCount(domain.StreamKey, int)  {}
func (NopCollector) RecordChatMessage(domain.StreamKey)    {}
func (NopCollector) RecordReaction(domain.StreamKey)       {}
func (NopCollector) RecordAuthFailure(string)              {}
func (NopCollector) RecordRecordingRetry(domain.StreamKey) {}
