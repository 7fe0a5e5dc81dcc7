package georef

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "georef_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage"})
	imagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "georef_images_total",
		Help: "Number of processed images by outcome.",
	}, []string{"status", "kind"})
	inlierCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "georef_homography_inliers",
		Help:    "RANSAC inliers of accepted homographies.",
		Buckets: prometheus.ExponentialBuckets(4, 2, 10),
	})
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "georef_batches_total",
		Help: "Number of finished batches by state.",
	}, []string{"state"})
)

func observeStage(s Stage, start time.Time) {
	stageDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
}

func observeResult(r PipelineResult) {
	imagesTotal.WithLabelValues(r.Status.String(), r.KindName()).Inc()
	if r.Success {
		inlierCount.Observe(float64(r.Inliers))
	}
}

// 导出指标到node-exporter textfile
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
