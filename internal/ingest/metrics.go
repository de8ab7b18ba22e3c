package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ingestFilesTotal 按结果统计处理过的文件
	ingestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshelf_ingest_files_total",
			Help: "Files processed by the ingest coordinator, by result",
		},
		[]string{"result"},
	)

	// ingestCompensationsTotal 补偿删除次数，result=failed 即产生了孤儿对象
	ingestCompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshelf_ingest_compensations_total",
			Help: "Compensating object deletes after a failed metadata insert",
		},
		[]string{"result"},
	)

	ingestBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fileshelf_ingest_batch_duration_seconds",
		Help:    "Wall time of one ingest batch",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func recordFile(o FileOutcome) {
	label := string(o.Status)
	if o.Status == StatusFailed {
		label = string(o.Reason)
	}
	ingestFilesTotal.WithLabelValues(label).Inc()
}
