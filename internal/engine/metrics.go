package engine

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tabcraft/internal/engine"

// durationBuckets 单个任务耗时的直方图分桶（秒）
var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// Metrics 引擎的 OpenTelemetry 指标
type Metrics struct {
	// Jobs 按 status 属性 (ok/error/canceled) 统计完成的任务
	Jobs metric.Int64Counter
	// JobDuration 任务从开始执行到结束的耗时
	JobDuration metric.Float64Histogram
	// Frames 已分析的帧数
	Frames metric.Int64Counter
	// ActiveJobs 正在执行的任务数
	ActiveJobs metric.Int64UpDownCounter
}

// NewMetrics 使用给定的 MeterProvider 创建指标
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Jobs, err = m.Int64Counter("tabcraft.engine.jobs",
		metric.WithDescription("Completed analysis jobs by status."),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("tabcraft.engine.job.duration",
		metric.WithDescription("Wall time of analysis jobs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("tabcraft.engine.frames",
		metric.WithDescription("Analysis frames processed."),
	); err != nil {
		return nil, err
	}
	if met.ActiveJobs, err = m.Int64UpDownCounter("tabcraft.engine.active_jobs",
		metric.WithDescription("Jobs currently executing."),
	); err != nil {
		return nil, err
	}
	return met, nil
}
