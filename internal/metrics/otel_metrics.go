// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var checkpointMeter = otel.Meter("ckptengine/checkpoint")

var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(
	1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000, 50000, 100000,
)

var lpIDAttributeSet sync.Map

func lpIDAttrOption(lpID string) metric.MeasurementOption {
	if v, ok := lpIDAttributeSet.Load(lpID); ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.String(LPIDKey, lpID)))
	v, _ := lpIDAttributeSet.LoadOrStore(lpID, opt)
	return v.(metric.MeasurementOption)
}

// otelHandle posts the five counters spec.md §6 names through an
// OpenTelemetry meter.
type otelHandle struct {
	ckptCount      metric.Int64Counter
	ckptIncCount   metric.Int64Counter
	ckptTime       metric.Float64Histogram
	ckptBytes      metric.Int64Counter
	recoveryCount  metric.Int64Counter
	recoveryTime   metric.Float64Histogram
}

// NewOTelHandle builds a Handle backed by the global OpenTelemetry
// MeterProvider. Callers wire a Prometheus (or other) exporter into
// that provider separately; this constructor only registers the
// instruments.
func NewOTelHandle() (Handle, error) {
	ckptCount, err1 := checkpointMeter.Int64Counter("ckptengine/ckpt_count",
		metric.WithDescription("The cumulative number of checkpoints taken, full and incremental alike."))
	ckptIncCount, err2 := checkpointMeter.Int64Counter("ckptengine/ckpt_incremental_count",
		metric.WithDescription("The cumulative number of incremental checkpoints taken."))
	ckptTime, err3 := checkpointMeter.Float64Histogram("ckptengine/ckpt_time",
		metric.WithDescription("Checkpoint wall-clock latency."), metric.WithUnit("us"), defaultLatencyDistribution)
	ckptBytes, err4 := checkpointMeter.Int64Counter("ckptengine/ckpt_bytes",
		metric.WithDescription("The cumulative number of bytes written across all checkpoints."), metric.WithUnit("By"))
	recoveryCount, err5 := checkpointMeter.Int64Counter("ckptengine/recovery_count",
		metric.WithDescription("The cumulative number of restores performed."))
	recoveryTime, err6 := checkpointMeter.Float64Histogram("ckptengine/recovery_time",
		metric.WithDescription("Restore wall-clock latency."), metric.WithUnit("us"), defaultLatencyDistribution)

	if err := errors.Join(err1, err2, err3, err4, err5, err6); err != nil {
		return nil, err
	}

	return &otelHandle{
		ckptCount:     ckptCount,
		ckptIncCount:  ckptIncCount,
		ckptTime:      ckptTime,
		ckptBytes:     ckptBytes,
		recoveryCount: recoveryCount,
		recoveryTime:  recoveryTime,
	}, nil
}

func (o *otelHandle) Checkpoint(ctx context.Context, lpID string, incremental bool) {
	opt := lpIDAttrOption(lpID)
	o.ckptCount.Add(ctx, 1, opt)
	if incremental {
		o.ckptIncCount.Add(ctx, 1, opt)
	}
}

func (o *otelHandle) CheckpointTime(ctx context.Context, lpID string, micros int64) {
	o.ckptTime.Record(ctx, float64(micros), lpIDAttrOption(lpID))
}

func (o *otelHandle) CheckpointBytes(ctx context.Context, lpID string, bytes int64) {
	o.ckptBytes.Add(ctx, bytes, lpIDAttrOption(lpID))
}

func (o *otelHandle) Recovery(ctx context.Context, lpID string) {
	o.recoveryCount.Add(ctx, 1, lpIDAttrOption(lpID))
}

func (o *otelHandle) RecoveryTime(ctx context.Context, lpID string, micros int64) {
	o.recoveryTime.Record(ctx, float64(micros), lpIDAttrOption(lpID))
}
