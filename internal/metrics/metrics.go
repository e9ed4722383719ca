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

// Package metrics posts the five counters spec.md §6 names: CKPT,
// CKPT_TIME, CKPT_MEM, RECOVERY, RECOVERY_TIME. The sink may be shared
// across LP worker goroutines (spec.md §5); every Handle implementation
// here is safe for concurrent use without the caller locking anything.
package metrics

import "context"

// LPIDKey is the attribute name carrying the LP identifier on every
// recorded measurement.
const LPIDKey = "lp_id"

// Handle is the statistics sink the Checkpointer and Restorer post to.
// A nil-safe no-op implementation (NewNoopHandle) is the zero-config
// default; production wiring posts through NewOTelHandle.
type Handle interface {
	// Checkpoint records one checkpoint, tagging whether it was
	// incremental. This is the CKPT counter.
	Checkpoint(ctx context.Context, lpID string, incremental bool)
	// CheckpointTime records CKPT_TIME in microseconds.
	CheckpointTime(ctx context.Context, lpID string, micros int64)
	// CheckpointBytes records CKPT_MEM in bytes.
	CheckpointBytes(ctx context.Context, lpID string, bytes int64)
	// Recovery records one restore. This is the RECOVERY counter.
	Recovery(ctx context.Context, lpID string)
	// RecoveryTime records RECOVERY_TIME in microseconds.
	RecoveryTime(ctx context.Context, lpID string, micros int64)
}
