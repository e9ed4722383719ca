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

import "context"

// NewNoopHandle returns a Handle that discards every measurement.
func NewNoopHandle() Handle {
	var n noopHandle
	return &n
}

type noopHandle struct{}

func (*noopHandle) Checkpoint(_ context.Context, _ string, _ bool)        {}
func (*noopHandle) CheckpointTime(_ context.Context, _ string, _ int64)  {}
func (*noopHandle) CheckpointBytes(_ context.Context, _ string, _ int64) {}
func (*noopHandle) Recovery(_ context.Context, _ string)                 {}
func (*noopHandle) RecoveryTime(_ context.Context, _ string, _ int64)    {}
