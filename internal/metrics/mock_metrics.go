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

	"github.com/stretchr/testify/mock"
)

// MockHandle is a testify mock satisfying Handle, for asserting which
// counters a Checkpointer/Restorer posts without wiring a real
// exporter.
type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) Checkpoint(ctx context.Context, lpID string, incremental bool) {
	m.Called(ctx, lpID, incremental)
}

func (m *MockHandle) CheckpointTime(ctx context.Context, lpID string, micros int64) {
	m.Called(ctx, lpID, micros)
}

func (m *MockHandle) CheckpointBytes(ctx context.Context, lpID string, bytes int64) {
	m.Called(ctx, lpID, bytes)
}

func (m *MockHandle) Recovery(ctx context.Context, lpID string) {
	m.Called(ctx, lpID)
}

func (m *MockHandle) RecoveryTime(ctx context.Context, lpID string, micros int64) {
	m.Called(ctx, lpID, micros)
}
