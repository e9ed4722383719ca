// Copyright 2025 Google LLC
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

// Package clock provides an injectable monotonic clock, used by the
// checkpoint and restore engine to measure elapsed wall time instead of
// reading a hardware cycle counter.
package clock

import "time"

// Clock abstracts time.Now so engine timing can be faked in tests.
type Clock interface {
	Now() time.Time
}

// ElapsedMicros returns the whole microseconds elapsed between start and
// c.Now(), never negative.
func ElapsedMicros(c Clock, start time.Time) int64 {
	d := c.Now().Sub(start).Microseconds()
	if d < 0 {
		return 0
	}
	return d
}
