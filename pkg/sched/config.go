// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package sched

import (
	"time"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

// EngineConfig carries the engine's boot-time parameters: the set of
// CPUs it owns run-queues for and the watchdog's tick period.
type EngineConfig struct {
	// CPUs is the set of CPUs the engine manages real-time run-queues
	// on. It must be non-empty.
	CPUs cpuset.CPUSet
	// WatchdogTimeout is the period between watchdog sweeps. Zero
	// selects a one-second default.
	WatchdogTimeout time.Duration
}

func (c *EngineConfig) validate() error {
	if c.CPUs.IsEmpty() {
		return newInvariantViolation("engine config: CPUs must be non-empty")
	}
	if c.WatchdogTimeout < 0 {
		return newInvariantViolation("engine config: WatchdogTimeout must not be negative")
	}
	return nil
}

// DefaultConfig returns a config covering cpus with the default
// watchdog timeout.
func DefaultConfig(cpus cpuset.CPUSet) EngineConfig {
	return EngineConfig{CPUs: cpus, WatchdogTimeout: time.Second}
}
