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

import "github.com/dualkernel/rtcore/pkg/utils/cpuset"

// Affinity tracks the engine-wide set of CPUs real-time threads are
// statically permitted to run on. A per-thread affinity mask (see
// Thread.Affinity) set through Engine.SetAffinity is validated against
// this set; one that falls outside it is rejected, not silently
// clipped.
type Affinity struct {
	permitted cpuset.CPUSet
}

func newAffinity(permitted cpuset.CPUSet) Affinity {
	return Affinity{permitted: permitted}
}

// Permitted returns the engine-wide real-time CPU set.
func (a *Affinity) Permitted() cpuset.CPUSet { return a.permitted }

// Validate checks that mask is non-empty and a subset of both the
// engine's permitted set and online, per spec.md's affinity invariant.
func (a *Affinity) Validate(mask cpuset.CPUSet, online cpuset.CPUSet) error {
	if mask.IsEmpty() {
		return newAffinityInvalid("mask is empty")
	}
	if !mask.IsSubsetOf(a.permitted) {
		return newAffinityInvalid("mask %s is not a subset of the permitted set %s", mask, a.permitted)
	}
	if !mask.IsSubsetOf(online) {
		return newAffinityInvalid("mask %s is not a subset of online cpus %s", mask, online)
	}
	return nil
}

// SetAffinity validates and installs mask as t's affinity. The thread
// is not migrated by this call; callers needing an immediate move
// should follow up with Engine.Migrate.
func (e *Engine) SetAffinity(t *Thread, mask cpuset.CPUSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	online := e.cfg.CPUs
	if err := e.affinity.Validate(mask, online); err != nil {
		return err
	}
	t.Affinity = mask
	return nil
}
