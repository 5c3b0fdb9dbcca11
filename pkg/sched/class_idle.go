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

func init() {
	registerBuiltin(&idleClass{})
}

// idleClass is the lowest-weight, always-ready fallback class: the
// single root/idle thread seeded by Engine.Start for each run-queue.
// It never holds more than that one thread and never rejects it.
type idleClass struct{}

func (c *idleClass) Name() string   { return "idle" }
func (c *idleClass) Weight() int    { return 0 }
func (c *idleClass) Init(rq *RunQueue) {}

func (c *idleClass) Pick(rq *RunQueue) *Thread {
	if rq.root != nil && rq.root.state.Has(Ready) {
		return rq.root
	}
	return nil
}

func (c *idleClass) Enqueue(t *Thread) { t.setState(Ready) }
func (c *idleClass) Dequeue(t *Thread) { t.clearState(Ready) }
func (c *idleClass) Requeue(t *Thread) { t.setState(Ready) }

func (c *idleClass) Declare(t *Thread, params Params) error {
	return nil
}

func (c *idleClass) Forget(t *Thread) {}

func (c *idleClass) SetParam(t *Thread, params Params) error { return nil }
func (c *idleClass) GetParam(t *Thread) Params                { return nil }
func (c *idleClass) TrackPrio(t *Thread, params Params)       {}

func (c *idleClass) Migrate(t *Thread, dst *RunQueue) Class {
	// The root thread is a per-CPU fixture; it never migrates and this
	// should never be called on it, but returning nil keeps it in the
	// idle class defensively if it somehow is.
	return nil
}

// Depth is 1 when rq's root thread is ready, 0 otherwise.
func (c *idleClass) Depth(rq *RunQueue) int {
	if rq.root != nil && rq.root.state.Has(Ready) {
		return 1
	}
	return 0
}
