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

import logger "github.com/dualkernel/rtcore/pkg/log"

// Params carries scheduling-class-specific policy inputs (e.g. a fixed
// priority for rt, a budget/period pair for sporadic). Each class
// defines and type-asserts its own concrete type.
type Params interface{}

// Class is the uniform capability set every scheduling-class plug-in
// exposes, per spec.md §4.2. Classes are registered once, in strictly
// ascending Weight() order, and scanned highest-weight-first by the
// rescheduler.
type Class interface {
	// Name is the well-known, stable name of this policy.
	Name() string
	// Weight disambiguates priorities across classes; strictly larger
	// than any priority value usable within the class.
	Weight() int
	// Init performs optional per-run-queue setup.
	Init(rq *RunQueue)
	// Pick returns the highest-priority ready thread of this class on
	// rq, or nil.
	Pick(rq *RunQueue) *Thread
	// Enqueue inserts t at the tail of its priority's FIFO.
	Enqueue(t *Thread)
	// Dequeue removes t from its priority's FIFO.
	Dequeue(t *Thread)
	// Requeue reinserts t at the head of its priority's FIFO, used
	// when preempting a still-runnable thread without losing its
	// place for next time.
	Requeue(t *Thread)
	// Declare validates and accepts t's membership with the given
	// params. On failure, nothing about t may be mutated.
	Declare(t *Thread, params Params) error
	// Forget releases any resources held for t.
	Forget(t *Thread)
	// SetParam writes new policy inputs and recomputes t.curPrio (and
	// thus its weighted priority).
	SetParam(t *Thread, params Params) error
	// GetParam reads back the current policy inputs.
	GetParam(t *Thread) Params
	// TrackPrio implements the priority-inheritance hook; params == nil
	// resets t to its base priority.
	TrackPrio(t *Thread, params Params)
	// Migrate performs any per-class fix-up needed when t moves to
	// dst. It may return a different Class if the thread should
	// switch classes as a side effect of the move (e.g. weak<->rt);
	// returning nil means no class change.
	Migrate(t *Thread, dst *RunQueue) Class
}

// registry is the ordered, weight-validated list of installed classes.
type registry struct {
	byWeight []Class // ascending weight order, as registered
}

var classLog = logger.NewLogger("sched.class")

// register installs c, rejecting an out-of-order install per spec.md
// §4.2 ("Registration rejects out-of-order installs").
func (r *registry) register(c Class) error {
	if n := len(r.byWeight); n > 0 && r.byWeight[n-1].Weight() >= c.Weight() {
		return newInvariantViolation(
			"class %q (weight %d) registered out of order after %q (weight %d)",
			c.Name(), c.Weight(), r.byWeight[n-1].Name(), r.byWeight[n-1].Weight())
	}
	r.byWeight = append(r.byWeight, c)
	classLog.Info("scheduling class %q registered (weight %d)", c.Name(), c.Weight())
	return nil
}

// pick scans classes in descending weight order and returns the first
// non-nil Pick result. The idle class is expected to always have the
// root thread ready, so this never returns nil on a live run-queue.
func (r *registry) pick(rq *RunQueue) *Thread {
	for i := len(r.byWeight) - 1; i >= 0; i-- {
		if t := r.byWeight[i].Pick(rq); t != nil {
			return t
		}
	}
	return nil
}

func (r *registry) initAll(rq *RunQueue) {
	for _, c := range r.byWeight {
		c.Init(rq)
	}
}

// byNameLookup finds a registered class by name, or nil.
func (r *registry) byNameLookup(name string) Class {
	for _, c := range r.byWeight {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
