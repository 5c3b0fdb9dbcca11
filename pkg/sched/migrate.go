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

// Putback re-inserts a thread that was dequeued for some transient
// reason (e.g. it is about to migrate) back onto its class's ready
// queue at its current run-queue, at the head of its priority bucket
// so it does not lose its place in line.
func (e *Engine) Putback(t *Thread) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.class == nil || t.rq == nil {
		return
	}
	t.setState(Ready)
	t.class.Requeue(t)
	t.rq.setResched()
}

// SetPolicy binds t to class with the given params, replacing any
// previous binding. On failure t's previous binding, if any, is left
// intact. A thread must be dequeued (not Ready) while its policy is
// changed; callers that need to rebind a running/ready thread should
// dequeue it first.
func (e *Engine) SetPolicy(t *Thread, class Class, params Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := class.Declare(t, params); err != nil {
		return newPolicyDeclareFailed(class.Name(), err)
	}

	if t.class != nil && t.class != class {
		t.class.Forget(t)
	}

	t.class = class
	t.baseClass = class
	t.recomputeWeighted()
	if t.rq != nil {
		t.rq.setResched()
	}
	return nil
}

// TrackPolicy implements priority inheritance: boosting t's effective
// class/priority to match a lock owner's, or resetting it back to its
// base binding when boost is nil. It mirrors Cobalt's PI boost/reset
// pair used by synchronization primitives layered on top of the core.
func (e *Engine) TrackPolicy(t *Thread, boost Class, params Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if boost == nil {
		t.class = t.baseClass
		t.baseClass.TrackPrio(t, nil)
	} else {
		t.class = boost
		boost.TrackPrio(t, params)
	}
	t.recomputeWeighted()
	if t.rq != nil {
		t.rq.setResched()
	}
}

// Migrate moves t from its current run-queue to dst, immediately. t
// must not be current on its source run-queue; callers that need to
// migrate the running thread should use MigratePassive instead, which
// defers the actual move to the next unlocked switch.
func (e *Engine) Migrate(t *Thread, dst *RunQueue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.migrateLocked(t, dst)
}

func (e *Engine) migrateLocked(t *Thread, dst *RunQueue) error {
	src := t.rq
	if src == dst {
		return nil
	}
	if src != nil && src.current == t {
		return newInvariantViolation("cannot migrate current thread %d directly, use MigratePassive", t.ID)
	}
	wasReady := t.state.Has(Ready)
	if wasReady && t.class != nil {
		t.class.Dequeue(t)
	}
	if t.class != nil {
		if newClass := t.class.Migrate(t, dst); newClass != nil {
			t.class.Forget(t)
			t.class = newClass
			t.baseClass = newClass
			t.recomputeWeighted()
		}
	}
	t.rq = dst
	if wasReady && t.class != nil {
		t.class.Enqueue(t)
		if src != nil {
			e.requestReschedLocked(dst, src.CPU)
		} else {
			e.requestReschedLocked(dst, noLocalCPU)
		}
	}
	return nil
}

// MigratePassive marks a currently-running thread for migration to dst
// once it next gives up the CPU through an unlocked switch, per
// spec.md's "unlocked-switch window" semantics: the MIGRATE state bit
// is set and finishUnlockedSwitch performs the actual move.
func (e *Engine) MigratePassive(t *Thread, dst *RunQueue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.rq == nil || t.rq.current != t {
		return e.migrateLocked(t, dst)
	}
	t.pendingMigration = dst
	t.setState(Migrate)
	t.rq.setResched()
	return nil
}

// finishUnlockedSwitch completes a deferred MigratePassive once prev
// has actually been switched away from. Caller must hold e.mu.
func (e *Engine) finishUnlockedSwitch(prev *Thread) {
	if !prev.state.Has(Migrate) || prev.pendingMigration == nil {
		return
	}
	dst := prev.pendingMigration
	prev.pendingMigration = nil
	prev.clearState(Migrate)
	if err := e.migrateLocked(prev, dst); err != nil {
		raiseInvariantViolation(err)
	}
}
