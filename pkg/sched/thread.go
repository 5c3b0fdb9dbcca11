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

// ID uniquely and stably identifies a thread for the lifetime of the
// engine, independent of its current run-queue or scheduling class.
type ID uint64

// maxNameLen bounds the human-readable thread name, matching the
// nucleus' fixed-size name buffers.
const maxNameLen = 31

// State is the thread state bitset described in spec.md's Data Model.
// It is split into three disjoint groups that must never be tested
// against each other's bits: blocking, status and accounting.
type State uint32

const (
	// Blocking bits: any set bit means the thread is not runnable.
	Suspended State = 1 << iota
	Delayed
	Waiting
	Dormant
	Zombie

	// Status bits.
	Ready
	Root
	Lock
	RRB
	User
	Migrate
	Kicked
	Cancelled

	// Accounting bits.
	FPU
	Trace
)

const blockingMask = Suspended | Delayed | Waiting | Dormant | Zombie

// Blocked reports whether any blocking bit is set.
func (s State) Blocked() bool { return s&blockingMask != 0 }

// Has reports whether all of the given bits are set.
func (s State) Has(bits State) bool { return s&bits == bits }

// Any reports whether any of the given bits are set.
func (s State) Any(bits State) bool { return s&bits != 0 }

// Stats holds the per-thread counters from spec.md §6 "Statistics".
type Stats struct {
	// Msw is the number of primary-mode (in-kernel) switches.
	Msw uint64
	// Csw is the number of context switches this thread was the
	// target of.
	Csw uint64
	// Xsc is the number of system calls made by the user-space mate.
	Xsc uint64
	// Pf is the number of page faults taken.
	Pf uint64
	// ExecTime is the cumulative time this thread has spent running.
	ExecTime time.Duration
	// lastSwitchIn records when the thread was last switched in, for
	// ExecTime accounting; zero when not current on any CPU.
	lastSwitchIn time.Time
}

// Host is the opaque host-task back-reference. The core never
// dereferences it; it is only carried for the root-domain bridge.
type Host interface{}

// Thread is the scheduled entity: the fields the core mutates and
// consults, independent of which scheduling class currently owns it.
type Thread struct {
	ID   ID
	Name string
	Host Host

	class     Class
	baseClass Class
	classLink interface{} // interpreted by the owning class only

	basePrio     int
	curPrio      int
	weightedPrio int

	state    State
	lockDepth int32
	rrPeriod time.Duration

	// Affinity records the subset of CPUs this thread may use, as
	// checked against the engine-wide real-time set by
	// Engine.SetAffinity. Migrate and MigratePassive do not consult it.
	Affinity cpuset.CPUSet

	rq *RunQueue

	Stats Stats

	// mlqPrev/mlqNext are the intrusive FIFO links used by whichever
	// MLQ bucket currently holds this thread. They are valid only
	// while Ready is set; see mlq.go.
	mlqPrev, mlqNext *Thread
	mlqBucket        *mlqBucket

	// pendingMigration holds the destination run-queue for a migration
	// requested while this thread was current, applied by
	// finishUnlockedSwitch once it actually stops running. Valid only
	// while the Migrate state bit is set.
	pendingMigration *RunQueue
}

// NewThread creates a new, not-yet-scheduled thread. Callers must
// follow up with Engine.SetPolicy to bind it to a scheduling class
// before it can become ready.
func NewThread(id ID, name string, host Host) *Thread {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return &Thread{
		ID:       id,
		Name:     name,
		Host:     host,
		state:    Dormant,
		Affinity: cpuset.CPUSet{},
	}
}

// Class returns the thread's current scheduling class.
func (t *Thread) Class() Class { return t.class }

// BaseClass returns the thread's class absent any priority-inheritance
// tracking (see Engine.TrackPolicy).
func (t *Thread) BaseClass() Class { return t.baseClass }

// BasePrio, CurPrio and WeightedPrio expose the priority triple from
// spec.md's Data Model.
func (t *Thread) BasePrio() int     { return t.basePrio }
func (t *Thread) CurPrio() int      { return t.curPrio }
func (t *Thread) WeightedPrio() int { return t.weightedPrio }

// State returns the thread's current state bitset.
func (t *Thread) State() State { return t.state }

// LockDepth returns the thread's scheduler-lock nesting depth.
func (t *Thread) LockDepth() int32 { return t.lockDepth }

// RunQueue returns the run-queue this thread currently belongs to, or
// nil if it has never been scheduled.
func (t *Thread) RunQueue() *RunQueue { return t.rq }

func (t *Thread) setState(bits State)   { t.state |= bits }
func (t *Thread) clearState(bits State) { t.state &^= bits }

func (t *Thread) recomputeWeighted() {
	if t.class != nil {
		t.weightedPrio = t.curPrio + t.class.Weight()
	} else {
		t.weightedPrio = t.curPrio
	}
}

// switchedIn records the start of a running interval for exec-time
// accounting; see Engine.Run.
func (t *Thread) switchedIn(now time.Time) {
	t.Stats.lastSwitchIn = now
	t.Stats.Csw++
}

// switchedOut accumulates the just-finished running interval.
func (t *Thread) switchedOut(now time.Time) {
	if !t.Stats.lastSwitchIn.IsZero() {
		t.Stats.ExecTime += now.Sub(t.Stats.lastSwitchIn)
		t.Stats.lastSwitchIn = time.Time{}
	}
}
