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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

func newTestEngine(t *testing.T) (*Engine, *fakeArch, *fakeRoot, *fakeTimers, *fakeIPI) {
	t.Helper()
	arch := &fakeArch{}
	root := &fakeRoot{}
	timers := newFakeTimers()
	ipi := &fakeIPI{}

	cfg := DefaultConfig(cpuset.New(0, 1))
	e, err := NewEngine(cfg, arch, root, timers, ipi)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Stop() })
	return e, arch, root, timers, ipi
}

func TestRunIsNoOpWithoutNeedResched(t *testing.T) {
	e, arch, _, _, _ := newTestEngine(t)
	require.False(t, e.Run(0))
	require.Empty(t, arch.switches)
}

func TestRunPicksHigherPriorityRTThreadOverRoot(t *testing.T) {
	e, arch, root, _, _ := newTestEngine(t)

	rt := e.classes.byNameLookup("rt")
	require.NotNil(t, rt)

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))

	rq := e.RunQueue(0)
	th.rq = rq
	rt.Enqueue(th)
	rq.setResched()

	switched := e.Run(0)
	require.True(t, switched)
	require.Equal(t, th, rq.Current())
	require.Len(t, arch.switches, 1)
	require.Equal(t, th.ID, arch.switches[0].next)
	require.Len(t, root.left, 1)
}

func TestRunSkipsSwitchWhenCurrentAlreadyHighestPriority(t *testing.T) {
	e, arch, _, _, _ := newTestEngine(t)
	rq := e.RunQueue(0)
	rq.setResched()

	switched := e.Run(0)
	require.False(t, switched)
	require.Empty(t, arch.switches)
	require.Equal(t, rq.root, rq.Current())
}

func TestRunEntersRootWhenDroppingBackToIdle(t *testing.T) {
	e, _, root, _, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	rq := e.RunQueue(0)

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = rq
	rt.Enqueue(th)
	rq.setResched()
	require.True(t, e.Run(0))

	// worker blocks: dequeue it and ask for another pass.
	rt.Dequeue(th)
	rq.setResched()
	require.True(t, e.Run(0))

	require.Equal(t, rq.root, rq.Current())
	require.Len(t, root.entered, 1)
}

// TestTickRotatesRoundRobinThreadsAtSamePriority exercises S2: two rt
// threads sharing a priority with round-robin enabled alternate when
// the quantum timer armed by the scheduler fires.
func TestTickRotatesRoundRobinThreadsAtSamePriority(t *testing.T) {
	e, arch, _, timers, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	require.NotNil(t, rt)
	rq := e.RunQueue(0)

	a := e.NewThread("a", nil)
	require.NoError(t, e.SetPolicy(a, rt, rtParams{Priority: 50, RRQuantum: 10 * time.Millisecond}))
	a.rq = rq
	rt.Enqueue(a)

	b := e.NewThread("b", nil)
	require.NoError(t, e.SetPolicy(b, rt, rtParams{Priority: 50, RRQuantum: 10 * time.Millisecond}))
	b.rq = rq
	rt.Enqueue(b)

	rq.setResched()
	require.True(t, e.Run(0))
	require.Equal(t, a, rq.Current())
	require.NotNil(t, rq.rrHandle)

	timers.FireLastOneShot()
	require.Equal(t, b, rq.Current())
	require.Len(t, arch.switches, 2)
	require.Equal(t, a.ID, arch.switches[1].prev)
	require.Equal(t, b.ID, arch.switches[1].next)
}

// TestRequestRescheduleCoalescesIntoCallerRunQueueMask exercises the
// reschedMask coalescing path: a cross-CPU reschedule request posts the
// target CPU into the calling CPU's own run-queue instead of sending an
// IPI immediately, and the IPI only goes out once that calling CPU's
// own next Run pass flushes it.
func TestRequestRescheduleCoalescesIntoCallerRunQueueMask(t *testing.T) {
	e, _, _, _, ipi := newTestEngine(t)
	rq0 := e.RunQueue(0)
	rq1 := e.RunQueue(1)

	e.RequestReschedule(rq1, 0)
	require.True(t, rq1.needResched())
	require.Empty(t, ipi.sent)

	require.False(t, e.Run(0))
	require.Equal(t, []int{1}, ipi.sent)

	// A second Run pass on cpu 0 with nothing new queued must not
	// resend the already-flushed notification.
	ipi.sent = nil
	require.False(t, e.Run(0))
	require.Empty(t, ipi.sent)
}

// TestKickOfRunningThreadSendsImmediateIPI exercises Kick's
// no-local-CPU fallback: an external caller has no run-queue of its own
// to coalesce into, so the notification goes out immediately rather
// than waiting for some other CPU's Run pass to flush it.
func TestKickOfRunningThreadSendsImmediateIPI(t *testing.T) {
	e, _, _, _, ipi := newTestEngine(t)
	rq := e.RunQueue(1)
	victim := rq.Current()

	e.Kick(victim)
	require.Equal(t, []int{1}, ipi.sent)
	require.True(t, victim.State().Has(Kicked))
	require.True(t, victim.State().Has(Cancelled))
}

func TestRunAccountsExecTimeOnSwitch(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	rq := e.RunQueue(0)

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = rq
	rt.Enqueue(th)
	rq.setResched()
	require.True(t, e.Run(0))

	timers.Advance(10 * time.Millisecond)
	rt.Dequeue(th)
	rq.setResched()
	require.True(t, e.Run(0))

	require.Equal(t, 10*time.Millisecond, th.Stats.ExecTime)
	require.Equal(t, uint64(1), th.Stats.Csw)
}
