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

	"github.com/stretchr/testify/require"
)

func TestLockUnlockNestingTracksDepth(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rq := e.RunQueue(0)
	th := rq.Current()

	e.Lock(th)
	e.Lock(th)
	require.EqualValues(t, 2, th.LockDepth())

	e.Unlock(th)
	require.EqualValues(t, 1, th.LockDepth())
	e.Unlock(th)
	require.EqualValues(t, 0, th.LockDepth())
}

func TestUnlockFullyClearsArbitraryDepth(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rq := e.RunQueue(0)
	th := rq.Current()

	e.Lock(th)
	e.Lock(th)
	e.Lock(th)
	e.UnlockFully(th)
	require.EqualValues(t, 0, th.LockDepth())
}

func TestUnlockReachingZeroSetsResched(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rq := e.RunQueue(0)
	th := rq.Current()

	rq.clearResched()
	e.Lock(th)
	e.Unlock(th)
	require.True(t, rq.needResched())
}

// TestLockHoldsOffPreemptionByHigherPriority exercises S3: a thread
// holding the scheduler lock keeps running even though a
// higher-priority thread is ready, and the deferred reschedule is
// honored as soon as it unlocks.
func TestLockHoldsOffPreemptionByHigherPriority(t *testing.T) {
	e, arch, _, _, _ := newTestEngine(t)
	rq := e.RunQueue(0)
	root := rq.Current()

	rt := e.classes.byNameLookup("rt")
	require.NotNil(t, rt)

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = rq
	rt.Enqueue(th)

	e.Lock(root)
	rq.setResched()

	require.False(t, e.Run(0))
	require.Equal(t, root, rq.Current())
	require.Empty(t, arch.switches)
	require.True(t, root.State().Has(Lock))
	require.True(t, rq.needResched())

	e.Unlock(root)
	require.True(t, e.Run(0))
	require.Equal(t, th, rq.Current())
	require.False(t, root.State().Has(Lock))
}
