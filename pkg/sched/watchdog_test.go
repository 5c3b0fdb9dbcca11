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

func TestWatchdogEscalatesAfterGraceTicks(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	rq := e.RunQueue(0)

	th := e.NewThread("runaway", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = rq
	rt.Enqueue(th)
	rq.setResched()
	require.True(t, e.Run(0))
	require.Equal(t, th, rq.Current())

	for i := 0; i < watchdogGrace-1; i++ {
		timers.FirePeriodic()
		require.False(t, th.State().Has(Cancelled))
	}
	timers.FirePeriodic()
	require.True(t, th.State().Has(Kicked))
	require.True(t, th.State().Has(Cancelled))
}

func TestWatchdogResetsOnIdle(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	rq := e.RunQueue(0)

	// current is the root/idle thread: the watchdog must never trip.
	for i := 0; i < watchdogGrace*2; i++ {
		timers.FirePeriodic()
	}
	require.False(t, rq.Current().State().Has(Cancelled))
}

func TestWatchdogEscalationRemovesThreadOnNextRun(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	rq := e.RunQueue(0)

	th := e.NewThread("runaway", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = rq
	rt.Enqueue(th)
	rq.setResched()
	require.True(t, e.Run(0))

	for i := 0; i < watchdogGrace; i++ {
		timers.FirePeriodic()
	}
	require.True(t, th.State().Has(Cancelled))

	rq.setResched()
	require.True(t, e.Run(0))
	require.True(t, th.State().Has(Zombie))
	require.Equal(t, rq.root, rq.Current())
}
