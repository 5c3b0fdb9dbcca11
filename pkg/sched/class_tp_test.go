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
)

func TestTPAdvanceRotatesActiveWindowOnTimerExpiry(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	tp := e.classes.byNameLookup("tp").(*tpClass)
	rq := e.RunQueue(0)

	a := e.NewThread("a", nil)
	require.NoError(t, e.SetPolicy(a, tp, tpParams{Partition: 0, Priority: 10}))
	b := e.NewThread("b", nil)
	require.NoError(t, e.SetPolicy(b, tp, tpParams{Partition: 1, Priority: 10}))

	tp.SetSchedule(rq, []TPWindow{
		{Partition: 0, Duration: 10 * time.Millisecond},
		{Partition: 1, Duration: 10 * time.Millisecond},
	}, timers)

	a.rq, b.rq = rq, rq
	tp.Enqueue(a)
	tp.Enqueue(b)

	require.Equal(t, a, tp.Pick(rq))

	rq.clearResched()
	timers.FireLastOneShot()

	require.Equal(t, b, tp.Pick(rq))
	require.True(t, rq.needResched())
}

func TestTPAdvanceIsNoOpWithoutSchedule(t *testing.T) {
	e, _, _, timers, _ := newTestEngine(t)
	tp := e.classes.byNameLookup("tp").(*tpClass)
	rq := e.RunQueue(0)

	tp.advance(rq, timers)
	require.False(t, rq.needResched())
}
