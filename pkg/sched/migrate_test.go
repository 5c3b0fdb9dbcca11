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

func TestMigrateMovesReadyThreadBetweenRunQueues(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))

	src := e.RunQueue(0)
	dst := e.RunQueue(1)

	th.rq = src
	rt.Enqueue(th)

	require.NoError(t, e.Migrate(th, dst))
	require.Equal(t, dst, th.RunQueue())
	require.Equal(t, th, rt.Pick(dst))
	require.Nil(t, rt.Pick(src))
}

func TestMigrateRejectsCurrentThreadDirectly(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	src := e.RunQueue(0)
	dst := e.RunQueue(1)

	err := e.Migrate(src.Current(), dst)
	require.Error(t, err)
}

func TestMigratePassiveDefersUntilUnlockedSwitch(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")
	src := e.RunQueue(0)
	dst := e.RunQueue(1)

	th := e.NewThread("worker", nil)
	require.NoError(t, e.SetPolicy(th, rt, rtParams{Priority: 50}))
	th.rq = src
	rt.Enqueue(th)
	src.setResched()
	require.True(t, e.Run(0))
	require.Equal(t, th, src.Current())

	require.NoError(t, e.MigratePassive(th, dst))
	require.True(t, th.State().Has(Migrate))
	require.Equal(t, src, th.RunQueue())

	// worker blocks, triggering a switch away from it and completing
	// the deferred migration.
	rt.Dequeue(th)
	src.setResched()
	require.True(t, e.Run(0))

	require.False(t, th.State().Has(Migrate))
	require.Equal(t, dst, th.RunQueue())
}

func TestSetPolicyRejectsInvalidParams(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	rt := e.classes.byNameLookup("rt")

	th := e.NewThread("worker", nil)
	err := e.SetPolicy(th, rt, rtParams{Priority: 1000})
	require.Error(t, err)
	require.Nil(t, th.Class())
}
