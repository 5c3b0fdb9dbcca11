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

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

func TestAffinityRejectsEmptyMask(t *testing.T) {
	a := newAffinity(cpuset.New(0, 1))
	err := a.Validate(cpuset.New(), cpuset.New(0, 1))
	require.Error(t, err)
}

func TestAffinityRejectsMaskOutsidePermittedSet(t *testing.T) {
	a := newAffinity(cpuset.New(0, 1))
	err := a.Validate(cpuset.New(2), cpuset.New(0, 1, 2))
	require.Error(t, err)
}

func TestAffinityRejectsMaskOutsideOnlineSet(t *testing.T) {
	a := newAffinity(cpuset.New(0, 1, 2))
	err := a.Validate(cpuset.New(2), cpuset.New(0, 1))
	require.Error(t, err)
}

func TestAffinityAcceptsValidSubset(t *testing.T) {
	a := newAffinity(cpuset.New(0, 1, 2))
	err := a.Validate(cpuset.New(1), cpuset.New(0, 1, 2))
	require.NoError(t, err)
}

func TestEngineSetAffinityValidatesAgainstConfiguredCPUs(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t)
	th := e.NewThread("worker", nil)

	require.NoError(t, e.SetAffinity(th, cpuset.New(0)))
	require.Equal(t, cpuset.New(0), th.Affinity)

	require.Error(t, e.SetAffinity(th, cpuset.New(5)))
}
