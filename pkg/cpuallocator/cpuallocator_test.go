// Copyright 2020 Intel Corporation. All Rights Reserved.
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

package cpuallocator

import (
	"testing"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
	idset "github.com/intel/goresctrl/pkg/utils"
	"github.com/stretchr/testify/require"
)

// fakeSystem is a minimal sysfs.System double: two packages of 4 CPUs each.
type fakeSystem struct {
	online cpuset.CPUSet
	pkg    map[idset.ID]idset.ID
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		online: cpuset.MustParse("0-7"),
		pkg: map[idset.ID]idset.ID{
			0: 0, 1: 0, 2: 0, 3: 0,
			4: 1, 5: 1, 6: 1, 7: 1,
		},
	}
}

func (f *fakeSystem) CPUIDs() []idset.ID {
	ids := make([]idset.ID, 0, len(f.pkg))
	for id := range f.pkg {
		ids = append(ids, id)
	}
	return ids
}
func (f *fakeSystem) PossibleCPUs() cpuset.CPUSet    { return f.online }
func (f *fakeSystem) OnlineCPUs() cpuset.CPUSet      { return f.online }
func (f *fakeSystem) CPUCount() int                  { return f.online.Size() }
func (f *fakeSystem) PackageID(id idset.ID) idset.ID { return f.pkg[id] }

func TestAllocateRealtimeCPUs(t *testing.T) {
	sys := newFakeSystem()
	a := NewCPUAllocator(sys)

	t.Run("whole package fits budget", func(t *testing.T) {
		cset, err := a.AllocateRealtimeCPUs(4)
		require.NoError(t, err)
		require.Equal(t, 4, cset.Size())
		// Must be a single whole package, not a mix of both.
		pkgs := map[idset.ID]bool{}
		for _, id := range cset.List() {
			pkgs[sys.PackageID(idset.ID(id))] = true
		}
		require.Len(t, pkgs, 1)
	})

	t.Run("budget exceeds online CPUs", func(t *testing.T) {
		cset, err := a.AllocateRealtimeCPUs(100)
		require.NoError(t, err)
		require.True(t, cset.Equals(sys.OnlineCPUs()))
	})

	t.Run("budget smaller than a package", func(t *testing.T) {
		cset, err := a.AllocateRealtimeCPUs(2)
		require.NoError(t, err)
		require.Equal(t, 2, cset.Size())
	})

	t.Run("zero budget yields empty set", func(t *testing.T) {
		cset, err := a.AllocateRealtimeCPUs(0)
		require.NoError(t, err)
		require.Equal(t, 0, cset.Size())
	})

	t.Run("without whole-package preference takes individual CPUs", func(t *testing.T) {
		cset, err := a.AllocateRealtimeCPUs(3, WithAllocFlags(0))
		require.NoError(t, err)
		require.Equal(t, 3, cset.Size())
	})
}
