// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

func writeFakeSysfs(t *testing.T, possible, online string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, cpuRelPath)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "possible"), []byte(possible), 0o644))
	if online != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "online"), []byte(online), 0o644))
	}
	for _, id := range mustParseForTest(t, possible).List() {
		topo := filepath.Join(dir, "cpu"+itoaForTest(id), "topology")
		require.NoError(t, os.MkdirAll(topo, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(topo, "physical_package_id"), []byte(itoaForTest(id/4)), 0o644))
	}
	return root
}

func mustParseForTest(t *testing.T, s string) cpuset.CPUSet {
	t.Helper()
	cset, err := cpuset.Parse(s)
	require.NoError(t, err)
	return cset
}

func itoaForTest(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func TestDiscoverSystemReadsPossibleAndOnline(t *testing.T) {
	root := writeFakeSysfs(t, "0-7", "0-3")
	SetSysRoot(root)
	defer SetSysRoot("")

	sys, err := DiscoverSystem()
	require.NoError(t, err)
	require.Equal(t, 8, sys.CPUCount())
	require.Equal(t, cpuset.New(0, 1, 2, 3), sys.OnlineCPUs())
	require.Equal(t, cpuset.New(0, 1, 2, 3, 4, 5, 6, 7), sys.PossibleCPUs())
}

func TestDiscoverSystemFallsBackToPossibleWhenOnlineMissing(t *testing.T) {
	root := writeFakeSysfs(t, "0-1", "")
	SetSysRoot(root)
	defer SetSysRoot("")

	sys, err := DiscoverSystem()
	require.NoError(t, err)
	require.Equal(t, sys.PossibleCPUs(), sys.OnlineCPUs())
}

func TestDiscoverSystemPackageIDGrouping(t *testing.T) {
	root := writeFakeSysfs(t, "0-7", "0-7")
	SetSysRoot(root)
	defer SetSysRoot("")

	sys, err := DiscoverSystem()
	require.NoError(t, err)
	require.EqualValues(t, 0, sys.PackageID(0))
	require.EqualValues(t, 1, sys.PackageID(4))
}

func TestDiscoverSystemFallsBackToProcessAffinityWhenSysfsUnreadable(t *testing.T) {
	SetSysRoot(filepath.Join(t.TempDir(), "does-not-exist"))
	defer SetSysRoot("")

	sys, err := DiscoverSystem()
	require.NoError(t, err)
	require.True(t, sys.CPUCount() > 0)
}
