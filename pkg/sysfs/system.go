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

// Package sysfs discovers the CPU topology the host kernel exposes at
// boot, in particular which CPUs exist and which of them are online. The
// scheduler core uses this to seed its statically permitted real-time
// CPU set (see Affinity in pkg/sched) without having to understand the rest of
// /sys/devices/system/cpu.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
	idset "github.com/intel/goresctrl/pkg/utils"

	logger "github.com/dualkernel/rtcore/pkg/log"
)

const (
	defaultSysRoot = "/sys"
	cpuRelPath     = "devices/system/cpu"
)

var (
	sysRoot = defaultSysRoot
	log     = logger.NewLogger("sysfs")
)

// System describes the subset of host CPU topology the scheduler core
// needs: which CPU ids exist, and which of them the kernel currently
// considers online.
type System interface {
	// CPUIDs returns every CPU id known to the kernel (online or not).
	CPUIDs() []idset.ID
	// PossibleCPUs returns the full set of CPU ids the kernel could
	// ever bring online.
	PossibleCPUs() cpuset.CPUSet
	// OnlineCPUs returns the set of CPU ids currently online.
	OnlineCPUs() cpuset.CPUSet
	// PackageID returns the physical package a CPU belongs to, or -1
	// if unknown.
	PackageID(id idset.ID) idset.ID
	// CPUCount returns len(CPUIDs()).
	CPUCount() int
}

type system struct {
	possible cpuset.CPUSet
	online   cpuset.CPUSet
	pkg      map[idset.ID]idset.ID
}

// SetSysRoot overrides the root directory sysfs is read from. Intended
// for tests.
func SetSysRoot(path string) {
	if path == "" {
		path = defaultSysRoot
	}
	sysRoot = path
}

// DiscoverSystem reads CPU topology from sysfs.
func DiscoverSystem() (System, error) {
	sys := &system{pkg: map[idset.ID]idset.ID{}}

	possible, err := readCPUSet("possible")
	if err != nil {
		// Containerized environments frequently don't mount a usable
		// /sys/devices/system/cpu; fall back to this process' own
		// scheduling affinity mask, which the kernel always provides.
		log.Warn("failed to read possible CPUs from %s, falling back to process affinity: %v", sysRoot, err)
		possible, err = processAffinityCPUSet()
		if err != nil {
			return nil, sysfsError("failed to determine possible CPUs: %v", err)
		}
	}
	sys.possible = possible

	online, err := readCPUSet("online")
	if err != nil {
		// A kernel with a single, always-online CPU may not expose
		// the "online" file at all; fall back to "possible".
		log.Warn("failed to read online CPUs, assuming all possible CPUs are online: %v", err)
		online = possible
	}
	sys.online = online

	for _, id := range sys.CPUIDs() {
		sys.pkg[id] = readPackageID(id)
	}

	log.Info("discovered %d CPU(s), %d online", sys.possible.Size(), sys.online.Size())

	return sys, nil
}

func (sys *system) CPUIDs() []idset.ID {
	ids := make([]idset.ID, 0, sys.possible.Size())
	for _, id := range sys.possible.List() {
		ids = append(ids, idset.ID(id))
	}
	return ids
}

func (sys *system) PossibleCPUs() cpuset.CPUSet { return sys.possible }
func (sys *system) OnlineCPUs() cpuset.CPUSet   { return sys.online }
func (sys *system) CPUCount() int               { return sys.possible.Size() }

func (sys *system) PackageID(id idset.ID) idset.ID {
	if pkg, ok := sys.pkg[id]; ok {
		return pkg
	}
	return -1
}

func readCPUSet(name string) (cpuset.CPUSet, error) {
	path := filepath.Join(sysRoot, cpuRelPath, name)
	blob, err := os.ReadFile(path)
	if err != nil {
		return cpuset.CPUSet{}, err
	}
	return cpuset.Parse(strings.TrimSpace(string(blob)))
}

func readPackageID(id idset.ID) idset.ID {
	path := filepath.Join(sysRoot, cpuRelPath, "cpu"+strconv.Itoa(int(id)),
		"topology", "physical_package_id")
	blob, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(blob)))
	if err != nil {
		return -1
	}
	return idset.ID(n)
}

// processAffinityCPUSet reads this process' own CPU affinity mask via
// sched_getaffinity(2), used as a last resort when sysfs itself is
// unreadable.
func processAffinityCPUSet() (cpuset.CPUSet, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return cpuset.CPUSet{}, err
	}
	want := mask.Count()
	ids := make([]int, 0, want)
	for id := 0; id < 1024 && len(ids) < want; id++ {
		if mask.IsSet(id) {
			ids = append(ids, id)
		}
	}
	return cpuset.New(ids...), nil
}

func sysfsError(format string, args ...interface{}) error {
	return fmt.Errorf("sysfs: "+format, args...)
}
