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

// Package cpuallocator picks the boot-time CPU set the scheduler core is
// statically permitted to run real-time work on. It is deliberately not
// the load-balancer: it runs once, at startup, to turn "all online CPUs"
// into "the CPUs we're willing to dedicate to real-time", preferring to
// spread the selection across whole physical packages before it starts
// splitting one.
package cpuallocator

import (
	"sort"

	"github.com/dualkernel/rtcore/pkg/utils/cpuset"

	logger "github.com/dualkernel/rtcore/pkg/log"
	"github.com/dualkernel/rtcore/pkg/sysfs"
)

// AllocFlag represents CPU allocation preferences.
type AllocFlag uint

const (
	// AllocWholePackages requests allocation of whole idle packages
	// before falling back to splitting a package.
	AllocWholePackages AllocFlag = 1 << iota

	// AllocDefault is the default allocation preference.
	AllocDefault = AllocWholePackages

	logSource = "cpuallocator"
)

// CPUAllocator picks a subset of online CPUs to dedicate to real-time
// scheduling.
type CPUAllocator interface {
	// AllocateRealtimeCPUs picks up to count online CPUs, preferring
	// whole packages, and returns the resulting set. If count exceeds
	// the number of online CPUs, the full online set is returned.
	AllocateRealtimeCPUs(count int, options ...Option) (cpuset.CPUSet, error)
}

// Option is an option for a CPU allocation.
type Option func(*allocatorHelper)

// WithAllocFlags sets the allocation flags for the allocation.
func WithAllocFlags(flags AllocFlag) Option {
	return func(a *allocatorHelper) { a.flags = flags }
}

type cpuAllocator struct {
	logger.Logger
	sys sysfs.System
}

type allocatorHelper struct {
	logger.Logger
	sys    sysfs.System
	flags  AllocFlag
	from   cpuset.CPUSet
	cnt    int
	result cpuset.CPUSet
}

// our logger instance
var log = logger.NewLogger(logSource)

// NewCPUAllocator returns a new CPUAllocator using the given system
// topology as its source of online CPUs and package membership.
func NewCPUAllocator(sys sysfs.System) CPUAllocator {
	return &cpuAllocator{Logger: log, sys: sys}
}

func (ca *cpuAllocator) AllocateRealtimeCPUs(count int, options ...Option) (cpuset.CPUSet, error) {
	a := &allocatorHelper{
		Logger: log,
		sys:    ca.sys,
		flags:  AllocDefault,
		from:   ca.sys.OnlineCPUs(),
		cnt:    count,
		result: cpuset.New(),
	}
	for _, opt := range options {
		opt(a)
	}

	if a.cnt <= 0 {
		return a.result, nil
	}
	if a.cnt >= a.from.Size() {
		a.Debug("requested %d CPUs >= %d online, taking all of them", a.cnt, a.from.Size())
		return a.from.Clone(), nil
	}

	if a.flags&AllocWholePackages != 0 {
		a.takeIdlePackages()
	}
	a.takeAny()

	return a.result, nil
}

// packagesOf groups the allocator's remaining candidate CPUs by package id.
func (a *allocatorHelper) packagesOf(cset cpuset.CPUSet) map[int]cpuset.CPUSet {
	pkgs := map[int]cpuset.CPUSet{}
	for _, id := range cset.List() {
		pkg := int(a.sys.PackageID(id))
		pkgs[pkg] = pkgs[pkg].Union(cpuset.New(id))
	}
	return pkgs
}

// takeIdlePackages consumes whole packages from a.from into a.result for
// as long as a whole package still fits in the remaining budget.
func (a *allocatorHelper) takeIdlePackages() {
	if a.cnt <= 0 {
		return
	}

	pkgs := a.packagesOf(a.from)

	ids := make([]int, 0, len(pkgs))
	for id := range pkgs {
		ids = append(ids, id)
	}
	// Largest packages first: fewer packages touched for the same budget.
	sort.Slice(ids, func(i, j int) bool {
		return pkgs[ids[i]].Size() > pkgs[ids[j]].Size()
	})

	for _, id := range ids {
		cset := pkgs[id]
		if cset.Size() > a.cnt {
			continue
		}
		a.Debug("* taking whole package #%d (%s)", id, cset)
		a.result = a.result.Union(cset)
		a.from = a.from.Difference(cset)
		a.cnt -= cset.Size()
		if a.cnt == 0 {
			return
		}
	}
}

// takeAny consumes individual CPUs from a.from until the budget is spent.
func (a *allocatorHelper) takeAny() {
	if a.cnt <= 0 {
		return
	}
	ids := a.from.List()
	sort.Ints(ids)
	if a.cnt > len(ids) {
		a.cnt = len(ids)
	}
	take := cpuset.New(ids[0:a.cnt]...)
	a.Debug("* taking %d individual CPU(s): %s", a.cnt, take)
	a.result = a.result.Union(take)
	a.from = a.from.Difference(take)
	a.cnt = 0
}
