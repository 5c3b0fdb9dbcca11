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

// Package sched implements the constant-time, pluggable-policy
// rescheduling core of a dual-kernel real-time nucleus: per-CPU
// run-queues, a weight-ordered set of scheduling classes, migration,
// lazy rescheduling and a watchdog. Hardware-specific concerns (the
// actual context-switch primitive, the interrupt pipeline, the root
// domain bridge) are injected as boundary interfaces and never touched
// directly by this package.
package sched

import (
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"

	logger "github.com/dualkernel/rtcore/pkg/log"
	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

var log = logger.NewLogger("scheduler")

// builtins is populated by each class_*.go file's init(). registerBuiltin
// keeps it in ascending weight order (idle, weak, tp, sporadic, rt)
// whatever order those init() functions run in.
var builtins []Class

func registerBuiltin(c Class) {
	i := len(builtins)
	for i > 0 && builtins[i-1].Weight() > c.Weight() {
		i--
	}
	builtins = append(builtins, nil)
	copy(builtins[i+1:], builtins[i:])
	builtins[i] = c
}

// Engine is the top-level rescheduler: the single stable arena of
// threads and run-queues, the class registry, and the boundary
// collaborators that connect it to the host arch and domain.
type Engine struct {
	mu sync.Mutex

	cfg EngineConfig

	classes registry

	runqueues map[int]*RunQueue
	threads   map[ID]*Thread

	affinity Affinity

	arch    ArchSwitcher
	root    RootDomainBridge
	timers  TimerService
	ipi     IPISender

	watchdog *watchdogState

	nextID ID

	metrics *metricsSet

	started bool
}

// NewEngine creates an engine bound to cfg's CPU set and boundary
// collaborators. It does not start any run-queues; call Start for that.
func NewEngine(cfg EngineConfig, arch ArchSwitcher, root RootDomainBridge, timers TimerService, ipi IPISender) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:       cfg,
		runqueues: make(map[int]*RunQueue),
		threads:   make(map[ID]*Thread),
		arch:      arch,
		root:      root,
		timers:    timers,
		ipi:       ipi,
		affinity:  newAffinity(cfg.CPUs),
	}
	e.metrics = newMetricsSet()
	for _, c := range builtins {
		if err := e.classes.register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Start brings up one run-queue per CPU in cfg.CPUs, seeds each with a
// root/idle thread, initializes every class against it and arms the
// watchdog. Teardown in Stop happens in exactly the reverse order.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return newInvariantViolation("engine already started")
	}

	for _, cpu := range e.cfg.CPUs.List() {
		rq := newRunQueue(e, cpu)
		e.classes.initAll(rq)

		root := e.newThreadLocked("root/"+strconv.Itoa(cpu), nil)
		root.setState(Ready | Root)
		root.rq = rq
		rq.root = root
		rq.current = root
		idle := e.classes.byNameLookup("idle")
		if idle == nil {
			return newInvariantViolation("idle class not registered")
		}
		if err := idle.Declare(root, nil); err != nil {
			return newPolicyDeclareFailed("idle", err)
		}
		root.class, root.baseClass = idle, idle

		e.runqueues[cpu] = rq
	}

	e.watchdog = newWatchdog(e, e.cfg.WatchdogTimeout)
	e.watchdog.start(e.timers)

	e.started = true
	log.Info("engine started on %d cpus", len(e.runqueues))
	return nil
}

// Stop tears down the watchdog and releases every run-queue's class
// bindings, in the reverse order of Start. Each per-CPU teardown is
// attempted even if an earlier one fails; the returned error aggregates
// every failure via go-multierror rather than stopping at the first.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	if e.watchdog != nil {
		e.watchdog.stop()
	}

	var result *multierror.Error
	for cpu, rq := range e.runqueues {
		if rq.current != nil && rq.current != rq.root {
			result = multierror.Append(result, newInvariantViolation(
				"cpu %d still has non-root thread %d current at shutdown", cpu, rq.current.ID))
		}
		if rq.root != nil && rq.root.class != nil {
			rq.root.class.Forget(rq.root)
		}
		delete(e.runqueues, cpu)
	}
	e.started = false
	log.Info("engine stopped")
	return result.ErrorOrNil()
}

// newThreadLocked allocates a thread and inserts it into the stable
// arena. Callers must already hold e.mu.
func (e *Engine) newThreadLocked(name string, host Host) *Thread {
	e.nextID++
	t := NewThread(e.nextID, name, host)
	e.threads[t.ID] = t
	return t
}

// NewThread allocates and registers a new thread, not yet bound to any
// scheduling class. Call SetPolicy to make it runnable.
func (e *Engine) NewThread(name string, host Host) *Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.newThreadLocked(name, host)
}

// Forget removes t from the thread arena entirely, after releasing its
// class membership. t must not be current on any run-queue.
func (e *Engine) Forget(t *Thread) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.rq != nil && t.rq.current == t {
		return newInvariantViolation("cannot forget thread %d while current on cpu %d", t.ID, t.rq.CPU)
	}
	if t.class != nil {
		t.class.Forget(t)
	}
	delete(e.threads, t.ID)
	return nil
}

// RunQueue returns the run-queue for cpu, or nil if cpu is not managed
// by this engine.
func (e *Engine) RunQueue(cpu int) *RunQueue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runqueues[cpu]
}

// Threads returns a snapshot slice of every live thread, for
// introspection. The slice is freshly allocated and safe to range over
// without holding any lock.
func (e *Engine) Threads() []*Thread {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Thread, 0, len(e.threads))
	for _, t := range e.threads {
		out = append(out, t)
	}
	return out
}

// CPUs returns the set of CPUs this engine owns run-queues for.
func (e *Engine) CPUs() cpuset.CPUSet { return e.cfg.CPUs }
