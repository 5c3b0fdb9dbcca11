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

import "time"

// watchdogGrace is how many consecutive ticks a real-time thread may
// run uninterrupted before the watchdog escalates, matching Cobalt's
// default of roughly four seconds at a one-second tick.
const watchdogGrace = 4

// watchdogState drives the periodic sweep described in spec.md §7:
// every tick, any CPU whose current thread is a real-time thread that
// has been running since the previous tick accumulates a strike; once
// a thread's strikes reach watchdogGrace it is escalated.
type watchdogState struct {
	engine  *Engine
	timeout time.Duration
	handle  TimerHandle
}

func newWatchdog(e *Engine, timeout time.Duration) *watchdogState {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &watchdogState{engine: e, timeout: timeout}
}

func (w *watchdogState) start(timers TimerService) {
	if timers == nil {
		return
	}
	w.handle = timers.StartPeriodic(w.timeout, w.tick)
}

func (w *watchdogState) stop() {
	if w.handle != nil {
		w.handle.Stop()
		w.handle = nil
	}
}

// tick is invoked by the TimerService on every watchdog period. It
// takes the engine lock itself since it runs asynchronously to Run().
func (w *watchdogState) tick() {
	e := w.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rq := range e.runqueues {
		t := rq.current
		if t == nil || t == rq.root || !t.state.Has(Ready) {
			rq.watchdogTicks = 0
			continue
		}
		if t.class == nil || t.class.Name() != "rt" {
			rq.watchdogTicks = 0
			continue
		}
		rq.watchdogTicks++
		if rq.watchdogTicks < watchdogGrace {
			continue
		}
		rq.watchdogTicks = 0
		w.escalate(t)
	}
}

// escalate implements the mayday/kill pair from spec.md §7: a
// user-space mate gets a mayday signal delivered through its Host so
// it has a chance to self-terminate cleanly; a pure in-kernel thread is
// marked Kicked|Cancelled so the next Run() pass retires it outright.
func (w *watchdogState) escalate(t *Thread) {
	err := newWatchdogTriggered(t.ID, t.rq.CPU)
	log.Warn("watchdog: %v (%s), exceeded %d consecutive ticks, escalating", err, t.Name, watchdogGrace)
	w.engine.metrics.watchdogTriggers.Inc()

	if t.state.Has(User) {
		if mayday, ok := t.Host.(interface{ Mayday() }); ok {
			mayday.Mayday()
			return
		}
	}
	t.setState(Kicked | Cancelled)
	t.rq.setResched()
}
