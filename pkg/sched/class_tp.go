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

func init() {
	registerBuiltin(&tpClass{})
}

// tpPrioRange matches the rt class's numbering; a TP thread's priority
// only matters relative to other threads in the same active window.
const tpPrioRange = 99

// TPWindow is one slot of a time-partitioning schedule: for Duration,
// only threads belonging to Partition are eligible to run in the tp
// class on a given run-queue.
type TPWindow struct {
	Partition int
	Duration  time.Duration
}

// tpParams is the tp class's Params type.
type tpParams struct {
	Partition int
	Priority  int
}

// tpRunQueueState is the tp class's private per-run-queue state: one
// MLQ per partition plus the active-window cursor.
type tpRunQueueState struct {
	partitions map[int]*MLQ
	schedule   []TPWindow
	active     int
	handle     TimerHandle
}

type tpClass struct{}

func (c *tpClass) Name() string { return "tp" }
func (c *tpClass) Weight() int  { return 2 }

func (c *tpClass) Init(rq *RunQueue) {
	rq.classData[c] = &tpRunQueueState{partitions: make(map[int]*MLQ)}
}

func (c *tpClass) state(rq *RunQueue) *tpRunQueueState {
	s, _ := rq.classData[c].(*tpRunQueueState)
	return s
}

// SetSchedule installs the time-partitioning schedule for rq and, if
// timers is non-nil, arms a timer that advances the active window as
// each slot's duration elapses.
func (c *tpClass) SetSchedule(rq *RunQueue, schedule []TPWindow, timers TimerService) {
	s := c.state(rq)
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	s.schedule = schedule
	s.active = 0
	for _, w := range schedule {
		if _, ok := s.partitions[w.Partition]; !ok {
			q, err := NewMLQ(0, tpPrioRange)
			if err != nil {
				raiseInvariantViolation(err)
				continue
			}
			s.partitions[w.Partition] = q
		}
	}
	if timers != nil && len(schedule) > 0 {
		s.handle = timers.StartOneShot(schedule[0].Duration, func() { c.advance(rq, timers) })
	}
}

// advance is invoked directly by the TimerService on window expiry, so
// unlike the rest of this class's methods (always called with e.mu
// already held by the run-queue owner) it must take the lock itself,
// the same way watchdogState.tick does for its own periodic callback.
func (c *tpClass) advance(rq *RunQueue, timers TimerService) {
	rq.engine.mu.Lock()
	defer rq.engine.mu.Unlock()

	s := c.state(rq)
	if len(s.schedule) == 0 {
		return
	}
	s.active = (s.active + 1) % len(s.schedule)
	rq.setResched()
	if timers != nil {
		s.handle = timers.StartOneShot(s.schedule[s.active].Duration, func() { c.advance(rq, timers) })
	}
}

func (c *tpClass) activeQueue(rq *RunQueue) *MLQ {
	s := c.state(rq)
	if len(s.schedule) == 0 {
		return nil
	}
	return s.partitions[s.schedule[s.active].Partition]
}

func (c *tpClass) Pick(rq *RunQueue) *Thread {
	q := c.activeQueue(rq)
	if q == nil {
		return nil
	}
	return q.PeekHighest()
}

func (c *tpClass) partitionQueue(t *Thread) *MLQ {
	s := c.state(t.rq)
	p, _ := t.classLink.(int)
	return s.partitions[p]
}

func (c *tpClass) Enqueue(t *Thread) {
	t.setState(Ready)
	q := c.partitionQueue(t)
	if q == nil {
		return
	}
	if err := q.AddTail(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *tpClass) Dequeue(t *Thread) {
	t.clearState(Ready)
	q := c.partitionQueue(t)
	if q == nil {
		return
	}
	if err := q.Remove(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *tpClass) Requeue(t *Thread) {
	t.setState(Ready)
	q := c.partitionQueue(t)
	if q == nil {
		return
	}
	if err := q.AddHead(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *tpClass) Declare(t *Thread, params Params) error {
	p, ok := params.(tpParams)
	if !ok {
		return newInvariantViolation("tp: wrong params type %T", params)
	}
	if p.Priority < 0 || p.Priority > tpPrioRange {
		return newParamInvalid("tp priority %d outside [0,%d]", p.Priority, tpPrioRange)
	}
	t.basePrio, t.curPrio = p.Priority, p.Priority
	t.classLink = p.Partition
	return nil
}

func (c *tpClass) Forget(t *Thread) {}

func (c *tpClass) SetParam(t *Thread, params Params) error {
	if err := c.Declare(t, params); err != nil {
		return err
	}
	t.recomputeWeighted()
	return nil
}

func (c *tpClass) GetParam(t *Thread) Params {
	part, _ := t.classLink.(int)
	return tpParams{Partition: part, Priority: t.basePrio}
}

func (c *tpClass) TrackPrio(t *Thread, params Params) {
	if params == nil {
		t.curPrio = t.basePrio
	} else if p, ok := params.(tpParams); ok {
		t.curPrio = p.Priority
	}
	t.recomputeWeighted()
}

func (c *tpClass) Migrate(t *Thread, dst *RunQueue) Class {
	return nil
}

// Depth reports the number of ready tp threads across all partitions
// of rq, active window or not.
func (c *tpClass) Depth(rq *RunQueue) int {
	s := c.state(rq)
	n := 0
	for _, q := range s.partitions {
		n += q.Len()
	}
	return n
}
