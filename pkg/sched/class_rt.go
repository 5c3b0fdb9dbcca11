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
	registerBuiltin(&rtClass{})
}

// rtPrioRange is the fixed-priority range the rt class's MLQ covers,
// matching Cobalt's SCHED_FIFO/SCHED_RR numbering of 1-99.
const (
	rtPrioMin = 1
	rtPrioMax = 99
)

// rtParams is the rt class's Params type. RRQuantum, when non-zero,
// enables round-robin time-slicing at the given period for threads
// sharing Priority.
type rtParams struct {
	Priority  int
	RRQuantum time.Duration
}

type rtClass struct{}

func (c *rtClass) Name() string { return "rt" }
func (c *rtClass) Weight() int  { return 4 }

func (c *rtClass) Init(rq *RunQueue) {
	q, err := NewMLQ(rtPrioMin, rtPrioMax)
	if err != nil {
		raiseInvariantViolation(err)
		return
	}
	rq.classData[c] = q
}

func (c *rtClass) mlq(rq *RunQueue) *MLQ {
	q, _ := rq.classData[c].(*MLQ)
	return q
}

func (c *rtClass) Pick(rq *RunQueue) *Thread {
	return c.mlq(rq).PeekHighest()
}

func (c *rtClass) Enqueue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddTail(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *rtClass) Dequeue(t *Thread) {
	t.clearState(Ready)
	if err := c.mlq(t.rq).Remove(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

// Requeue reinserts t at the head of its bucket, used when it is
// merely preempted by a higher class rather than having exhausted a
// round-robin quantum; Tick handles the latter by requeuing at the
// tail instead, see below.
func (c *rtClass) Requeue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddHead(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *rtClass) Declare(t *Thread, params Params) error {
	p, ok := params.(rtParams)
	if !ok {
		return newInvariantViolation("rt: wrong params type %T", params)
	}
	if p.Priority < rtPrioMin || p.Priority > rtPrioMax {
		return newParamInvalid("rt priority %d outside [%d,%d]", p.Priority, rtPrioMin, rtPrioMax)
	}
	t.basePrio, t.curPrio = p.Priority, p.Priority
	t.rrPeriod = p.RRQuantum
	if p.RRQuantum > 0 {
		t.setState(RRB)
	} else {
		t.clearState(RRB)
	}
	return nil
}

func (c *rtClass) Forget(t *Thread) {}

func (c *rtClass) SetParam(t *Thread, params Params) error {
	if err := c.Declare(t, params); err != nil {
		return err
	}
	t.recomputeWeighted()
	return nil
}

func (c *rtClass) GetParam(t *Thread) Params {
	return rtParams{Priority: t.basePrio, RRQuantum: t.rrPeriod}
}

func (c *rtClass) TrackPrio(t *Thread, params Params) {
	if params == nil {
		t.curPrio = t.basePrio
	} else if p, ok := params.(rtParams); ok {
		t.curPrio = p.Priority
	}
	t.recomputeWeighted()
}

// Migrate has no rt-specific fix-up: the thread keeps its priority and
// round-robin settings across CPUs.
func (c *rtClass) Migrate(t *Thread, dst *RunQueue) Class {
	return nil
}

// Depth reports the number of ready rt threads on rq.
func (c *rtClass) Depth(rq *RunQueue) int {
	return c.mlq(rq).Len()
}

// Tick handles a round-robin quantum expiry for rq's current thread:
// if it is an rt thread with RRB set, it is moved to the tail of its
// priority bucket and a reschedule is requested, so the next Pick
// picks any other thread waiting at that priority (or t again if it
// is alone there).
func (c *rtClass) Tick(rq *RunQueue) {
	t := rq.current
	if t == nil || t.class != c || !t.state.Has(RRB) {
		return
	}
	q := c.mlq(rq)
	if q.PeekByPrio(t.curPrio) == nil {
		return
	}
	c.Dequeue(t)
	if err := q.AddTail(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
		return
	}
	t.setState(Ready)
	rq.setResched()
}
