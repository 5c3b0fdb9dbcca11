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

func init() {
	registerBuiltin(&weakClass{})
}

// weakPrioRange mirrors Cobalt's SCHED_WEAK: threads tracked by the
// nucleus for migration and priority-inheritance purposes but meant to
// otherwise behave like ordinary, non-real-time work. It shares the rt
// class's priority numbering so a thread can move between the two
// (e.g. during PI boosting) without a priority translation.
const weakPrioRange = 99

// weakParams is the weak class's Params type: just a priority, used
// only for PI boosting since weak threads are not normally prioritized
// against each other.
type weakParams struct {
	Priority int
}

type weakClass struct{}

func (c *weakClass) Name() string { return "weak" }
func (c *weakClass) Weight() int  { return 1 }

func (c *weakClass) Init(rq *RunQueue) {
	q, err := NewMLQ(0, weakPrioRange)
	if err != nil {
		raiseInvariantViolation(err)
		return
	}
	rq.classData[c] = q
}

func (c *weakClass) mlq(rq *RunQueue) *MLQ {
	q, _ := rq.classData[c].(*MLQ)
	return q
}

func (c *weakClass) Pick(rq *RunQueue) *Thread {
	return c.mlq(rq).PeekHighest()
}

func (c *weakClass) Enqueue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddTail(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *weakClass) Dequeue(t *Thread) {
	t.clearState(Ready)
	if err := c.mlq(t.rq).Remove(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *weakClass) Requeue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddHead(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *weakClass) Declare(t *Thread, params Params) error {
	prio := 0
	if p, ok := params.(weakParams); ok {
		prio = p.Priority
	}
	if prio < 0 || prio > weakPrioRange {
		return newParamInvalid("weak priority %d outside [0,%d]", prio, weakPrioRange)
	}
	t.basePrio, t.curPrio = prio, prio
	return nil
}

func (c *weakClass) Forget(t *Thread) {}

func (c *weakClass) SetParam(t *Thread, params Params) error {
	p, ok := params.(weakParams)
	if !ok {
		return newInvariantViolation("weak: wrong params type %T", params)
	}
	t.basePrio, t.curPrio = p.Priority, p.Priority
	t.recomputeWeighted()
	return nil
}

func (c *weakClass) GetParam(t *Thread) Params {
	return weakParams{Priority: t.basePrio}
}

func (c *weakClass) TrackPrio(t *Thread, params Params) {
	if params == nil {
		t.curPrio = t.basePrio
	} else if p, ok := params.(weakParams); ok {
		t.curPrio = p.Priority
	}
	t.recomputeWeighted()
}

func (c *weakClass) Migrate(t *Thread, dst *RunQueue) Class {
	return nil
}

// Depth reports the number of ready weak threads on rq, for the
// ready-queue-depth gauge.
func (c *weakClass) Depth(rq *RunQueue) int {
	return c.mlq(rq).Len()
}
