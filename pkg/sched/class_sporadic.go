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
	"time"

	"golang.org/x/time/rate"
)

func init() {
	registerBuiltin(&sporadicClass{})
}

const sporadicPrioRange = 99

// sporadicParams describes a thread's replenishment contract: it may
// consume up to Budget of CPU time per Period, per the sporadic server
// model. Priority is a plain fixed priority within the class.
type sporadicParams struct {
	Priority int
	Budget   time.Duration
	Period   time.Duration
}

// sporadicState is the per-thread bookkeeping: a token-bucket limiter
// standing in for the replenishment queue of a true sporadic server,
// refilling at Budget/Period and capped at one Budget's worth of
// burst.
type sporadicState struct {
	limiter *rate.Limiter
}

type sporadicClass struct{}

func (c *sporadicClass) Name() string { return "sporadic" }
func (c *sporadicClass) Weight() int  { return 3 }

func (c *sporadicClass) Init(rq *RunQueue) {
	q, err := NewMLQ(0, sporadicPrioRange)
	if err != nil {
		raiseInvariantViolation(err)
		return
	}
	rq.classData[c] = q
}

func (c *sporadicClass) mlq(rq *RunQueue) *MLQ {
	q, _ := rq.classData[c].(*MLQ)
	return q
}

// Pick looks only at the highest-priority ready sporadic thread: it is
// returned if its limiter still has replenishment budget, otherwise
// Pick returns nil and a lower class (or idle) runs instead. Other
// sporadic threads on rq are not examined.
func (c *sporadicClass) Pick(rq *RunQueue) *Thread {
	t := c.mlq(rq).PeekHighest()
	if t == nil {
		return nil
	}
	st, _ := t.classLink.(*sporadicState)
	if st == nil || st.limiter.Allow() {
		return t
	}
	return nil
}

func (c *sporadicClass) Enqueue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddTail(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *sporadicClass) Dequeue(t *Thread) {
	t.clearState(Ready)
	if err := c.mlq(t.rq).Remove(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *sporadicClass) Requeue(t *Thread) {
	t.setState(Ready)
	if err := c.mlq(t.rq).AddHead(t, t.curPrio); err != nil {
		raiseInvariantViolation(err)
	}
}

func (c *sporadicClass) Declare(t *Thread, params Params) error {
	p, ok := params.(sporadicParams)
	if !ok {
		return newInvariantViolation("sporadic: wrong params type %T", params)
	}
	if p.Priority < 0 || p.Priority > sporadicPrioRange {
		return newParamInvalid("sporadic priority %d outside [0,%d]", p.Priority, sporadicPrioRange)
	}
	if p.Budget <= 0 || p.Period <= 0 || p.Budget > p.Period {
		return newParamInvalid("sporadic budget %s must be positive and not exceed period %s", p.Budget, p.Period)
	}
	t.basePrio, t.curPrio = p.Priority, p.Priority
	limit := rate.Limit(float64(p.Budget) / float64(p.Period))
	t.classLink = &sporadicState{limiter: rate.NewLimiter(limit, 1)}
	return nil
}

func (c *sporadicClass) Forget(t *Thread) { t.classLink = nil }

func (c *sporadicClass) SetParam(t *Thread, params Params) error {
	if err := c.Declare(t, params); err != nil {
		return err
	}
	t.recomputeWeighted()
	return nil
}

// GetParam reports Priority only: Budget and Period are not retained
// after Declare and read back as zero.
func (c *sporadicClass) GetParam(t *Thread) Params {
	return sporadicParams{Priority: t.basePrio}
}

func (c *sporadicClass) TrackPrio(t *Thread, params Params) {
	if params == nil {
		t.curPrio = t.basePrio
	} else if p, ok := params.(sporadicParams); ok {
		t.curPrio = p.Priority
	}
	t.recomputeWeighted()
}

func (c *sporadicClass) Migrate(t *Thread, dst *RunQueue) Class {
	return nil
}

// Depth reports the number of ready sporadic threads on rq, regardless
// of whether their replenishment budget currently allows them to run.
func (c *sporadicClass) Depth(rq *RunQueue) int {
	return c.mlq(rq).Len()
}
