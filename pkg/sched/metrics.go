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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// depther is implemented by scheduling classes that can report how
// many ready threads they currently hold on a run-queue.
type depther interface {
	Depth(rq *RunQueue) int
}

// metricsSet holds the engine's prometheus collectors. It is created
// once per Engine and registered by the caller that owns the process'
// prometheus.Registerer, via Engine.Collectors.
type metricsSet struct {
	contextSwitches  *prometheus.CounterVec
	readyQueueDepth  *prometheus.GaugeVec
	watchdogTriggers prometheus.Counter
	reschedulePasses prometheus.Counter
}

func newMetricsSet() *metricsSet {
	return &metricsSet{
		contextSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtcore",
			Subsystem: "sched",
			Name:      "context_switches_total",
			Help:      "Total number of context switches performed, by CPU.",
		}, []string{"cpu"}),
		readyQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtcore",
			Subsystem: "sched",
			Name:      "ready_queue_depth",
			Help:      "Number of ready threads, by CPU and scheduling class.",
		}, []string{"cpu", "class"}),
		watchdogTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtcore",
			Subsystem: "sched",
			Name:      "watchdog_triggers_total",
			Help:      "Total number of watchdog escalations.",
		}),
		reschedulePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtcore",
			Subsystem: "sched",
			Name:      "reschedule_passes_total",
			Help:      "Total number of Run() invocations that found need_resched set.",
		}),
	}
}

// updateQueueDepthMetricsLocked refreshes the ready-queue-depth gauge
// for every class that implements depther, on rq. Caller must hold
// e.mu.
func (e *Engine) updateQueueDepthMetricsLocked(rq *RunQueue) {
	cpu := strconv.Itoa(rq.CPU)
	for _, c := range e.classes.byWeight {
		if d, ok := c.(depther); ok {
			e.metrics.readyQueueDepth.WithLabelValues(cpu, c.Name()).Set(float64(d.Depth(rq)))
		}
	}
}

// Collectors returns every prometheus collector the engine maintains,
// for registration against the process' prometheus.Registerer.
func (e *Engine) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		e.metrics.contextSwitches,
		e.metrics.readyQueueDepth,
		e.metrics.watchdogTriggers,
		e.metrics.reschedulePasses,
	}
}
