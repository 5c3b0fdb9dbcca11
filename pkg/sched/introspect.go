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
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"text/tabwriter"

	rtcorehttp "github.com/dualkernel/rtcore/pkg/http"
)

// ThreadInfo is the introspection row for a single thread, the
// JSON/tabular analogue of /proc/xenomai/sched/threads.
type ThreadInfo struct {
	CPU     int    `json:"cpu"`
	ID      ID     `json:"id"`
	Class   string `json:"class"`
	Prio    int    `json:"prio"`
	Timeout string `json:"timeout"`
	Stat    string `json:"stat"`
	Name    string `json:"name"`
}

func statString(s State) string {
	out := ""
	add := func(c string) { out += c }
	if s.Has(Ready) {
		add("R")
	}
	if s.Blocked() {
		add("b")
	}
	if s.Has(Lock) {
		add("L")
	}
	if s.Has(User) {
		add("U")
	}
	if s.Has(Migrate) {
		add("M")
	}
	if s.Has(Kicked) {
		add("K")
	}
	if s.Has(Cancelled) {
		add("C")
	}
	if out == "" {
		out = "-"
	}
	return out
}

// Snapshot returns an introspection row per live thread, sorted by CPU
// then by descending current priority (CurPrio), matching the ordering
// conventions of Cobalt's /proc thread listing.
func (e *Engine) Snapshot() []ThreadInfo {
	threads := e.Threads()
	out := make([]ThreadInfo, 0, len(threads))
	for _, t := range threads {
		cpu := -1
		if rq := t.RunQueue(); rq != nil {
			cpu = rq.CPU
		}
		class := "-"
		if t.Class() != nil {
			class = t.Class().Name()
		}
		out = append(out, ThreadInfo{
			CPU:     cpu,
			ID:      t.ID,
			Class:   class,
			Prio:    t.CurPrio(),
			Timeout: "-",
			Stat:    statString(t.State()),
			Name:    t.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CPU != out[j].CPU {
			return out[i].CPU < out[j].CPU
		}
		return out[i].Prio > out[j].Prio
	})
	return out
}

// RegisterIntrospection wires a GET /sched/threads endpoint onto mux,
// rendering the plain-text CPU/PID/CLASS/PRI/TIMEOUT/STAT/NAME table by
// default and JSON when the client sends Accept: application/json.
func (e *Engine) RegisterIntrospection(mux *rtcorehttp.ServeMux) {
	mux.HandleFunc("/sched/threads", func(w http.ResponseWriter, r *http.Request) {
		rows := e.Snapshot()
		if r.Header.Get("Accept") == "application/json" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rows)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "CPU\tPID\tCLASS\tPRI\tTIMEOUT\tSTAT\tNAME")
		for _, row := range rows {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%s\t%s\n",
				row.CPU, row.ID, row.Class, row.Prio, row.Timeout, row.Stat, row.Name)
		}
		tw.Flush()
	})
}
