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

//go:build rtcore_debug

package sched

// debugBuild gates the audit-only pick re-check described in spec.md §9
// "Open questions": the production Run() fast-path skips pick_next
// entirely when need_resched is already false; a debug build, whenever
// Run() is about to switch, re-derives the pick with auditPick and
// panics if a different thread outranks the one chosen.
const debugBuild = true

func assertPanic(err error) {
	panic(err)
}
