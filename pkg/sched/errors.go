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
	"fmt"

	"github.com/pkg/errors"
)

// PolicyDeclareFailedError is returned when a scheduling class rejects
// a thread's parameters during SetPolicy. The thread's previous
// binding is left untouched.
type PolicyDeclareFailedError struct {
	Class string
	cause error
}

func (e *PolicyDeclareFailedError) Error() string {
	return fmt.Sprintf("class %q rejected declaration: %v", e.Class, e.cause)
}

func (e *PolicyDeclareFailedError) Unwrap() error { return e.cause }

func newPolicyDeclareFailed(class string, cause error) error {
	return &PolicyDeclareFailedError{Class: class, cause: errors.WithStack(cause)}
}

// AffinityInvalidError is returned when a write to the real-time
// affinity mask is rejected: empty, not a subset of the online CPUs,
// or not a subset of the statically permitted set.
type AffinityInvalidError struct {
	Reason string
}

func (e *AffinityInvalidError) Error() string {
	return "invalid affinity mask: " + e.Reason
}

func newAffinityInvalid(reason string, args ...interface{}) error {
	return &AffinityInvalidError{Reason: fmt.Sprintf(reason, args...)}
}

// newParamInvalid builds a plain, untyped error for a class's Declare
// to return when a parameter (priority, budget, period, ...) is out of
// range. SetPolicy always wraps a Declare failure in
// PolicyDeclareFailedError, so this deliberately isn't an
// AffinityInvalidError: that type is reserved for affinity.go's own
// mask checks, and returning it here would make
// errors.As(&AffinityInvalidError{}) match a declare-time validation
// failure it has nothing to do with.
func newParamInvalid(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// InvariantViolationError indicates a debug-build assertion failure:
// READY and a blocking bit both set, negative lock_depth, an
// out-of-range MLQ priority, or out-of-order class registration.
// Release builds log it and keep running; debug builds also panic
// with it (see raiseInvariantViolation).
type InvariantViolationError struct {
	msg string
}

func (e *InvariantViolationError) Error() string { return "invariant violation: " + e.msg }

func newInvariantViolation(format string, args ...interface{}) error {
	return &InvariantViolationError{msg: fmt.Sprintf(format, args...)}
}

// WatchdogTriggeredError records a watchdog escalation against a
// specific thread. The watchdog builds it to format its warning line;
// no API returns it to callers.
type WatchdogTriggeredError struct {
	ThreadID ID
	CPU      int
}

func (e *WatchdogTriggeredError) Error() string {
	return fmt.Sprintf("watchdog triggered for thread %d on cpu %d", e.ThreadID, e.CPU)
}

func newWatchdogTriggered(id ID, cpu int) error {
	return &WatchdogTriggeredError{ThreadID: id, CPU: cpu}
}

// raiseInvariantViolation logs and, in debug builds (see
// assert_debug.go), panics. In release builds it only logs: the
// nucleus keeps running on a best-effort basis rather than taking the
// whole host down over a core assertion.
func raiseInvariantViolation(err error) {
	log.Error("%v", err)
	assertPanic(err)
}
