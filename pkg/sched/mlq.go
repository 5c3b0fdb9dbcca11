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

import "math/bits"

// wordBits is the machine word width the MLQ's two-level bit map is
// built from. LEVELS must be a multiple of it.
const wordBits = 64

// MaxLevels is the largest priority range a single MLQ can cover.
const MaxLevels = 256

// mlqBucket is the FIFO of threads sharing one exact priority. It is
// an intrusive doubly-linked list through Thread.mlqPrev/mlqNext, per
// spec.md §9's "intrusive links into a stable arena" design note.
type mlqBucket struct {
	head, tail *Thread
}

func (b *mlqBucket) empty() bool { return b.head == nil }

func (b *mlqBucket) pushTail(t *Thread) {
	t.mlqBucket = b
	t.mlqPrev, t.mlqNext = b.tail, nil
	if b.tail != nil {
		b.tail.mlqNext = t
	} else {
		b.head = t
	}
	b.tail = t
}

func (b *mlqBucket) pushHead(t *Thread) {
	t.mlqBucket = b
	t.mlqNext, t.mlqPrev = b.head, nil
	if b.head != nil {
		b.head.mlqPrev = t
	} else {
		b.tail = t
	}
	b.head = t
}

func (b *mlqBucket) remove(t *Thread) {
	if t.mlqPrev != nil {
		t.mlqPrev.mlqNext = t.mlqNext
	} else {
		b.head = t.mlqNext
	}
	if t.mlqNext != nil {
		t.mlqNext.mlqPrev = t.mlqPrev
	} else {
		b.tail = t.mlqPrev
	}
	t.mlqPrev, t.mlqNext, t.mlqBucket = nil, nil, nil
}

// MLQ is the constant-time multi-level priority queue from spec.md
// §4.1: a fixed priority range [loPrio, hiPrio], indexed by a two-level
// bit map of per-priority FIFO buckets. Bucket index 0 is the highest
// priority (hiPrio); index hiPrio-loPrio is the lowest (loPrio).
type MLQ struct {
	loPrio, hiPrio int
	elems          int
	lomap          []uint64
	himap          uint64
	buckets        []mlqBucket
}

// NewMLQ creates an MLQ covering [loPrio, hiPrio] inclusive. The range
// must fit within MaxLevels, which must itself be a multiple of the
// machine word width; both are compile-time constants here, so the
// only runtime-checkable condition is the range itself.
func NewMLQ(loPrio, hiPrio int) (*MLQ, error) {
	if hiPrio < loPrio {
		return nil, newInvariantViolation("mlq: hiPrio %d < loPrio %d", hiPrio, loPrio)
	}
	levels := hiPrio - loPrio + 1
	if levels > MaxLevels {
		return nil, newInvariantViolation("mlq: range %d exceeds MaxLevels %d", levels, MaxLevels)
	}
	nwords := (MaxLevels + wordBits - 1) / wordBits
	return &MLQ{
		loPrio:  loPrio,
		hiPrio:  hiPrio,
		lomap:   make([]uint64, nwords),
		buckets: make([]mlqBucket, levels),
	}, nil
}

// Len returns the number of threads currently queued.
func (q *MLQ) Len() int { return q.elems }

func (q *MLQ) index(prio int) (int, error) {
	if prio < q.loPrio || prio > q.hiPrio {
		return 0, newInvariantViolation("mlq: priority %d outside [%d,%d]", prio, q.loPrio, q.hiPrio)
	}
	return q.hiPrio - prio, nil
}

func (q *MLQ) markOccupied(idx int) {
	word, bit := idx/wordBits, uint(idx%wordBits)
	if q.lomap[word] == 0 {
		q.himap |= 1 << uint(word)
	}
	q.lomap[word] |= 1 << bit
}

func (q *MLQ) markVacated(idx int) {
	word, bit := idx/wordBits, uint(idx%wordBits)
	q.lomap[word] &^= 1 << bit
	if q.lomap[word] == 0 {
		q.himap &^= 1 << uint(word)
	}
}

// AddTail enqueues t at the tail of its priority's bucket: the normal
// FIFO insertion used by Class.Enqueue.
func (q *MLQ) AddTail(t *Thread, prio int) error {
	idx, err := q.index(prio)
	if err != nil {
		return err
	}
	b := &q.buckets[idx]
	if b.empty() {
		q.markOccupied(idx)
	}
	b.pushTail(t)
	q.elems++
	return nil
}

// AddHead requeues t at the head of its priority's bucket without
// losing its slot, e.g. when a higher class preempts it while it
// remains runnable. See spec.md §4.1 "Tie-breaking".
func (q *MLQ) AddHead(t *Thread, prio int) error {
	idx, err := q.index(prio)
	if err != nil {
		return err
	}
	b := &q.buckets[idx]
	if b.empty() {
		q.markOccupied(idx)
	}
	b.pushHead(t)
	q.elems++
	return nil
}

// Remove removes t from whichever bucket currently holds it. prio must
// be the priority it was enqueued at.
func (q *MLQ) Remove(t *Thread, prio int) error {
	idx, err := q.index(prio)
	if err != nil {
		return err
	}
	b := &q.buckets[idx]
	b.remove(t)
	if b.empty() {
		q.markVacated(idx)
	}
	q.elems--
	return nil
}

// PeekHighest returns the head thread of the highest occupied
// priority bucket, or nil if the MLQ is empty. Callers must check
// Len() != 0 themselves if they want to distinguish "empty" from a
// bug; PeekHighest simply returns nil either way.
func (q *MLQ) PeekHighest() *Thread {
	if q.elems == 0 {
		return nil
	}
	word := bits.TrailingZeros64(q.himap)
	if word == 64 {
		return nil
	}
	bit := bits.TrailingZeros64(q.lomap[word])
	if bit == 64 {
		return nil
	}
	idx := word*wordBits + bit
	return q.buckets[idx].head
}

// PeekByPrio returns the head thread at the exact priority p, or nil.
func (q *MLQ) PeekByPrio(p int) *Thread {
	idx, err := q.index(p)
	if err != nil {
		return nil
	}
	return q.buckets[idx].head
}
