package body

import (
	"math"
	"sync/atomic"
)

// BackpressureThreshold is the queue depth at or above which askForMore
// is not invoked. Fixed at 1 by specification.
const BackpressureThreshold = 1

// unboundedDemand is the sentinel demand value meaning "no
// backpressure" — every arrived chunk is drained immediately.
const unboundedDemand = math.MaxInt64

// demand is a lock-free saturating counter. It starts at zero (no
// demand established yet) and is only ever mutated from within a
// serialized state-machine transition, so the compare-and-swap loops
// below never spin under real contention; they exist so concurrent
// readers of Load never observe a torn update.
type demand struct {
	v atomic.Int64
}

// request adds n to the current demand with saturating arithmetic.
// Once demand is unbounded it stays unbounded: later requests leave it
// at the sentinel.
func (d *demand) request(n int64) {
	for {
		cur := d.v.Load()
		next := addSaturating(cur, n)
		if d.v.CompareAndSwap(cur, next) {
			return
		}
	}
}

func addSaturating(a, b int64) int64 {
	if a == unboundedDemand || b == unboundedDemand {
		return unboundedDemand
	}
	sum := a + b
	if sum < a || sum > unboundedDemand {
		return unboundedDemand
	}
	return sum
}

// decrement lowers demand by one, unless it is already at the
// unbounded sentinel, and returns the value observed before the
// decrement. A demand of zero stays at zero and decrement still
// reports 0, so callers can tell "no demand available" from "demand
// consumed" by checking the returned value.
func (d *demand) decrement() int64 {
	for {
		cur := d.v.Load()
		next := cur
		switch {
		case cur == unboundedDemand:
			// stays unbounded
		case cur > 0:
			next = cur - 1
		default:
			next = 0
		}
		if d.v.CompareAndSwap(cur, next) {
			return cur
		}
	}
}

// increment restores one unit of demand, used to undo a decrement when
// the queue turned out to be empty.
func (d *demand) increment() {
	for {
		cur := d.v.Load()
		next := cur
		if cur != unboundedDemand {
			next = cur + 1
		}
		if d.v.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (d *demand) load() int64 {
	return d.v.Load()
}
