package mainloop

import "sync/atomic"

// AsyncUpdater coalesces update requests from any goroutine into at most one
// pending call of its callback on the loop.
type AsyncUpdater struct {
	loop    *Loop
	fn      func()
	pending atomic.Bool
}

// NewAsyncUpdater binds fn to loop
func NewAsyncUpdater(loop *Loop, fn func()) *AsyncUpdater {
	return &AsyncUpdater{loop: loop, fn: fn}
}

// Trigger requests a call. It never blocks; a trigger while one is pending
// is absorbed by the pending call. It returns false when the loop queue was
// full and the request was dropped.
func (u *AsyncUpdater) Trigger() bool {
	if !u.pending.CompareAndSwap(false, true) {
		return true
	}
	if !u.loop.Post(u.handle) {
		u.pending.Store(false)
		return false
	}
	return true
}

// Cancel drops a pending call that has not started yet
func (u *AsyncUpdater) Cancel() {
	u.pending.Store(false)
}

// IsPending reports whether a call is queued
func (u *AsyncUpdater) IsPending() bool { return u.pending.Load() }

// HandleNow runs a pending call synchronously on the calling goroutine
func (u *AsyncUpdater) HandleNow() {
	u.handle()
}

func (u *AsyncUpdater) handle() {
	// a cancelled or already handled request leaves a stale queue entry
	if !u.pending.CompareAndSwap(true, false) {
		return
	}
	u.fn()
}
