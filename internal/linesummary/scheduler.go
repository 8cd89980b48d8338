package linesummary

import "time"

// FrameDelay approximates one rendering frame.
const FrameDelay = 16 * time.Millisecond

// Scheduler runs fn later and returns a cancel func.
type Scheduler interface {
	Defer(fn func()) (cancel func())
}

// FrameScheduler defers by Delay. Acquisition waits a frame so a sibling
// widget's teardown reaches the server before this widget's connect.
// Not needed once every holder goes through the ref-counted gamesession.Service.
type FrameScheduler struct {
	Delay time.Duration
}

func (s FrameScheduler) Defer(fn func()) func() {
	d := s.Delay
	if d <= 0 {
		d = FrameDelay
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Immediate runs fn synchronously.
type Immediate struct{}

func (Immediate) Defer(fn func()) func() {
	fn()
	return func() {}
}
