package runner

import "sync"

// EmuControl coordinates pause, resume and stop between a controlling
// goroutine and the driver goroutine.
type EmuControl struct {
	mu       sync.Mutex
	pauseReq bool
	paused   bool
	stopped  bool
	ackCh    chan struct{}
	resumeCh chan struct{}
	stopCh   chan struct{}
}

// NewEmuControl creates a new emulation control.
func NewEmuControl() *EmuControl {
	return &EmuControl{
		ackCh:    make(chan struct{}, 1),
		resumeCh: make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// RequestPause asks the driver to pause and blocks until it acknowledges
// the pause or stops. Once it returns the instance is not touched by the
// driver until RequestResume.
func (ec *EmuControl) RequestPause() {
	ec.mu.Lock()
	if ec.stopped || ec.paused || ec.pauseReq {
		ec.mu.Unlock()
		return
	}
	ec.pauseReq = true
	ec.mu.Unlock()

	select {
	case <-ec.ackCh:
	case <-ec.stopCh:
	}
}

// RequestResume tells the driver to resume.
func (ec *EmuControl) RequestResume() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if !ec.pauseReq && !ec.paused {
		return
	}
	ec.pauseReq = false
	ec.paused = false
	close(ec.resumeCh)
	ec.resumeCh = make(chan struct{})
}

// CheckPause is called by the driver between frames. It returns false when
// the driver should exit. A non-nil wake channel means the driver is paused
// and must hold until wake is closed.
func (ec *EmuControl) CheckPause() (bool, <-chan struct{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.stopped {
		return false, nil
	}
	if !ec.pauseReq {
		return true, nil
	}
	if !ec.paused {
		ec.paused = true
		select {
		case ec.ackCh <- struct{}{}:
		default:
		}
	}
	return true, ec.resumeCh
}

// Stop signals the driver to exit. Safe to call more than once.
func (ec *EmuControl) Stop() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.stopped {
		return
	}
	ec.stopped = true
	ec.pauseReq = false
	close(ec.stopCh)
}

// Done is closed by Stop.
func (ec *EmuControl) Done() <-chan struct{} {
	return ec.stopCh
}

// ShouldRun returns true if the driver should continue running.
func (ec *EmuControl) ShouldRun() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return !ec.stopped
}

// IsPaused returns true once the driver has acknowledged a pause.
func (ec *EmuControl) IsPaused() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.paused
}
