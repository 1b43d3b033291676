package bridge

import "time"

// ticker is the report/reconnect interval source driven by the engine.
type ticker interface {
	C() <-chan time.Time
	// Arm installs a repeating interval. Re-arming the active interval keeps
	// its phase.
	Arm(d time.Duration)
	Disarm()
	Stop()
}

type reportTimer struct {
	t      *time.Ticker
	active time.Duration
}

func newReportTimer() *reportTimer {
	t := time.NewTicker(time.Hour)
	t.Stop()
	return &reportTimer{t: t}
}

func (r *reportTimer) C() <-chan time.Time {
	return r.t.C
}

func (r *reportTimer) Arm(d time.Duration) {
	if d <= 0 {
		r.Disarm()
		return
	}
	if r.active == d {
		return
	}
	r.drain()
	r.t.Reset(d)
	r.active = d
}

func (r *reportTimer) Disarm() {
	r.t.Stop()
	r.drain()
	r.active = 0
}

func (r *reportTimer) Stop() {
	r.Disarm()
}

// drain acknowledges a fire that is pending from the previous interval.
func (r *reportTimer) drain() {
	select {
	case <-r.t.C:
	default:
	}
}
