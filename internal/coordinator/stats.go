package coordinator

import (
	"github.com/1ureka/peercall/internal/rtcstats"
	"github.com/1ureka/peercall/internal/session"
)

// GetLatestRtcStats returns the last snapshot at once and starts one
// background refresh unless another is still in flight. Without a session
// the snapshot is invalid and carries only the ICE state.
func (c *Coordinator) GetLatestRtcStats() rtcstats.Snapshot {
	snap := rtcstats.Invalid(string(session.ICENew))
	c.query(func() {
		snap = c.latest
		c.refreshStats()
	})
	return snap
}

func (c *Coordinator) refreshStats() {
	if !c.negotiator.HasSession() {
		c.latest = rtcstats.Invalid(string(c.iceState))
		return
	}
	if c.refreshing {
		return
	}

	c.refreshing = true
	c.negotiator.CollectStats(func(report rtcstats.Report, ok bool) {
		c.refreshing = false
		if !ok {
			return
		}
		c.latest = c.sampler.Sample(report, string(c.iceState), c.clock.Now())
	})
}

