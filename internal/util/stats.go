package util

import (
	"context"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/peercall/internal/rtcstats"
)

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StatsSource returns the most recent snapshot without blocking.
type StatsSource func() rtcstats.Snapshot

// StartStatsReporter launches a goroutine that logs a one-line transport
// summary every interval while the source yields a valid snapshot. The
// timestamp of the last logged snapshot is remembered so stale samples are
// not repeated. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration, source StatsSource) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last time.Time
		for {
			select {
			case <-ticker.C:
				snap := source()
				if !snap.Valid || snap.Timestamp.Equal(last) {
					continue
				}
				last = snap.Timestamp
				pterm.DefaultLogger.Info(snap.Summary())

			case <-ctx.Done():
				return
			}
		}
	}()
}

// ──────────────────────────────────────────────────────────────────────────────
// Table rendering
// ──────────────────────────────────────────────────────────────────────────────

// RenderStats prints the snapshot as a two column table.
func RenderStats(snap rtcstats.Snapshot) error {
	data := pterm.TableData{{"Metric", "Value"}}
	for _, row := range snap.Rows() {
		data = append(data, []string{row[0], row[1]})
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
