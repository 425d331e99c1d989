package rtcstats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Placeholder is shown for values that are unknown or not meaningful.
const Placeholder = "—"

// FormatBitrate renders kbps as "X kbps" below 1000 and "X Mbps" above.
func FormatBitrate(kbps float64) string {
	if !finite(kbps) || kbps <= 0 {
		return Placeholder
	}
	if kbps >= 1000 {
		return formatDouble(kbps/1000, 2) + " Mbps"
	}
	return formatDouble(kbps, 1) + " kbps"
}

// FormatPercent renders a percentage with at most two decimals.
func FormatPercent(v float64) string {
	if !finite(v) || v < 0 {
		return Placeholder
	}
	return formatDouble(v, 2) + " %"
}

func FormatMillis(v float64) string {
	if !finite(v) || v < 0 {
		return Placeholder
	}
	return formatDouble(v, 1) + " ms"
}

func FormatFPS(v float64) string {
	if !finite(v) || v < 0 {
		return Placeholder
	}
	return formatDouble(v, 1) + " fps"
}

func FormatResolution(width, height int) string {
	if width <= 0 || height <= 0 {
		return Placeholder
	}
	return fmt.Sprintf("%dx%d", width, height)
}

// FormatTimestamp renders the local wall-clock time of a sample.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Local().Format("15:04:05")
}

func FormatICEState(state string) string {
	if state == "" {
		return Placeholder
	}
	return state
}

// Rows returns label/value pairs for every field of s, in display order.
func (s Snapshot) Rows() [][2]string {
	rows := [][2]string{{"ICE state", FormatICEState(s.ICEState)}}
	if !s.Valid {
		for _, label := range []string{"Updated", "Outbound", "Inbound", "RTT", "Audio jitter", "Audio loss", "Video loss", "Video FPS", "Resolution"} {
			rows = append(rows, [2]string{label, Placeholder})
		}
		return rows
	}
	return append(rows,
		[2]string{"Updated", FormatTimestamp(s.Timestamp)},
		[2]string{"Outbound", FormatBitrate(s.OutboundKbps)},
		[2]string{"Inbound", FormatBitrate(s.InboundKbps)},
		[2]string{"RTT", FormatMillis(s.RTTMillis)},
		[2]string{"Audio jitter", FormatMillis(s.AudioJitterMillis)},
		[2]string{"Audio loss", FormatPercent(s.AudioLossPercent)},
		[2]string{"Video loss", FormatPercent(s.VideoLossPercent)},
		[2]string{"Video FPS", FormatFPS(s.VideoFPS)},
		[2]string{"Resolution", FormatResolution(s.VideoWidth, s.VideoHeight)},
	)
}

// Summary is a single log line version of s.
func (s Snapshot) Summary() string {
	return fmt.Sprintf("ICE: %s | In: %s | Out: %s | RTT: %s | Loss a/v: %s / %s | %s @ %s",
		FormatICEState(s.ICEState),
		FormatBitrate(s.InboundKbps),
		FormatBitrate(s.OutboundKbps),
		FormatMillis(s.RTTMillis),
		FormatPercent(s.AudioLossPercent),
		FormatPercent(s.VideoLossPercent),
		FormatResolution(s.VideoWidth, s.VideoHeight),
		FormatFPS(s.VideoFPS),
	)
}

// formatDouble prints v with the given precision and trims trailing zeros.
func formatDouble(v float64, precision int) string {
	text := strconv.FormatFloat(v, 'f', precision, 64)
	if precision > 0 && strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimSuffix(text, ".")
	}
	return text
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
