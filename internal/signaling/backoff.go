package signaling

import "time"

const (
	// MaxReconnectAttempts is how many automatic reconnects follow an
	// unexpected disconnect before the channel gives up.
	MaxReconnectAttempts = 5

	baseReconnectDelay = 1000 * time.Millisecond
	maxReconnectDelay  = 10000 * time.Millisecond
)

// ReconnectDelay returns min(1s × 2^(attempt−1), 10s) for attempts
// 1..MaxReconnectAttempts, and false once the attempts are used up.
func ReconnectDelay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > MaxReconnectAttempts {
		return 0, false
	}
	delay := baseReconnectDelay << (attempt - 1)
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay, true
}
