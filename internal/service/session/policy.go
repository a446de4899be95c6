package session

import "time"

// Restart policy defaults.
const (
	DefaultMaxRestarts   = 3
	DefaultRestartWindow = 10 * time.Second
)

// RestartPolicy bounds automatic engine restarts: at most MaxRestarts within
// any rolling Window. A committed final result resets the count.
type RestartPolicy struct {
	MaxRestarts int
	Window      time.Duration
}

// DefaultRestartPolicy returns the default policy.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{MaxRestarts: DefaultMaxRestarts, Window: DefaultRestartWindow}
}

func (p RestartPolicy) withDefaults() RestartPolicy {
	if p.MaxRestarts <= 0 {
		p.MaxRestarts = DefaultMaxRestarts
	}
	if p.Window <= 0 {
		p.Window = DefaultRestartWindow
	}
	return p
}
