// Package antispam throttles how fast a single client may send messages.
package antispam

import (
	"sync"
	"time"
)

// Config holds the sliding window limits
type Config struct {
	MaxMessages int           // Max messages allowed in the window
	Window      time.Duration // Length of the sliding window
}

// Enabled reports whether the config limits anything
func (c Config) Enabled() bool {
	return c.MaxMessages > 0 && c.Window > 0
}

// Tracker tracks message activity for a single connection
type Tracker struct {
	mu           sync.Mutex
	config       Config
	now          func() time.Time
	messageTimes []time.Time // Timestamps of recent allowed messages
	blocked      int
}

// NewTracker creates a new tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:       config,
		now:          time.Now,
		messageTimes: make([]time.Time, 0, max(config.MaxMessages, 0)),
	}
}

// CheckResult contains the result of a check
type CheckResult struct {
	Allowed bool
	Wait    time.Duration // How long until the next message would be allowed
}

// Check records one message and reports whether it is within the limit.
// Refused messages do not count toward the window.
func (t *Tracker) Check() CheckResult {
	if !t.config.Enabled() {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	if len(t.messageTimes) >= t.config.MaxMessages {
		t.blocked++
		oldest := t.messageTimes[0]
		return CheckResult{Wait: oldest.Add(t.config.Window).Sub(now)}
	}

	t.messageTimes = append(t.messageTimes, now)
	return CheckResult{Allowed: true}
}

// Blocked returns how many messages have been refused
func (t *Tracker) Blocked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}

// cleanup removes timestamps outside the window
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.config.Window)
	newTimes := t.messageTimes[:0]
	for _, msgTime := range t.messageTimes {
		if msgTime.After(cutoff) {
			newTimes = append(newTimes, msgTime)
		}
	}
	t.messageTimes = newTimes
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageTimes = t.messageTimes[:0]
	t.blocked = 0
}
