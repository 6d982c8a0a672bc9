package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

const (
	// FrequencyWindow is the span of the sliding frequency window.
	FrequencyWindow = time.Hour

	// maxWindowEntries caps one key's window; older entries go first.
	maxWindowEntries = 4096
)

const (
	ReasonBackground = "Background sensor access"
	ReasonScreenOff  = "Sensor access while screen off"
)

// FrequentReason renders the frequency reason for n accesses in the window.
func FrequentReason(n int) string {
	return fmt.Sprintf("Frequent access (%d times/hour)", n)
}

type windowKey struct {
	app    string
	sensor types.SensorType
}

// Classifier decides whether an access is suspicious. It keeps a sliding
// one-hour window of access times per (app, sensor); the windows live only
// in memory and start empty.
type Classifier struct {
	mu      sync.Mutex
	windows map[windowKey][]time.Time
}

func NewClassifier() *Classifier {
	return &Classifier{windows: make(map[windowKey][]time.Time)}
}

// Classify records the access in its window and applies the rules in fixed
// priority: background, then screen off, then frequency. The first enabled
// rule that matches wins.
func (c *Classifier) Classify(appID string, sensor types.SensorType, at time.Time, isBackground, isScreenOff bool, st types.Settings) types.Verdict {
	n := c.observe(windowKey{app: appID, sensor: sensor}, at)

	switch {
	case isBackground && st.AlertOnBackgroundAccess:
		return types.Verdict{Suspicious: true, Reason: ReasonBackground, AlertType: types.AlertBackgroundAccess}
	case isScreenOff && st.AlertOnScreenOffAccess:
		return types.Verdict{Suspicious: true, Reason: ReasonScreenOff, AlertType: types.AlertScreenOffAccess}
	case st.AlertOnFrequentAccess && n > st.FrequentAccessThreshold:
		return types.Verdict{Suspicious: true, Reason: FrequentReason(n), AlertType: types.AlertFrequentAccess}
	}
	return types.Verdict{}
}

// observe inserts at into the key's window and trims it to the hour ending
// at the newest entry. It returns how many entries fall in [at-1h, at], so an
// access that arrives out of order is not counted against later ones.
func (c *Classifier) observe(k windowKey, at time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[k]
	i := sort.Search(len(w), func(i int) bool { return w[i].After(at) })
	w = append(w, time.Time{})
	copy(w[i+1:], w[i:])
	w[i] = at

	cutoff := w[len(w)-1].Add(-FrequencyWindow)
	drop := sort.Search(len(w), func(i int) bool { return !w[i].Before(cutoff) })
	if over := len(w) - drop - maxWindowEntries; over > 0 {
		drop += over
	}
	if drop > 0 {
		w = append(w[:0:0], w[drop:]...)
	}

	c.windows[k] = w

	from := sort.Search(len(w), func(i int) bool { return !w[i].Before(at.Add(-FrequencyWindow)) })
	to := sort.Search(len(w), func(i int) bool { return w[i].After(at) })
	return to - from
}

// WindowSize returns the current window length for (appID, sensor).
func (c *Classifier) WindowSize(appID string, sensor types.SensorType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows[windowKey{app: appID, sensor: sensor}])
}

// Prune drops windows whose newest access is more than FrequencyWindow before now
// and returns how many keys were removed.
func (c *Classifier) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-FrequencyWindow)
	removed := 0
	for k, w := range c.windows {
		if len(w) == 0 || w[len(w)-1].Before(cutoff) {
			delete(c.windows, k)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked (app, sensor) windows.
func (c *Classifier) Keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[windowKey][]time.Time)
}
