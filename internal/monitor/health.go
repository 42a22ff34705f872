package monitor

import (
	"sync"

	"github.com/roach88/wfkeeper/internal/n8n"
)

// HealthTracker detects transitions between healthy and not healthy.
//
// The state starts unknown. The first observation is a transition only when
// it is not healthy, so a healthy start stays silent. Changes between two
// non-healthy kinds (down to timeout) are not transitions.
type HealthTracker struct {
	mu    sync.Mutex
	known bool
	up    bool
	last  n8n.HealthStatus
}

// Observe records st and reports whether it crosses the healthy boundary.
func (t *HealthTracker) Observe(st n8n.HealthStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	up := st.Healthy()
	changed := (t.known && t.up != up) || (!t.known && !up)
	t.known = true
	t.up = up
	t.last = st
	return changed
}

// Last returns the most recent observation and whether there is one.
func (t *HealthTracker) Last() (n8n.HealthStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.known
}
