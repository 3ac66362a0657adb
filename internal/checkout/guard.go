package checkout

import (
	"sync"
)

// attemptGuard allows one checkout attempt per customer at a time. A second attempt is refused
// before it reaches the backend, so overlapping submits can never place two orders.
type attemptGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newAttemptGuard() *attemptGuard {
	return &attemptGuard{inFlight: map[string]struct{}{}}
}

// acquire reports whether customerID had no attempt running and marks one as running if so.
func (g *attemptGuard) acquire(customerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[customerID]; busy {
		return false
	}
	g.inFlight[customerID] = struct{}{}
	return true
}

func (g *attemptGuard) release(customerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, customerID)
}
