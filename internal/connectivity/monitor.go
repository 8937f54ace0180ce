// Package connectivity tracks the device's network reachability signal.
package connectivity

import (
	"sync"

	"github.com/yctsai/classlog/backend/internal/logging"
)

// Monitor holds the best-known reachability state and notifies subscribers
// when the device transitions back online. It performs no dialing itself;
// the platform shell feeds it reachability changes. The signal is
// best-effort: a false "online" just causes a submission attempt that fails
// and is deferred again.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   []func()
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(initiallyOnline bool) *Monitor {
	return &Monitor{online: initiallyOnline}
}

// IsOnline returns the current best-known reachability.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers a callback invoked exactly once per transition into the
// online state. Callbacks are not invoked on transitions into offline, nor
// on repeated same-state signals.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline records a reachability change from the platform signal and fires
// subscribers on an offline-to-online transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var toNotify []func()
	if !wasOnline && online {
		toNotify = append(toNotify, m.subs...)
	}
	m.mu.Unlock()

	if wasOnline != online {
		logging.Info("Connectivity changed", map[string]interface{}{
			"was_online": wasOnline,
			"is_online":  online,
		})
	}

	// Callbacks run outside the lock so a subscriber may query the monitor.
	for _, fn := range toNotify {
		fn()
	}
}
