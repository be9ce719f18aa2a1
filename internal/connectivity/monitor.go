// Package connectivity tracks whether the cloud API is reachable and at
// what quality, and notifies listeners when the agent comes back online.
package connectivity

import (
	"sync"
	"time"
)

// Quality grades the current connection.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityPoor    Quality = "poor"
	QualityOffline Quality = "offline"
)

// State is a point-in-time view of connectivity.
type State struct {
	Online          bool          `json:"online"`
	Quality         Quality       `json:"quality"`
	LastOnline      time.Time     `json:"lastOnline"`
	OfflineDuration time.Duration `json:"offlineDuration"`
}

// Monitor holds connectivity state. It starts online with good quality;
// probes or explicit reports adjust it from there.
type Monitor struct {
	mu          sync.Mutex
	online      bool
	quality     Quality
	lastOnline  time.Time
	wentOffline time.Time
	onOnline    []func()
	now         func() time.Time
}

// NewMonitor creates a monitor in the online state.
func NewMonitor() *Monitor {
	now := time.Now
	return &Monitor{
		online:     true,
		quality:    QualityGood,
		lastOnline: now(),
		now:        now,
	}
}

// SetNow overrides the clock, primarily for tests.
func (m *Monitor) SetNow(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// OnOnline registers a callback fired whenever the monitor transitions
// from offline to online. Callbacks run on their own goroutine so a slow
// listener never blocks a report.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	m.onOnline = append(m.onOnline, fn)
	m.mu.Unlock()
}

// ReportOnline records a reachable cloud API with the given quality.
func (m *Monitor) ReportOnline(quality Quality) {
	if quality != QualityGood && quality != QualityPoor {
		quality = QualityGood
	}

	m.mu.Lock()
	wasOffline := !m.online
	m.online = true
	m.quality = quality
	m.lastOnline = m.now()
	var listeners []func()
	if wasOffline {
		listeners = append(listeners, m.onOnline...)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		go fn()
	}
}

// ReportOffline records an unreachable cloud API.
func (m *Monitor) ReportOffline() {
	m.mu.Lock()
	if m.online {
		m.wentOffline = m.now()
	}
	m.online = false
	m.quality = QualityOffline
	m.mu.Unlock()
}

// Online reports whether the cloud API is currently reachable.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Status returns the current connectivity state.
func (m *Monitor) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := State{
		Online:     m.online,
		Quality:    m.quality,
		LastOnline: m.lastOnline,
	}
	if !m.online && !m.wentOffline.IsZero() {
		state.OfflineDuration = m.now().Sub(m.wentOffline)
	}
	return state
}
