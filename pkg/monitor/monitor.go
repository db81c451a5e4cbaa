// Package monitor implements the client-side session validity monitor: a
// polling loop that asks the server whether the session is still alive and
// forces a local logout when it is not. Detection latency for server-side
// termination and idle timeout is bounded by the polling interval.
package monitor

import (
	"context"
	"sync"
	"time"
)

// Client performs one server-side validity check.
//
// (true, nil) means the session is valid. (false, nil) is a definitive
// "invalid" answer and forces an immediate logout. A non-nil error is a
// transient failure (network, 5xx) and is tolerated up to the failure limit.
type Client interface {
	Check(ctx context.Context) (valid bool, err error)
}

const (
	defaultInitialInterval  = 5 * time.Second
	defaultSteadyInterval   = 30 * time.Second
	defaultFailureTolerance = 5
	defaultCheckTimeout     = 10 * time.Second
)

// Monitor owns the polling timers for one session. Construct with New, call
// Start once, and Stop on teardown (e.g. the user logged out locally).
type Monitor struct {
	client   Client
	onLogout func()

	initialInterval  time.Duration
	steadyInterval   time.Duration
	failureTolerance int
	checkTimeout     time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithIntervals overrides the first-poll and steady-state polling intervals.
// The first check runs sooner than the steady cadence so a session the server
// rejected at login is caught quickly.
func WithIntervals(initial, steady time.Duration) Option {
	return func(m *Monitor) {
		if initial > 0 {
			m.initialInterval = initial
		}
		if steady > 0 {
			m.steadyInterval = steady
		}
	}
}

// WithFailureTolerance overrides how many consecutive transient failures are
// tolerated before the monitor assumes the session is lost.
func WithFailureTolerance(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.failureTolerance = n
		}
	}
}

// WithCheckTimeout overrides the per-check timeout.
func WithCheckTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.checkTimeout = d
		}
	}
}

// New returns a monitor that polls client and calls onLogout at most once when
// the session must end.
func New(client Client, onLogout func(), opts ...Option) *Monitor {
	m := &Monitor{
		client:           client,
		onLogout:         onLogout,
		initialInterval:  defaultInitialInterval,
		steadyInterval:   defaultSteadyInterval,
		failureTolerance: defaultFailureTolerance,
		checkTimeout:     defaultCheckTimeout,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the polling loop. Call at most once.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop tears down the timers and waits for the loop to exit. Safe to call
// multiple times and after the monitor already forced a logout.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) run() {
	defer m.wg.Done()
	failures := 0
	timer := time.NewTimer(m.initialInterval)
	defer timer.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.checkTimeout)
		valid, err := m.client.Check(ctx)
		cancel()

		switch {
		case err != nil:
			failures++
			if failures > m.failureTolerance {
				m.forceLogout()
				return
			}
		case !valid:
			m.forceLogout()
			return
		default:
			failures = 0
		}

		timer.Reset(m.steadyInterval)
	}
}

func (m *Monitor) forceLogout() {
	if m.onLogout != nil {
		m.onLogout()
	}
}
