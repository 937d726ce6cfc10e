// Package sessionmonitor tracks idle and absolute session time on the
// client side and warns before the server would expire the session.
//
// The monitor runs a single goroutine with a one-second tick. It mirrors
// the server's timeout policy but never talks to the network itself; the
// embedding application supplies the extend and logout HTTP calls through
// callbacks. Relying on "the next API call will 401" is poor UX for a
// data-entry tool, so the monitor warns before silent data loss.
package sessionmonitor

import (
	"errors"
	"sync"
	"time"
)

// State is the monitor's lifecycle state.
type State int

const (
	// StateIdle means the session is active and being watched.
	StateIdle State = iota
	// StateWarning means expiry is close; the UI should show a countdown.
	StateWarning
	// StateExpired means a timeout fired and the session is gone.
	StateExpired
	// StateLoggedOut means Logout was called. Terminal.
	StateLoggedOut
)

// Reason tells OnExpire which deadline fired.
type Reason string

const (
	ReasonIdle     Reason = "idle"
	ReasonAbsolute Reason = "absolute"
)

// Clock abstracts time so tests can drive the monitor deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the monitor needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) NewTicker(d time.Duration) Ticker { return wallTicker{time.NewTicker(d)} }

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// Config configures a Monitor. Zero durations fall back to the defaults
// below, which match the server's session policy.
type Config struct {
	IdleTimeout     time.Duration // default 30m
	AbsoluteTimeout time.Duration // default 8h
	WarningLead     time.Duration // warning this long before expiry; default 2m
	TickInterval    time.Duration // default 1s
	Clock           Clock         // default wall clock

	// OnTick fires every tick with the time remaining until the nearest
	// deadline. OnWarning fires once on the Idle -> Warning transition.
	// OnExpire fires once when a deadline passes. All callbacks run on
	// the monitor goroutine and must not block.
	OnTick    func(remaining time.Duration)
	OnWarning func(remaining time.Duration)
	OnExpire  func(reason Reason)

	// ExtendFunc is the server-side idle extension call, invoked
	// fire-and-forget from Extend. May be nil.
	ExtendFunc func()
}

const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultAbsoluteTimeout = 8 * time.Hour
	defaultWarningLead     = 2 * time.Minute
	defaultTickInterval    = time.Second
)

// ErrAlreadyStarted is returned by Start on a monitor that is running or
// has already finished.
var ErrAlreadyStarted = errors.New("sessionmonitor: already started")

type command int

const (
	cmdActivity command = iota
	cmdExtend
	cmdLogout
)

// Monitor watches a single session. Create with New, then Start.
type Monitor struct {
	cfg Config

	cmds chan command
	done chan struct{}

	mu      sync.Mutex
	state   State
	started bool
}

// New returns an unstarted monitor. Defaults are applied for any zero
// Config durations and a nil Clock.
func New(cfg Config) *Monitor {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.AbsoluteTimeout <= 0 {
		cfg.AbsoluteTimeout = defaultAbsoluteTimeout
	}
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = defaultWarningLead
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	return &Monitor{
		cfg:  cfg,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
}

// Start begins ticking. The absolute deadline is fixed at this instant
// and never moves; the idle deadline slides with Activity and Extend.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.state = StateIdle
	m.mu.Unlock()

	// Anchor the deadlines before the goroutine spawns; callers may
	// rely on them the moment Start returns.
	start := m.cfg.Clock.Now()
	go m.run(start)
	return nil
}

// State reports the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Activity reports user activity, resetting the idle clock. A Warning
// state drops back to Idle. No-op once the monitor is terminal.
func (m *Monitor) Activity() { m.send(cmdActivity) }

// Extend resets the idle clock like Activity and additionally invokes
// the configured ExtendFunc fire-and-forget, so the server's idle window
// slides too.
func (m *Monitor) Extend() { m.send(cmdExtend) }

// Logout stops the monitor permanently. Logout wins over any extend
// racing with it; once the logout command is queued no later extend can
// resurrect the session.
func (m *Monitor) Logout() { m.send(cmdLogout) }

// Done is closed when the monitor goroutine exits (expiry or logout).
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) send(c command) {
	select {
	case m.cmds <- c:
	case <-m.done:
	}
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// run is the monitor goroutine. Deadline bookkeeping lives here; the
// anchor instant comes from Start so it is fixed before run is scheduled.
func (m *Monitor) run(start time.Time) {
	defer close(m.done)

	clock := m.cfg.Clock
	absoluteDeadline := start.Add(m.cfg.AbsoluteTimeout)
	lastActivity := start

	ticker := clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-m.cmds:
			switch cmd {
			case cmdActivity:
				lastActivity = clock.Now()
				if m.State() == StateWarning {
					m.setState(StateIdle)
				}
			case cmdExtend:
				// Drain any queued logout first: logout wins the race.
				if m.logoutQueued() {
					m.setState(StateLoggedOut)
					return
				}
				lastActivity = clock.Now()
				if m.State() == StateWarning {
					m.setState(StateIdle)
				}
				if m.cfg.ExtendFunc != nil {
					go m.cfg.ExtendFunc()
				}
			case cmdLogout:
				m.setState(StateLoggedOut)
				return
			}

		case <-ticker.C():
			now := clock.Now()

			// The absolute ceiling holds no matter how recent the
			// last activity was.
			if !now.Before(absoluteDeadline) {
				m.expire(ReasonAbsolute)
				return
			}

			idleDeadline := lastActivity.Add(m.cfg.IdleTimeout)
			if !now.Before(idleDeadline) {
				m.expire(ReasonIdle)
				return
			}

			remaining := idleDeadline.Sub(now)
			if abs := absoluteDeadline.Sub(now); abs < remaining {
				remaining = abs
			}

			if remaining <= m.cfg.WarningLead && m.State() == StateIdle {
				m.setState(StateWarning)
				if m.cfg.OnWarning != nil {
					m.cfg.OnWarning(remaining)
				}
			}
			if m.cfg.OnTick != nil {
				m.cfg.OnTick(remaining)
			}
		}
	}
}

// logoutQueued checks for a pending logout command without consuming
// anything else.
func (m *Monitor) logoutQueued() bool {
	for {
		select {
		case cmd := <-m.cmds:
			if cmd == cmdLogout {
				return true
			}
			// Activity/extend commands behind a logout no longer
			// matter; the caller re-resets the idle clock anyway.
		default:
			return false
		}
	}
}

func (m *Monitor) expire(reason Reason) {
	m.setState(StateExpired)
	if m.cfg.OnExpire != nil {
		m.cfg.OnExpire(reason)
	}
}
