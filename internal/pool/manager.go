// Package pool implements the managed connection-pool lifecycle component:
// bounded-retry initialization, query and transaction execution with
// guaranteed handle release, live status reporting, and drain-then-close
// shutdown. The pooled-connection primitive itself is supplied by a Driver
// (see the postgres and mysql subpackages).
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/koustreak/ConnRi/internal/errs"
	"github.com/koustreak/ConnRi/internal/lifecycle"
	"github.com/koustreak/ConnRi/internal/logger"
)

// Manager owns one connection pool for its whole lifetime. Instances are
// independent — there is no process-wide singleton, so isolated tests can
// construct as many managers as they need.
type Manager struct {
	cfg *Config
	drv Driver
	log *logger.Logger
	id  string

	machine *lifecycle.Machine
	bus     *lifecycle.Bus

	// initGroup coalesces concurrent Init calls into one attempt sequence;
	// every caller shares the single outcome.
	initGroup singleflight.Group

	mu      sync.Mutex
	poolUp  bool          // drv.Connect has succeeded
	leased  int           // handles currently leased out
	drained chan struct{} // closed when leased drops to zero during shutdown

	waiting atomic.Int64 // callers currently blocked in acquire
	retries atomic.Int64 // failed attempts during the last Init
}

// Option customises a Manager at construction time.
type Option func(*Manager)

// WithLogger sets the structured logger. Without it the manager is silent.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager wires a Manager to a driver. The config is copied and
// defaulted here; validation happens at Init.
func NewManager(cfg *Config, drv Driver, opts ...Option) *Manager {
	if cfg == nil {
		cfg = &Config{}
	}
	m := &Manager{
		cfg:     cfg.Normalized(),
		drv:     drv,
		log:     logger.Nop(),
		id:      uuid.NewString(),
		machine: lifecycle.NewMachine(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "pool").Str("pool_id", m.id).Logger()
	m.bus = lifecycle.NewBus(m.log)
	return m
}

// ID returns the unique identifier of this manager instance,
// as used in its log fields.
func (m *Manager) ID() string {
	return m.id
}

// State returns the current lifecycle state.
func (m *Manager) State() lifecycle.State {
	return m.machine.State()
}

// Subscribe registers a handler for pool events.
// Kinds: lifecycle.EventError, EventConnect, EventDisconnect.
func (m *Manager) Subscribe(kind lifecycle.EventKind, h lifecycle.Handler) {
	m.bus.Subscribe(kind, h)
}

// Init validates the configuration, creates the pool, and probes it with a
// bounded retry loop. Valid only from the Uninitialized state; concurrent
// calls while one Init is in flight share that Init's outcome.
func (m *Manager) Init(ctx context.Context) error {
	_, err, _ := m.initGroup.Do("init", func() (any, error) {
		return nil, m.doInit(ctx)
	})
	return err
}

func (m *Manager) doInit(ctx context.Context) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	if err := m.machine.Transition(lifecycle.Initializing); err != nil {
		return errs.Wrap(errs.ErrKindConnection, "init not allowed", err)
	}

	rs := newRetryState(m.cfg)
	var lastErr error

	for {
		lastErr = m.attempt(ctx)
		if lastErr == nil {
			break
		}

		// Shutdown may have raced in while we were probing. It cannot have
		// seen a pool created after its poolUp check, so tear down here.
		if m.machine.State() != lifecycle.Initializing {
			m.giveUp()
			return errs.New(errs.ErrKindShuttingDown, "init aborted by shutdown")
		}

		if rs.exhausted() {
			m.log.ErrorEvent().
				Err(lastErr).
				Int("attempts", rs.attempts()).
				Msg("could not establish connection pool")
			m.giveUp()
			return errs.Exhausted("could not establish connection pool", rs.attempts(), lastErr)
		}

		m.log.WarnEvent().
			Err(lastErr).
			Int("attempt", rs.attempts()).
			Dur("retry_delay", rs.delay).
			Msg("connection probe failed, retrying")

		if err := rs.wait(ctx); err != nil {
			m.giveUp()
			return errs.Wrap(errs.ErrKindConnection, "init cancelled while waiting to retry", err)
		}
		m.retries.Store(int64(rs.attempt))
	}

	m.retries.Store(int64(rs.attempt))

	if err := m.machine.Transition(lifecycle.Ready); err != nil {
		// Shutdown won the race after a successful probe. It may have run
		// before Connect finished and skipped the close, so the pool must
		// be torn down on this side.
		m.giveUp()
		return errs.New(errs.ErrKindShuttingDown, "init aborted by shutdown")
	}

	m.log.With().
		Str("host", m.cfg.Host).
		Str("database", m.cfg.Database).
		Int("pool_size", int(m.cfg.PoolSize)).
		Int("retries", rs.attempt).
		Logger().
		Info("connection pool ready")
	m.bus.Publish(lifecycle.EventConnect, m.Status())

	return nil
}

// attempt performs one connect-and-probe cycle: create the pool if this is
// the first pass, then verify connectivity through a single handle that is
// released immediately, whatever the outcome.
func (m *Manager) attempt(ctx context.Context) error {
	m.mu.Lock()
	up := m.poolUp
	m.mu.Unlock()

	if !up {
		if err := m.drv.Connect(ctx); err != nil {
			return err
		}
		m.mu.Lock()
		m.poolUp = true
		m.mu.Unlock()
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout)
	defer cancel()

	conn, err := m.drv.Acquire(probeCtx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return conn.Ping(probeCtx)
}

// giveUp is the terminal init failure path: tear down whatever was created
// and stop the component for good.
func (m *Manager) giveUp() {
	m.mu.Lock()
	up := m.poolUp
	m.poolUp = false
	m.mu.Unlock()

	if up {
		m.drv.Close()
	}
	_ = m.machine.Transition(lifecycle.Stopped)
}

// acquire leases one handle, bounded by the configured acquire timeout.
// The returned lease releases the handle back exactly once no matter how
// many times Release is called.
func (m *Manager) acquire(ctx context.Context) (*lease, error) {
	if err := m.checkout(); err != nil {
		return nil, err
	}

	m.waiting.Add(1)
	acqCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout)
	conn, err := m.drv.Acquire(acqCtx)
	cancel()
	m.waiting.Add(-1)

	if err != nil {
		m.checkin()
		switch {
		case ctx.Err() != nil:
			// The caller's own deadline or cancellation ended the wait;
			// that says nothing about pool health, so no degrade.
			return nil, errs.Wrap(errs.ErrKindTimeout, "acquire interrupted by caller", err)
		case acqCtx.Err() != nil:
			return nil, errs.Wrap(errs.ErrKindAcquireTimeout,
				fmt.Sprintf("no connection available within %s", m.cfg.ConnectionTimeout), err)
		default:
			m.noteResult(err)
			return nil, errs.Wrap(errs.ErrKindConnection, "failed to acquire connection", err)
		}
	}

	return &lease{conn: conn, m: m}, nil
}

// checkout performs admission: it counts the lease under the same lock that
// shutdown uses, so a drain can never miss an in-flight handle.
func (m *Manager) checkout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch st := m.machine.State(); {
	case st.Usable():
		m.leased++
		return nil
	case st == lifecycle.ShuttingDown:
		return errs.New(errs.ErrKindShuttingDown, "pool is shutting down")
	default:
		return errs.New(errs.ErrKindNotConnected, fmt.Sprintf("pool is %s", st))
	}
}

func (m *Manager) checkin() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leased--
	if m.leased == 0 && m.drained != nil {
		close(m.drained)
		m.drained = nil
	}
}

// noteResult drives the Ready↔Degraded oscillation: a pool-level failure
// degrades the component and publishes an error event; any subsequent
// successful operation restores Ready.
func (m *Manager) noteResult(err error) {
	if err == nil {
		if m.machine.TransitionIf(lifecycle.Degraded, lifecycle.Ready) {
			m.log.Info("pool recovered, back to ready")
		}
		return
	}
	if !errs.IsConnection(err) && !errs.IsTimeout(err) {
		return
	}
	if m.machine.TransitionIf(lifecycle.Ready, lifecycle.Degraded) {
		m.log.WarnEvent().Err(err).Msg("pool degraded")
	}
	m.bus.Publish(lifecycle.EventError, err)
}

// Shutdown drains the pool and stops the component. It rejects new
// acquisitions immediately, waits for in-flight leases to be released, then
// closes the pool. Calling Shutdown on an already stopped manager is a
// no-op returning nil.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch st := m.machine.State(); st {
	case lifecycle.Stopped:
		m.mu.Unlock()
		return nil
	case lifecycle.Uninitialized:
		m.mu.Unlock()
		return errs.New(errs.ErrKindShutdown, "pool was never initialized")
	case lifecycle.ShuttingDown:
		// A previous Shutdown was interrupted mid-drain; pick it up.
	default:
		_ = m.machine.Transition(lifecycle.ShuttingDown)
	}

	var drained chan struct{}
	if m.leased > 0 {
		if m.drained == nil {
			m.drained = make(chan struct{})
		}
		drained = m.drained
	}
	up := m.poolUp
	m.poolUp = false
	m.mu.Unlock()

	if drained != nil {
		m.log.Info("waiting for in-flight operations to finish")
		select {
		case <-drained:
		case <-ctx.Done():
			m.mu.Lock()
			m.poolUp = up // drain interrupted; a later Shutdown retries
			m.mu.Unlock()
			return errs.Wrap(errs.ErrKindShutdown, "shutdown interrupted while draining", ctx.Err())
		}
	}

	if up {
		m.drv.Close()
	}
	_ = m.machine.Transition(lifecycle.Stopped)

	m.log.Info("connection pool stopped")
	m.bus.Publish(lifecycle.EventDisconnect, nil)
	return nil
}

// lease pairs a driver connection with release bookkeeping. Release is safe
// to call more than once; the handle goes back to the pool exactly once.
type lease struct {
	conn     Conn
	m        *Manager
	released atomic.Bool
}

func (l *lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.conn.Release()
		l.m.checkin()
	}
}
