// Package shutdown handles Ctrl-C for the CLI: the first SIGINT or SIGTERM
// cancels the running job's context, the second exits immediately, and
// registered cleanup runs on the way out.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"diffusionto/logging"

	"go.uber.org/zap"
)

// ExitInterrupted is the process exit status after a forced interrupt.
const ExitInterrupted = 130

// Manager ties signal handling to a cancellable context.
//
// Usage:
//
//	manager := shutdown.NewManager(logger)
//	ctx := manager.Start(context.Background())
//	defer manager.Shutdown()
//	manager.Register("history", 30, func(ctx context.Context) error {
//	    return database.Close()
//	})
type Manager struct {
	logger   *logging.Logger
	timeout  time.Duration
	registry *Registry
	signals  *SignalCounter
	exit     func(code int)

	mu      sync.Mutex
	cancel  context.CancelFunc
	sigChan chan os.Signal
	stopped bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the cleanup run in Shutdown. Default is 10 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExitFunc replaces os.Exit for the forced-exit path.
func WithExitFunc(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager creates a Manager. A nil logger discards logs.
func NewManager(logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  10 * time.Second,
		registry: NewRegistry(),
		exit:     os.Exit,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("received second signal, forcing exit")
		m.exit(ExitInterrupted)
	})
	return m
}

// Start derives a context from parent that is cancelled by the first
// interrupt, and begins listening for SIGINT and SIGTERM.
func (m *Manager) Start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	m.cancel = cancel
	m.sigChan = make(chan os.Signal, 2)
	sigChan := m.sigChan
	m.mu.Unlock()

	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			m.handle(sig)
		}
	}()
	return ctx
}

// handle processes one received signal.
func (m *Manager) handle(sig os.Signal) {
	if m.signals.Increment() != 1 {
		return
	}
	m.logger.Info("received interrupt, cancelling current job",
		zap.String("signal", sig.String()),
	)

	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Interrupted reports whether at least one signal arrived.
func (m *Manager) Interrupted() bool {
	return m.signals.Count() > 0
}

// Register adds a cleanup function run by Shutdown. Lower priorities run
// first.
func (m *Manager) Register(name string, priority int, fn CleanupFunc) {
	m.registry.Register(name, priority, fn)
}

// Shutdown stops signal delivery and runs the registered cleanup. Cleanup
// errors are logged; only the first call does anything.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sigChan := m.sigChan
	cancel := m.cancel
	m.mu.Unlock()

	if sigChan != nil {
		signal.Stop(sigChan)
		close(sigChan)
	}

	ctx, cancelCleanup := context.WithTimeout(context.Background(), m.timeout)
	defer cancelCleanup()
	for _, err := range m.registry.Run(ctx) {
		m.logger.Warn("cleanup failed", zap.Error(err))
	}

	if cancel != nil {
		cancel()
	}
}
