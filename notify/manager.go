package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/poiesic/docpipe/core"
)

// Manager fans notifications out to the live connections of each owner.
// The registry is only reachable through Manager methods and is safe for
// concurrent use.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]map[Conn]struct{}
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		conns:  make(map[string]map[Conn]struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "notify")
	return m
}

// Register adds conn to the owner's connection set.
func (m *Manager) Register(ownerID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.conns[ownerID]
	if !ok {
		set = make(map[Conn]struct{})
		m.conns[ownerID] = set
	}
	set[conn] = struct{}{}
	m.logger.Debug("connection registered", "owner", ownerID, "connections", len(set))
}

// Unregister removes conn from the owner's set. Unknown pairs are ignored.
func (m *Manager) Unregister(ownerID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ownerID, conn)
}

// ConnectionCount returns the number of live connections of an owner.
func (m *Manager) ConnectionCount(ownerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[ownerID])
}

// SendToOwner delivers msg to every live connection of the owner and
// reports whether at least one accepted it. Connections that fail are
// unregistered. It never returns an error.
func (m *Manager) SendToOwner(ctx context.Context, ownerID string, msg Message) bool {
	conns := m.snapshot(ownerID)
	if len(conns) == 0 {
		m.logger.Debug("no live connections", "owner", ownerID, "type", msg.Type)
		return false
	}
	return m.deliver(ctx, ownerID, conns, msg) > 0
}

// Broadcast delivers msg to every registered connection and returns how
// many accepted it.
func (m *Manager) Broadcast(ctx context.Context, msg Message) int {
	m.mu.RLock()
	owners := make([]string, 0, len(m.conns))
	for owner := range m.conns {
		owners = append(owners, owner)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, owner := range owners {
		delivered += m.deliver(ctx, owner, m.snapshot(owner), msg)
	}
	return delivered
}

// snapshot copies the owner's connections so delivery runs without the lock.
func (m *Manager) snapshot(ownerID string) []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.conns[ownerID]
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (m *Manager) deliver(ctx context.Context, ownerID string, conns []Conn, msg Message) int {
	delivered := 0
	var failed []Conn
	for _, c := range conns {
		if err := c.Send(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				m.logger.Debug("send abandoned", "type", msg.Type, "err", core.DeliveryError(ownerID, err))
				continue
			}
			m.logger.Warn("dropping connection", "type", msg.Type, "err", core.DeliveryError(ownerID, err))
			failed = append(failed, c)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		m.mu.Lock()
		for _, c := range failed {
			m.removeLocked(ownerID, c)
		}
		m.mu.Unlock()
	}
	return delivered
}

func (m *Manager) removeLocked(ownerID string, conn Conn) {
	set, ok := m.conns[ownerID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(m.conns, ownerID)
	}
}
