// Package session keeps the live story sessions of the HTTP layer. Each
// session is guarded by its own mutex; liveness is mirrored in the cache so
// the auth middleware can reject tokens of sessions that are gone.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/cache"
	"github.com/kasuganosora/novelsim/game/engine"
)

var ErrUnknownSession = errors.New("unknown session")

type entry struct {
	mu       sync.Mutex
	sess     *engine.Session
	playerID string
}

// Manager maintains the registry of live sessions.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewManager creates a Manager. Sessions idle for longer than ttl lose their
// cache marker and are dropped by the next Sweep.
func NewManager(c cache.Cache, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entries: make(map[string]*entry),
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

// Add registers sess for playerID and marks it live.
func (m *Manager) Add(ctx context.Context, sess *engine.Session, playerID string) error {
	if err := m.cache.Set(ctx, cache.SessionKey(sess.ID), playerID, m.ttl); err != nil {
		return fmt.Errorf("mark session %s: %w", sess.ID, err)
	}
	m.mu.Lock()
	m.entries[sess.ID] = &entry{sess: sess, playerID: playerID}
	m.mu.Unlock()
	m.logger.Info("session registered",
		zap.String("session_id", sess.ID),
		zap.String("player_id", playerID),
		zap.String("story_id", sess.Story.ID))
	return nil
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrUnknownSession)
	}
	return e, nil
}

// PlayerID returns the owner of session id.
func (m *Manager) PlayerID(id string) (string, error) {
	e, err := m.get(id)
	if err != nil {
		return "", err
	}
	return e.playerID, nil
}

// Do runs fn with exclusive access to session id and extends its lifetime.
func (m *Manager) Do(ctx context.Context, id string, fn func(*engine.Session) error) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := m.cache.Expire(ctx, cache.SessionKey(id), m.ttl); err != nil {
		if cache.IsMiss(err) {
			m.drop(id)
			return fmt.Errorf("session %q expired: %w", id, ErrUnknownSession)
		}
		m.logger.Warn("session touch failed", zap.String("session_id", id), zap.Error(err))
	}
	return fn(e.sess)
}

// Each runs fn for every live session, one at a time. Sessions whose cache
// marker is gone are dropped instead. Errors are logged and do not stop the
// iteration.
func (m *Manager) Each(ctx context.Context, fn func(sess *engine.Session, playerID string) error) {
	for _, id := range m.IDs() {
		e, err := m.get(id)
		if err != nil {
			continue
		}
		live, err := m.cache.Exists(ctx, cache.SessionKey(id))
		if err != nil {
			m.logger.Warn("session liveness check failed", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if !live {
			m.drop(id)
			continue
		}
		e.mu.Lock()
		err = fn(e.sess, e.playerID)
		e.mu.Unlock()
		if err != nil {
			m.logger.Warn("session task failed", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// Remove drops session id and its cache marker.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.drop(id)
	if err := m.cache.Del(ctx, cache.SessionKey(id)); err != nil {
		m.logger.Warn("session marker delete failed", zap.String("session_id", id), zap.Error(err))
	}
}

func (m *Manager) drop(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// IDs returns the live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops the sessions whose cache marker has expired and returns how
// many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	removed := 0
	for _, id := range m.IDs() {
		live, err := m.cache.Exists(ctx, cache.SessionKey(id))
		if err != nil {
			m.logger.Warn("session liveness check failed", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if live {
			continue
		}
		m.drop(id)
		removed++
	}
	if removed > 0 {
		m.logger.Info("expired sessions swept", zap.Int("count", removed))
	}
	return removed
}
