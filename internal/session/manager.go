package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/metrics"
)

// ErrCapacity is returned when the manager is full of active sessions.
var ErrCapacity = errors.New("session capacity reached")

// Defaults applied by NewManager.
const (
	DefaultCapacity        = 1000
	DefaultHardTTL         = 72 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Options configures a Manager.
type Options struct {
	Logger *slog.Logger
	// Capacity bounds the number of sessions held at once.
	Capacity int
	// HardTTL expires any session this long after creation regardless of state.
	HardTTL time.Duration
	// CleanupInterval is how often expired sessions are purged.
	CleanupInterval time.Duration
}

// Manager holds sessions in memory. All methods are safe for concurrent use;
// callers only ever see copies, and Update serializes mutations of a session.
type Manager struct {
	cache    *cache.Cache
	logger   *slog.Logger
	now      func() time.Time
	capacity int
	mu       sync.Mutex
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.HardTTL <= 0 {
		opts.HardTTL = DefaultHardTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := cache.New(opts.HardTTL, opts.CleanupInterval)
	c.OnEvicted(func(string, any) {
		metrics.Sessions.Set(float64(c.ItemCount()))
	})

	return &Manager{
		cache:    c,
		logger:   opts.Logger,
		now:      time.Now,
		capacity: opts.Capacity,
	}
}

// Create starts a session in the Uploading state. When the manager is full the
// oldest finished session is evicted; if every session is active, ErrCapacity is returned.
func (m *Manager) Create(userID, imagePath, text, audioPath string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.cache.Items()) >= m.capacity {
		if !m.evictOldestFinished() {
			return nil, fmt.Errorf("%w: %d sessions active", ErrCapacity, m.capacity)
		}
	}

	s := newSession(userID, imagePath, text, audioPath, m.now())
	m.cache.Set(s.ID, s, cache.DefaultExpiration)
	metrics.Sessions.Set(float64(m.cache.ItemCount()))

	m.logger.Debug("Created session", "session_id", s.ID, "user_id", userID)
	return s.clone(), nil
}

func (m *Manager) evictOldestFinished() bool {
	var oldest *Session
	for _, item := range m.cache.Items() {
		s := item.Object.(*Session)
		if !s.State.IsTerminal() {
			continue
		}
		if oldest == nil || s.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}

	m.cache.Delete(oldest.ID)
	metrics.SessionsReaped.WithLabelValues("capacity").Inc()
	m.logger.Info("Evicted session to make room", "session_id", oldest.ID, "state", oldest.State)
	return true
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (*Session, bool) {
	obj, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	return obj.(*Session).clone(), true
}

// Update applies fn to a copy of the session and stores the result if fn succeeds.
// The session keeps its original expiry.
func (m *Manager) Update(id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, expiresAt, found := m.cache.GetWithExpiration(id)
	if !found {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}

	working := obj.(*Session).clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	ttl := cache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(m.now())
		if ttl <= 0 {
			m.cache.Delete(id)
			return nil, fmt.Errorf("session %s expired: %w", id, common.ErrNotFound)
		}
	}
	m.cache.Set(id, working, ttl)
	return working.clone(), nil
}

// UserSessions returns a user's sessions, newest first.
func (m *Manager) UserSessions(userID string, activeOnly bool) []*Session {
	var out []*Session
	for _, item := range m.cache.Items() {
		s := item.Object.(*Session)
		if s.UserID != userID || (activeOnly && !s.State.IsActive()) {
			continue
		}
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Reap removes completed sessions last updated more than maxAge ago and
// returns how many were removed.
func (m *Manager) Reap(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, item := range m.cache.Items() {
		s := item.Object.(*Session)
		if s.State.IsCompleted() && s.UpdatedAt.Before(cutoff) {
			m.cache.Delete(id)
			removed++
		}
	}
	if removed > 0 {
		metrics.SessionsReaped.WithLabelValues("age").Add(float64(removed))
		m.logger.Info("Reaped completed sessions", "count", removed, "max_age", maxAge)
	}
	return removed
}

// Stats summarizes the sessions currently held.
type Stats struct {
	ByState map[State]int `json:"by_state" yaml:"by_state"`
	Total   int           `json:"total_sessions" yaml:"total_sessions"`
	Active  int           `json:"active_sessions" yaml:"active_sessions"`
}

// Stats counts sessions by state.
func (m *Manager) Stats() Stats {
	stats := Stats{ByState: make(map[State]int)}
	for _, item := range m.cache.Items() {
		s := item.Object.(*Session)
		stats.Total++
		stats.ByState[s.State]++
		if s.State.IsActive() {
			stats.Active++
		}
	}
	return stats
}
