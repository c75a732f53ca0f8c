package session

import (
	"context"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/snake-arcade/metrics"
	"github.com/hoshinonyaruko/snake-arcade/snake"
	"github.com/hoshinonyaruko/snake-arcade/sound"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that are not a plain name. Ids end up
	// in file names under the static directory.
	ErrInvalidID = errors.New("invalid session id")
	// ErrTooManySessions is returned when MaxSessions are already running.
	ErrTooManySessions = errors.New("too many sessions")
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID 会话id只能由字母、数字、下划线和连字符组成
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Options 创建会话时使用的参数
type Options struct {
	Grid      snake.Grid
	BodyParts int
	Delay     time.Duration
	SoundDir  string
	SoundURL  string // 音效目录的静态地址前缀

	MaxSessions int           // 0 不限制
	IdleTimeout time.Duration // 0 不回收空闲会话
}

type entry struct {
	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager keeps the independent single-player sessions of this process,
// each keyed by the client's id and ticking in its own goroutine.
type Manager struct {
	opts    Options
	metrics *metrics.Metrics
	ctx     context.Context

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a manager whose sessions stop when ctx is done.
func NewManager(ctx context.Context, opts Options, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.Noop()
	}
	mgr := &Manager{
		opts:     opts,
		metrics:  m,
		ctx:      ctx,
		sessions: make(map[string]*entry),
	}
	if opts.IdleTimeout > 0 {
		go mgr.reap(opts.IdleTimeout)
	}
	return mgr
}

// reap 定期删除没有人访问也没有人订阅的会话
func (m *Manager) reap(timeout time.Duration) {
	interval := timeout / 2
	if interval <= 0 {
		interval = timeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range m.idle(now, timeout) {
				if err := m.Delete(id); err == nil {
					log.WithField("session", id).Info("idle session removed")
				}
			}
		}
	}
}

func (m *Manager) idle(now time.Time, timeout time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, e := range m.sessions {
		if !e.runner.Watched() && now.Sub(e.runner.LastActive()) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetOrCreate returns the session for id, starting a new game if there is
// none. An empty id gets a fresh random one. It fails with ErrInvalidID or
// ErrTooManySessions.
func (m *Manager) GetOrCreate(id string) (*Runner, bool, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if !ValidID(id) {
		return nil, false, errors.Wrapf(ErrInvalidID, "%q", id)
	}

	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return e.runner, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e.runner, false, nil
	}
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, false, errors.Wrapf(ErrTooManySessions, "limit %d", m.opts.MaxSessions)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	game := snake.NewGame(m.opts.Grid, m.opts.BodyParts, rng)
	player := sound.NewQueue(m.opts.SoundDir, m.opts.SoundURL)
	r := NewRunner(id, game, m.opts.Delay, rng, player, m.metrics)

	ctx, cancel := context.WithCancel(m.ctx)
	e = &entry{runner: r, cancel: cancel, done: make(chan struct{})}
	m.sessions[id] = e
	m.metrics.Sessions.Inc()

	go func() {
		defer close(e.done)
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).WithField("session", id).Error("session ended")
		}
	}()
	return r, true, nil
}

// Get looks up an existing session.
func (m *Manager) Get(id string) (*Runner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.runner, nil
	}
	return nil, errors.Wrap(ErrNotFound, id)
}

// Delete stops the session and forgets it.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrNotFound, id)
	}

	e.cancel()
	<-e.done
	m.metrics.Sessions.Dec()
	return nil
}

// Len 当前会话数量
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Delete(id)
	}
}
