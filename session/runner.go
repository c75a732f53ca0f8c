package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hoshinonyaruko/snake-arcade/input"
	"github.com/hoshinonyaruko/snake-arcade/metrics"
	"github.com/hoshinonyaruko/snake-arcade/snake"
	"github.com/hoshinonyaruko/snake-arcade/sound"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	log "github.com/sirupsen/logrus"
)

// BodyVariants 可选的蛇身图片数量（body1..body3）
const BodyVariants = 3

// Runner drives one game at a fixed interval. Inputs may arrive at any time;
// direction changes are buffered by the game and applied on the next tick.
type Runner struct {
	id      string
	delay   time.Duration
	player  sound.Player
	metrics *metrics.Metrics
	log     *log.Entry

	mu   sync.Mutex
	game *snake.Game
	rng  *rand.Rand
	tick uint64
	body string

	// 最近一次被客户端访问的时间（UnixNano）
	active atomic.Int64

	wake chan struct{}

	subMu sync.Mutex
	subs  map[chan structs.Snapshot]struct{}
}

// NewRunner wraps game. rng picks the body image variant; it is only used
// under the runner's lock, so it may be the same *rand.Rand the game uses.
// rng, player and m may be nil.
func NewRunner(id string, game *snake.Game, delay time.Duration, rng *rand.Rand, player sound.Player, m *metrics.Metrics) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if player == nil {
		player = sound.Silent{}
	}
	if m == nil {
		m = metrics.Noop()
	}
	r := &Runner{
		id:      id,
		delay:   delay,
		player:  player,
		metrics: m,
		log:     log.WithField("session", id),
		game:    game,
		rng:     rng,
		wake:    make(chan struct{}, 1),
		subs:    make(map[chan structs.Snapshot]struct{}),
	}
	r.body = r.pickBody()
	r.touch()
	return r
}

// pickBody 随机选择蛇身图片，调用方持有 r.mu（或在构造时）
func (r *Runner) pickBody() string {
	return fmt.Sprintf("body%d", r.rng.Intn(BodyVariants)+1)
}

func (r *Runner) touch() {
	r.active.Store(time.Now().UnixNano())
}

// LastActive returns when a client last read or changed this session.
// Ticks alone do not count.
func (r *Runner) LastActive() time.Time {
	return time.Unix(0, r.active.Load())
}

// Watched reports whether anyone is subscribed to the session.
func (r *Runner) Watched() bool {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs) > 0
}

func (r *Runner) ID() string { return r.id }

// Run ticks the game until ctx is done. The ticker is stopped while the game
// is over and started again by a restart.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.delay)
	defer ticker.Stop()

	r.log.WithField("delay", r.delay).Info("session started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("session stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		if r.Step().GameOver {
			ticker.Stop()
			// 一个早先的重新开始信号可能还在缓冲里，所以醒来后再确认一次
			for !r.Alive() {
				select {
				case <-ctx.Done():
					r.log.Info("session stopped")
					return ctx.Err()
				case <-r.wake:
				}
			}
			ticker.Reset(r.delay)
		}
	}
}

// Alive reports whether the game is still running.
func (r *Runner) Alive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Alive()
}

// Step advances the game by one tick and notifies collaborators.
func (r *Runner) Step() snake.Outcome {
	r.mu.Lock()
	if !r.game.Alive() {
		r.mu.Unlock()
		return snake.Outcome{}
	}
	out := r.game.Advance()
	r.tick++
	if out.AteApple {
		// 每吃到一个食物重新随机选择蛇身图片
		r.body = r.pickBody()
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.metrics.Ticks.Inc()
	if out.AteApple {
		r.metrics.Apples.Inc()
		r.player.Play(sound.Eat)
		r.log.WithField("score", snap.Score).Debug("apple eaten")
	}
	if out.GameOver {
		r.metrics.GamesOver.Inc()
		r.player.Play(sound.GameOver)
		r.log.WithFields(log.Fields{
			"score": snap.Score,
			"tick":  snap.Tick,
		}).Info("game over")
	}
	r.publish(snap)
	return out
}

// Input applies a parsed key press. It reports whether the command changed
// anything; reversals and input on a finished game are ignored.
func (r *Runner) Input(cmd input.Command) bool {
	r.touch()
	r.mu.Lock()
	var changed bool
	switch cmd.Action {
	case input.Turn:
		changed = r.game.SetDirection(cmd.Direction)
		r.metrics.Inputs.WithLabelValues(fmt.Sprint(changed)).Inc()
	case input.Restart:
		r.game.Restart()
		r.tick = 0
		r.body = r.pickBody()
		changed = true
	case input.Grow:
		r.game.Grow()
		changed = true
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if cmd.Action == input.Restart {
		r.metrics.Restarts.Inc()
		r.log.Info("game restarted")
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
	if changed && cmd.Action != input.Turn {
		r.publish(snap)
	}
	return changed
}

// Snapshot returns the current state.
func (r *Runner) Snapshot() structs.Snapshot {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Runner) snapshotLocked() structs.Snapshot {
	snap := r.game.Snapshot()
	snap.SessionID = r.id
	snap.Tick = r.tick
	snap.Body = r.body
	return snap
}

// DrainSounds returns the effects waiting for a web client, if the runner
// plays into a sound.Queue.
func (r *Runner) DrainSounds() []sound.Cue {
	if q, ok := r.player.(interface{ Drain() []sound.Cue }); ok {
		return q.Drain()
	}
	return nil
}

// Subscribe returns a channel receiving a snapshot after every change.
// Slow subscribers only see the latest snapshot.
func (r *Runner) Subscribe() (<-chan structs.Snapshot, func()) {
	ch := make(chan structs.Snapshot, 1)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, ch)
			r.subMu.Unlock()
		})
	}
}

func (r *Runner) publish(snap structs.Snapshot) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// 丢弃旧的快照，保留最新的
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
