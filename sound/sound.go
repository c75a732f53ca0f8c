// Package sound plays the game's sound effects. Playback is fire-and-forget:
// a missing asset is logged and the effect is skipped.
package sound

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Effect 音效名称
type Effect string

const (
	Eat      Effect = "eat"
	GameOver Effect = "gameover"
)

// File 音效对应的文件名
func (e Effect) File() string {
	return string(e) + ".wav"
}

// Player 播放音效，不返回错误
type Player interface {
	Play(e Effect)
}

// Cue 是交给客户端播放的一个音效
type Cue struct {
	Effect Effect `json:"effect"`
	URL    string `json:"url"`
}

// Queue 把音效排队交给网页客户端播放。
// 音效文件在播放时检查，不存在则跳过。
type Queue struct {
	dir     string
	baseURL string
	limit   int

	mu   sync.Mutex
	cues []Cue
}

// NewQueue 创建队列。baseURL 是音效目录对外的静态地址前缀。
func NewQueue(dir, baseURL string) *Queue {
	return &Queue{dir: dir, baseURL: baseURL, limit: 32}
}

// Play 实现 Player
func (q *Queue) Play(e Effect) {
	path := filepath.Join(q.dir, e.File())
	if _, err := os.Stat(path); err != nil {
		log.WithError(err).WithField("effect", e).Warn("cannot play sound")
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// 没人来取的话只保留最近的音效
	if len(q.cues) >= q.limit {
		q.cues = q.cues[1:]
	}
	q.cues = append(q.cues, Cue{Effect: e, URL: q.baseURL + "/" + e.File()})
}

// Drain 取出并清空所有待播放的音效
func (q *Queue) Drain() []Cue {
	q.mu.Lock()
	defer q.mu.Unlock()
	cues := q.cues
	q.cues = nil
	return cues
}

// Bell 在终端里用响铃代替音效
type Bell struct {
	W io.Writer
}

// Play 实现 Player
func (b Bell) Play(e Effect) {
	if _, err := io.WriteString(b.W, "\a"); err != nil {
		log.WithError(err).WithField("effect", e).Debug("bell failed")
	}
}

// Silent 丢弃所有音效
type Silent struct{}

func (Silent) Play(Effect) {}
