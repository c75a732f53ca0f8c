package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/snake-arcade/input"
	"github.com/hoshinonyaruko/snake-arcade/session"
	"github.com/hoshinonyaruko/snake-arcade/sound"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	log "github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame 是推送给客户端的一条消息
type Frame struct {
	State  structs.Snapshot `json:"state"`
	Sounds []sound.Cue      `json:"sounds,omitempty"`
}

// StreamHandler 通过 websocket 推送每一帧的状态，客户端发送的文本消息按按键名称处理
func StreamHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := open(c, sessions)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		logger := log.WithField("session", runner.ID())
		updates, unsubscribe := runner.Subscribe()
		defer unsubscribe()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				cmd, ok := input.Parse(string(msg))
				if !ok {
					logger.WithField("key", string(msg)).Debug("ignoring unknown key")
					continue
				}
				runner.Input(cmd)
			}
		}()

		send := func(snap structs.Snapshot) error {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(Frame{State: snap, Sounds: runner.DrainSounds()})
		}

		if err := send(runner.Snapshot()); err != nil {
			return
		}
		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case snap := <-updates:
				if err := send(snap); err != nil {
					logger.WithError(err).Debug("websocket write failed")
					return
				}
			}
		}
	}
}
