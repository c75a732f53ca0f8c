package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-arcade/input"
	"github.com/hoshinonyaruko/snake-arcade/metrics"
	"github.com/hoshinonyaruko/snake-arcade/render"
	"github.com/hoshinonyaruko/snake-arcade/session"
	"github.com/hoshinonyaruko/snake-arcade/sound"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Deps 路由需要的依赖
type Deps struct {
	Sessions  *session.Manager
	Renderer  *render.Renderer
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	SelfPath  string // 对外地址，用于拼接图片URL
	StaticDir string
	SoundDir  string
}

// NewRouter 注册所有路由
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// 处理玩家按键
	router.GET("/key", KeyHandler(d.Sessions))
	// 处理玩家改变方向
	router.GET("/update-direction", UpdateDirection(d.Sessions))
	router.GET("/restart", commandHandler(d.Sessions, input.Command{Action: input.Restart}))
	router.GET("/grow", commandHandler(d.Sessions, input.Command{Action: input.Grow}))
	router.GET("/state", StateHandler(d.Sessions))
	// 渲染函数 返回静态地址
	router.GET("/render-map", RenderMapHandler(d))
	router.GET("/frame.png", FrameHandler(d))
	// 删除会话
	router.GET("/delete-map", DeleteMapHandler(d.Sessions))
	router.GET("/ws", StreamHandler(d.Sessions))

	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.StaticDir != "" {
		router.Static("/static", d.StaticDir) // 静态文件服务
	}
	if d.SoundDir != "" {
		router.Static("/sounds", d.SoundDir)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}

// sessionID 读取 sessionid 参数，缺少时写入400
func sessionID(c *gin.Context) (string, bool) {
	id := c.Query("sessionid")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: sessionid"})
		return "", false
	}
	return id, true
}

// lookup 取得已存在的会话，不存在时写入404
func lookup(c *gin.Context, sessions *session.Manager) (*session.Runner, bool) {
	id, ok := sessionID(c)
	if !ok {
		return nil, false
	}
	runner, err := sessions.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No session found with the specified sessionid"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return runner, true
}

// open 获取或创建会话，失败时写入对应的状态码
func open(c *gin.Context, sessions *session.Manager) (*session.Runner, bool) {
	runner, created, err := sessions.GetOrCreate(c.Query("sessionid"))
	switch {
	case errors.Is(err, session.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionid may only contain letters, digits, '_' and '-'"})
		return nil, false
	case errors.Is(err, session.ErrTooManySessions):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Too many sessions, try again later"})
		return nil, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if created {
		log.WithField("session", runner.ID()).Info("created session")
	}
	return runner, true
}

// KeyHandler 把按键名称（如 ArrowUp、w、r、b）交给会话
func KeyHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cmd, ok := input.Parse(c.Query("key"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown key '%s'", c.Query("key"))})
			return
		}
		runner, ok := lookup(c, sessions)
		if !ok {
			return
		}
		accepted := runner.Input(cmd)
		c.JSON(http.StatusOK, gin.H{"accepted": accepted, "state": runner.Snapshot()})
	}
}

// UpdateDirection 处理玩家改变方向，反方向的输入会被忽略
func UpdateDirection(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		newDirection := c.Query("direction")
		if newDirection == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameters: sessionid or direction"})
			return
		}
		d, valid := structs.ParseDirection(newDirection)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid direction '%s' provided", newDirection)})
			return
		}
		runner, ok := lookup(c, sessions)
		if !ok {
			return
		}

		if !runner.Input(input.Command{Action: input.Turn, Direction: d}) {
			c.JSON(http.StatusOK, gin.H{"message": "Direction change ignored", "accepted": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Direction updated successfully", "accepted": true})
	}
}

func commandHandler(sessions *session.Manager, cmd input.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := lookup(c, sessions)
		if !ok {
			return
		}
		runner.Input(cmd)
		c.JSON(http.StatusOK, gin.H{"state": runner.Snapshot()})
	}
}

// StateHandler 返回当前快照
func StateHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := lookup(c, sessions)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, runner.Snapshot())
	}
}

// RenderMapHandler 获取或创建会话，渲染当前画面并保存到静态目录
func RenderMapHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := open(c, d.Sessions)
		if !ok {
			return
		}

		snap := runner.Snapshot()
		start := time.Now()
		fileName := filepath.Join(d.StaticDir, runner.ID()+".png")
		if err := d.Renderer.Save(fileName, snap); err != nil {
			log.WithError(err).WithField("session", runner.ID()).Error("render failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to render game map"})
			return
		}
		observeRender(d.Metrics, start)

		imageURL := fmt.Sprintf("http://%s/static/%s.png", d.SelfPath, runner.ID())
		sounds := runner.DrainSounds()
		if sounds == nil {
			sounds = []sound.Cue{}
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": runner.ID(),
			"image_url":  imageURL,
			"sounds":     sounds,
			"state":      snap,
		})
	}
}

// FrameHandler 直接返回PNG
func FrameHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		runner, ok := lookup(c, d.Sessions)
		if !ok {
			return
		}
		start := time.Now()
		c.Header("Cache-Control", "no-store")
		c.Header("Content-Type", "image/png")
		c.Status(http.StatusOK)
		if err := d.Renderer.Encode(c.Writer, runner.Snapshot()); err != nil {
			log.WithError(err).WithField("session", runner.ID()).Error("encode frame failed")
			return
		}
		observeRender(d.Metrics, start)
	}
}

// DeleteMapHandler 结束并删除会话
func DeleteMapHandler(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}
		if err := sessions.Delete(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No session found with the specified sessionid"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
	}
}

func observeRender(m *metrics.Metrics, start time.Time) {
	if m != nil {
		m.Renders.Observe(time.Since(start).Seconds())
	}
}
