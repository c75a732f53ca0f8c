package main

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoshinonyaruko/snake-arcade/api"
	"github.com/hoshinonyaruko/snake-arcade/config"
	"github.com/hoshinonyaruko/snake-arcade/memimg"
	"github.com/hoshinonyaruko/snake-arcade/metrics"
	"github.com/hoshinonyaruko/snake-arcade/render"
	"github.com/hoshinonyaruko/snake-arcade/session"
	"github.com/hoshinonyaruko/snake-arcade/snake"
	"github.com/hoshinonyaruko/snake-arcade/sound"
	"github.com/hoshinonyaruko/snake-arcade/tui"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "snake-arcade",
	Short: "classic snake, served over HTTP or played in the terminal",
	RunE: func(c *cobra.Command, args []string) error {
		return serveCmd.RunE(c, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve games over HTTP and websocket",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "play one game in this terminal",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		return play(cfg)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.json", "path of the JSON config file")
	rootCmd.AddCommand(serveCmd, playCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

// setup 载入配置并初始化日志
func setup() (*config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("loglevel", cfg.LogLevel).Warn("unknown log level, using info")
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		log.SetOutput(f)
	}
	if err := EnsureFoldersExist(cfg.AssetDir, cfg.SoundDir, cfg.StaticDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func grid(cfg *config.AppConfig) snake.Grid {
	return snake.Grid{ScreenWidth: cfg.ScreenWidth, ScreenHeight: cfg.ScreenHeight, UnitSize: cfg.UnitSize}
}

func serve(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 载入图片到内存，并检测文件变化热更新
	images := memimg.New(cfg.UnitSize)
	if err := images.LoadDir(cfg.AssetDir); err != nil {
		log.WithError(err).Warn("no image assets, drawing solid colors")
	}
	go func() {
		if err := images.Watch(ctx, cfg.AssetDir); err != nil {
			log.WithError(err).Warn("asset watcher stopped")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewManager(ctx, session.Options{
		Grid:      grid(cfg),
		BodyParts: cfg.BodyParts,
		Delay:     time.Duration(cfg.Delay) * time.Millisecond,
		SoundDir:  cfg.SoundDir,
		SoundURL:  "/sounds",

		MaxSessions: cfg.MaxSessions,
		IdleTimeout: time.Duration(cfg.IdleTimeout) * time.Second,
	}, m)
	defer sessions.Close()

	router := api.NewRouter(api.Deps{
		Sessions:  sessions,
		Renderer:  render.New(images, cfg.FontPath),
		Metrics:   m,
		Gatherer:  reg,
		SelfPath:  cfg.SelfPath,
		StaticDir: cfg.StaticDir,
		SoundDir:  cfg.SoundDir,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.WithField("addr", srv.Addr).Info("snake-arcade listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "listen")
	}
	return nil
}

func play(cfg *config.AppConfig) error {
	// termbox 占用终端，日志没有指定文件时丢弃
	if cfg.LogFile == "" {
		log.SetOutput(io.Discard)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	game := snake.NewGame(grid(cfg), cfg.BodyParts, rng)
	runner := session.NewRunner("terminal", game, time.Duration(cfg.Delay)*time.Millisecond, rng, sound.Bell{W: os.Stdout}, nil)
	return tui.Run(ctx, runner)
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) error {
	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			if err := os.MkdirAll(folder, 0755); err != nil {
				return errors.Wrapf(err, "create %s directory", folder)
			}
			log.WithField("dir", folder).Info("created directory")
		}
	}
	return nil
}
