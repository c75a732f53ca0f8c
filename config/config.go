package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	SelfPath     string `json:"selfpath"`
	Port         string `json:"port"`
	ScreenWidth  int    `json:"screenwidth"`
	ScreenHeight int    `json:"screenheight"`
	UnitSize     int    `json:"unitsize"`
	Delay        int    `json:"delay"` // 游戏速度（毫秒）
	BodyParts    int    `json:"bodyparts"`
	AssetDir     string `json:"assetdir"`
	SoundDir     string `json:"sounddir"`
	StaticDir    string `json:"staticdir"`
	FontPath     string `json:"fontpath"`
	LogLevel     string `json:"loglevel"`
	LogFile      string `json:"logfile"`
	MaxSessions  int    `json:"maxsessions"` // 同时存在的会话上限，0 不限制
	IdleTimeout  int    `json:"idletimeout"` // 会话空闲多少秒后回收，0 不回收
}

// Default 默认配置，配置文件不存在时写入
func Default() *AppConfig {
	return &AppConfig{
		SelfPath:     "www.example.com",
		Port:         "38870",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		UnitSize:     80,
		Delay:        150,
		BodyParts:    6,
		AssetDir:     "resources",
		SoundDir:     "resources",
		StaticDir:    "static",
		FontPath:     "",
		LogLevel:     "info",
		LogFile:      "",
		MaxSessions:  64,
		IdleTimeout:  600,
	}
}

// Load reads filePath into a fresh AppConfig, writing the defaults to it
// first if the file does not exist yet.
func Load(filePath string) (*AppConfig, error) {
	cfg := Default()
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return cfg, saveConfig(filePath, cfg)
	}
	if err := loadConfig(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

// loadConfig loads the settings from the file
func loadConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Open(filePath)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return errors.Wrapf(err, "decode config %s", filePath)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrap(err, "create config")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return errors.Wrapf(err, "encode config %s", filePath)
	}
	return nil
}

func (c *AppConfig) validate() error {
	switch {
	case c.UnitSize <= 0:
		return errors.Errorf("unitsize must be positive, got %d", c.UnitSize)
	case c.ScreenWidth < c.UnitSize || c.ScreenHeight < c.UnitSize:
		return errors.Errorf("screen %dx%d is smaller than one unit", c.ScreenWidth, c.ScreenHeight)
	case c.Delay <= 0:
		return errors.Errorf("delay must be positive, got %d", c.Delay)
	case c.MaxSessions < 0 || c.IdleTimeout < 0:
		return errors.Errorf("maxsessions and idletimeout must not be negative")
	}
	return nil
}
