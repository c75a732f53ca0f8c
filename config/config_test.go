package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "38870", cfg.Port)
	require.Equal(t, 1920, cfg.ScreenWidth)
	require.Equal(t, 1080, cfg.ScreenHeight)
	require.Equal(t, 80, cfg.UnitSize)
	require.Equal(t, 150, cfg.Delay)
	require.Equal(t, 6, cfg.BodyParts)
	require.Equal(t, "resources", cfg.AssetDir)
	require.Equal(t, "resources", cfg.SoundDir)
	require.Equal(t, "static", cfg.StaticDir)
	require.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.validate())
}

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"9000","unitsize":40,"delay":90}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, 40, cfg.UnitSize)
	require.Equal(t, 90, cfg.Delay)
	require.Equal(t, 1920, cfg.ScreenWidth)
	require.Equal(t, 6, cfg.BodyParts)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, body := range []string{
		`{"unitsize":0}`,
		`{"delay":-1}`,
		`{"screenwidth":10}`,
		`{"maxsessions":-1}`,
		`{not json`,
	} {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		_, err := Load(path)
		require.Error(t, err, body)
	}
}
