package api

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/snake-arcade/metrics"
	"github.com/hoshinonyaruko/snake-arcade/render"
	"github.com/hoshinonyaruko/snake-arcade/session"
	"github.com/hoshinonyaruko/snake-arcade/snake"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router   *gin.Engine
	sessions *session.Manager
	static   string
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	static := t.TempDir()
	sounds := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sounds, "eat.wav"), []byte("RIFF"), 0644))

	sessions := session.NewManager(ctx, session.Options{
		Grid:     snake.DefaultGrid,
		Delay:    delay,
		SoundDir: sounds,
		SoundURL: "/sounds",
	}, m)
	t.Cleanup(func() {
		sessions.Close()
		cancel()
	})

	router := NewRouter(Deps{
		Sessions:  sessions,
		Renderer:  render.New(nil, ""),
		Metrics:   m,
		Gatherer:  reg,
		SelfPath:  "localhost:38870",
		StaticDir: static,
		SoundDir:  sounds,
	})
	return &fixture{router: router, sessions: sessions, static: static}
}

func (f *fixture) get(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestRenderMapCreatesSession(t *testing.T) {
	f := newFixture(t, time.Hour)

	rr := f.get(t, "/render-map?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		SessionID string            `json:"session_id"`
		ImageURL  string            `json:"image_url"`
		Sounds    []json.RawMessage `json:"sounds"`
		State     structs.Snapshot  `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "g1", body.SessionID)
	require.Equal(t, "http://localhost:38870/static/g1.png", body.ImageURL)
	require.NotNil(t, body.Sounds)
	require.True(t, body.State.Alive)
	require.Len(t, body.State.Segments, snake.InitialBodyParts)

	_, err := os.Stat(filepath.Join(f.static, "g1.png"))
	require.NoError(t, err)

	rr = f.get(t, "/static/g1.png")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRenderMapRejectsPathLikeIDs(t *testing.T) {
	f := newFixture(t, time.Hour)
	outside := filepath.Join(filepath.Dir(f.static), "escaped")

	for _, id := range []string{
		"..%2F..%2Fescaped%2Fpwn",
		"..%2Fescaped",
		"g1.png",
		"%2Ftmp%2Fpwn",
	} {
		rr := f.get(t, "/render-map?sessionid="+id)
		require.Equal(t, http.StatusBadRequest, rr.Code, id)
	}
	require.Equal(t, 0, f.sessions.Len())

	_, err := os.Stat(outside)
	require.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(f.static)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStreamRejectsBadID(t *testing.T) {
	f := newFixture(t, time.Hour)
	rr := f.get(t, "/ws?sessionid=..%2Fx")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, 0, f.sessions.Len())
}

func TestUpdateDirection(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.sessions.GetOrCreate("g1")

	rr := f.get(t, "/update-direction?sessionid=g1&direction=up")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"accepted":true`)

	// reversal of the applied direction (right) is ignored
	rr = f.get(t, "/update-direction?sessionid=g1&direction=left")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"accepted":false`)

	rr = f.get(t, "/update-direction?sessionid=g1&direction=sideways")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.get(t, "/update-direction?sessionid=missing&direction=up")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.get(t, "/update-direction?direction=up")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestKeyGrowRestartAndState(t *testing.T) {
	f := newFixture(t, time.Hour)
	runner, _, err := f.sessions.GetOrCreate("g1")
	require.NoError(t, err)

	rr := f.get(t, "/key?sessionid=g1&key=space")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.get(t, "/key?sessionid=g1&key=b")
	require.Equal(t, http.StatusOK, rr.Code)
	runner.Step()

	rr = f.get(t, "/state?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap structs.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Len(t, snap.Segments, snake.InitialBodyParts+1+snap.Score)
	require.Equal(t, uint64(1), snap.Tick)

	rr = f.get(t, "/restart?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)
	snap = runner.Snapshot()
	require.Equal(t, uint64(0), snap.Tick)
	require.Len(t, snap.Segments, snake.InitialBodyParts)

	rr = f.get(t, "/grow?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestFrameAndMetrics(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.sessions.GetOrCreate("g1")

	rr := f.get(t, "/frame.png?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	img, err := png.Decode(rr.Body)
	require.NoError(t, err)
	require.Equal(t, 1920, img.Bounds().Dx())

	rr = f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "snake_sessions 1")
	require.Contains(t, rr.Body.String(), "snake_render_seconds_count 1")
}

func TestDeleteMap(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.sessions.GetOrCreate("g1")

	rr := f.get(t, "/delete-map")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.get(t, "/delete-map?sessionid=g1")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = f.get(t, "/delete-map?sessionid=g1")
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = f.get(t, "/state?sessionid=g1")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStreamPushesFramesAndTakesKeys(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?sessionid=g1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "g1", first.State.SessionID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ArrowDown")))

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "never saw the turn applied")
		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.State.Direction == structs.Down || !frame.State.Alive {
			break
		}
	}
}
