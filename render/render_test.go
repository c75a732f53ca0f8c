package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/hoshinonyaruko/snake-arcade/memimg"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	"github.com/stretchr/testify/require"
)

func testSnapshot() structs.Snapshot {
	return structs.Snapshot{
		Segments: []structs.Position{
			{X: 160, Y: 160},
			{X: 80, Y: 160},
			{X: 0, Y: 160},
		},
		Apple:     structs.Position{X: 800, Y: 480},
		Body:      "body2",
		Direction: structs.Right,
		Alive:     true,
		Width:     1920,
		Height:    1080,
		UnitSize:  80,
	}
}

func requireColor(t *testing.T, img image.Image, x, y int, want color.Color) {
	t.Helper()
	wr, wg, wb, _ := want.RGBA()
	gr, gg, gb, _ := img.At(x, y).RGBA()
	require.Equal(t, [3]uint32{wr >> 8, wg >> 8, wb >> 8}, [3]uint32{gr >> 8, gg >> 8, gb >> 8}, "pixel (%d,%d)", x, y)
}

func TestRenderFallsBackToColors(t *testing.T) {
	r := New(nil, "")
	img := r.Render(testSnapshot())

	require.Equal(t, image.Rect(0, 0, 1920, 1080), img.Bounds())
	requireColor(t, img, 840, 520, appleColor)
	requireColor(t, img, 200, 200, headColor)
	requireColor(t, img, 120, 200, bodyColor)
	requireColor(t, img, 1500, 900, color.Black)
}

func TestRenderUsesImages(t *testing.T) {
	store := memimg.New(0)
	blue := color.NRGBA{B: 255, A: 255}
	yellow := color.NRGBA{R: 255, G: 255, A: 255}
	store.Put("head", imaging.New(80, 106, blue))
	store.Put("body2", imaging.New(80, 80, yellow))

	snap := testSnapshot()
	snap.Direction = structs.Up
	img := New(store, "").Render(snap)

	// rotated head keeps its centre at (x+40, y+53)
	requireColor(t, img, 200, 213, blue)
	requireColor(t, img, 120, 200, yellow)
	// body1 is not loaded
	snap.Body = "body1"
	img = New(store, "").Render(snap)
	requireColor(t, img, 120, 200, bodyColor)
}

func TestRenderGameOverHidesBoard(t *testing.T) {
	snap := testSnapshot()
	snap.Alive = false
	img := New(nil, "").Render(snap)
	requireColor(t, img, 200, 200, color.Black)
	requireColor(t, img, 840, 520, color.Black)
}

func TestRotateHead(t *testing.T) {
	head := imaging.New(80, 106, color.NRGBA{A: 255})
	require.Equal(t, 106, rotateHead(head, structs.Up).Bounds().Dx())
	require.Equal(t, 106, rotateHead(head, structs.Down).Bounds().Dx())
	require.Equal(t, 80, rotateHead(head, structs.Left).Bounds().Dx())
	require.Equal(t, 80, rotateHead(head, structs.Right).Bounds().Dx())
}

func TestEncodeAndSave(t *testing.T) {
	r := New(nil, filepath.Join(t.TempDir(), "missing.ttf"))

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf, testSnapshot()))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 1920, decoded.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "out", "frame.png")
	require.NoError(t, r.Save(path, testSnapshot()))
	saved, err := imaging.Open(path)
	require.NoError(t, err)
	require.Equal(t, 1080, saved.Bounds().Dy())
}
