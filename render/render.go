// 把游戏快照画成图片
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/hoshinonyaruko/snake-arcade/memimg"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

var (
	appleColor = color.RGBA{R: 255, A: 255}
	headColor  = color.RGBA{G: 255, A: 255}
	bodyColor  = color.RGBA{R: 45, G: 180, A: 255}
	background = color.Black
)

const (
	scoreFontSize    = 30
	gameOverFontSize = 75
)

// Renderer 使用内存中的图像资源绘制游戏画面，图像缺失时用纯色代替
type Renderer struct {
	images   *memimg.Store
	fontPath string

	// 全局缓存，背景按画面大小缓存
	backgrounds sync.Map

	faceMu   sync.Mutex
	faces    map[float64]font.Face
	fontWarn sync.Once
}

// New 创建渲染器。fontPath 为空时使用内置的点阵字体。
func New(images *memimg.Store, fontPath string) *Renderer {
	if images == nil {
		images = memimg.New(0)
	}
	return &Renderer{
		images:   images,
		fontPath: fontPath,
		faces:    make(map[float64]font.Face),
	}
}

// Render 绘制一帧
func (r *Renderer) Render(snap structs.Snapshot) image.Image {
	dc := gg.NewContext(snap.Width, snap.Height)
	dc.DrawImage(r.background(snap.Width, snap.Height), 0, 0)

	if snap.Alive {
		r.drawApple(dc, snap)
		r.drawSnake(dc, snap)
		r.drawScore(dc, snap, fmt.Sprintf("SCORE: %d", snap.Score))
	} else {
		r.drawGameOver(dc, snap)
	}
	return dc.Image()
}

// Encode 绘制一帧并以PNG写入w
func (r *Renderer) Encode(w io.Writer, snap structs.Snapshot) error {
	return errors.Wrap(png.Encode(w, r.Render(snap)), "encode png")
}

// Save 绘制一帧并保存为PNG文件
func (r *Renderer) Save(path string, snap structs.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	return errors.Wrapf(gg.SavePNG(path, r.Render(snap)), "save %s", path)
}

func (r *Renderer) background(width, height int) image.Image {
	cacheKey := fmt.Sprintf("%dx%d", width, height)
	if cached, ok := r.backgrounds.Load(cacheKey); ok {
		return cached.(image.Image)
	}
	dc := gg.NewContext(width, height)
	dc.SetColor(background)
	dc.Clear()
	img := dc.Image()
	r.backgrounds.Store(cacheKey, img)
	return img
}

func (r *Renderer) drawApple(dc *gg.Context, snap structs.Snapshot) {
	unit := float64(snap.UnitSize)
	if img, found := r.images.Get("apple"); found {
		dc.DrawImage(img, snap.Apple.X, snap.Apple.Y)
		return
	}
	dc.SetColor(appleColor)
	dc.DrawCircle(float64(snap.Apple.X)+unit/2, float64(snap.Apple.Y)+unit/2, unit/2)
	dc.Fill()
}

func (r *Renderer) drawSnake(dc *gg.Context, snap structs.Snapshot) {
	unit := float64(snap.UnitSize)
	for i, pos := range snap.Segments {
		if i == 0 {
			if img, found := r.images.Get("head"); found {
				// 以图片中心为轴按方向旋转蛇头
				b := img.Bounds()
				cx := pos.X + b.Dx()/2
				cy := pos.Y + b.Dy()/2
				dc.DrawImageAnchored(rotateHead(img, snap.Direction), cx, cy, 0.5, 0.5)
				continue
			}
			dc.SetColor(headColor)
		} else {
			if img, found := r.images.Get(snap.Body); found {
				dc.DrawImage(img, pos.X, pos.Y)
				continue
			}
			dc.SetColor(bodyColor)
		}
		dc.DrawRectangle(float64(pos.X), float64(pos.Y), unit, unit)
		dc.Fill()
	}
}

// rotateHead 蛇头图片默认朝右
func rotateHead(img image.Image, d structs.Direction) image.Image {
	switch d {
	case structs.Up:
		return imaging.Rotate90(img)
	case structs.Down:
		return imaging.Rotate270(img)
	case structs.Left:
		return imaging.Rotate180(img)
	default:
		return img
	}
}

func (r *Renderer) drawScore(dc *gg.Context, snap structs.Snapshot, text string) {
	dc.SetFontFace(r.face(scoreFontSize))
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, float64(snap.Width)/2, scoreFontSize, 0.5, 0)
}

// drawGameOver 游戏结束画面
func (r *Renderer) drawGameOver(dc *gg.Context, snap structs.Snapshot) {
	r.drawScore(dc, snap, fmt.Sprintf("分数: %d", snap.Score))

	dc.SetFontFace(r.face(gameOverFontSize))
	dc.SetColor(appleColor)
	dc.DrawStringAnchored("GAME OVER", float64(snap.Width)/2, float64(snap.Height)/2, 0.5, 0)
}

func (r *Renderer) face(points float64) font.Face {
	r.faceMu.Lock()
	defer r.faceMu.Unlock()

	if f, ok := r.faces[points]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if r.fontPath != "" {
		loaded, err := gg.LoadFontFace(r.fontPath, points)
		if err != nil {
			r.fontWarn.Do(func() {
				log.WithError(err).WithField("font", r.fontPath).Warn("falling back to built-in font")
			})
		} else {
			f = loaded
		}
	}
	r.faces[points] = f
	return f
}
