// Package memimg keeps the game's image assets in memory and reloads them
// when the files on disk change.
package memimg

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// Store 以文件名（不含扩展名）为key缓存图像
type Store struct {
	mu       sync.RWMutex
	images   map[string]image.Image
	unitSize int
}

// New 创建一个空的图像缓存。unitSize 大于0时，载入的图像按宽度缩放到一个单元格。
func New(unitSize int) *Store {
	return &Store{
		images:   make(map[string]image.Image),
		unitSize: unitSize,
	}
}

// Key 返回文件对应的缓存key，如 "resources/body2.jpg" -> "body2"
func Key(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadDir 载入目录下所有图像。单个文件解码失败只记录日志，不影响其它文件。
func (s *Store) LoadDir(directory string) error {
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isImage(path) {
			return nil
		}
		if err := s.LoadFile(path); err != nil {
			log.WithError(err).WithField("file", path).Warn("skipping image asset")
		}
		return nil
	})
	return errors.Wrapf(err, "load images from %s", directory)
}

// LoadFile 载入单个图像文件
func (s *Store) LoadFile(path string) error {
	img, err := s.loadImage(path)
	if err != nil {
		return err
	}
	s.Put(Key(path), img)
	return nil
}

func (s *Store) loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if s.unitSize > 0 && img.Bounds().Dx() != s.unitSize {
		// 只约束宽度，保留原图比例（蛇头图片比单元格高）
		img = imaging.Resize(img, s.unitSize, 0, imaging.Lanczos)
	}
	return img, nil
}

// Put 放入或替换一个图像
func (s *Store) Put(key string, img image.Image) {
	s.mu.Lock()
	s.images[key] = img
	s.mu.Unlock()
}

// Get 从内存中获取图像
func (s *Store) Get(key string) (image.Image, bool) {
	s.mu.RLock()
	img, exists := s.images[key]
	s.mu.RUnlock()
	return img, exists
}

func (s *Store) remove(key string) {
	s.mu.Lock()
	delete(s.images, key)
	s.mu.Unlock()
}

// Len 缓存中图像的数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Watch 监听目录，文件写入或新建时重新载入，删除时移出缓存。阻塞直到 ctx 结束。
func (s *Store) Watch(ctx context.Context, directory string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return errors.Wrapf(err, "watch %s", directory)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handle(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).WithField("dir", directory).Warn("asset watcher error")
		}
	}
}

func (s *Store) handle(event fsnotify.Event) {
	if !isImage(event.Name) {
		return
	}
	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if err := s.LoadFile(event.Name); err != nil {
			// 文件可能还没写完，等下一次 Write 事件
			log.WithError(err).WithField("file", event.Name).Debug("reload failed")
			return
		}
		log.WithField("file", event.Name).Info("reloaded image asset")
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		s.remove(Key(event.Name))
		log.WithField("file", event.Name).Info("dropped image asset")
	}
}

func isImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}
