// Package tui plays a session in the terminal.
package tui

import (
	"context"
	"fmt"

	"github.com/hoshinonyaruko/snake-arcade/input"
	"github.com/hoshinonyaruko/snake-arcade/session"
	"github.com/hoshinonyaruko/snake-arcade/structs"
	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultColor = termbox.ColorDefault
	bgColor      = termbox.ColorDefault
	headColor    = termbox.ColorGreen
	bodyColor    = termbox.ColorGreen | termbox.AttrBold
	appleColor   = termbox.ColorRed

	// 每个单元格占两列，画出来接近正方形
	cellWidth = 2
)

// Run draws the runner's game in the terminal and feeds key presses to it
// until ctx is done or the player quits with q, Esc or Ctrl-C.
func Run(ctx context.Context, runner *session.Runner) error {
	if err := termbox.Init(); err != nil {
		return errors.Wrap(err, "init terminal")
	}
	defer termbox.Close()
	termbox.SetInputMode(termbox.InputEsc)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan termbox.Event)
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer termbox.Interrupt()

	go func() {
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("session ended")
		}
	}()

	updates, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	if err := draw(runner.Snapshot()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if err := draw(snap); err != nil {
				return err
			}
		case ev := <-events:
			switch ev.Type {
			case termbox.EventError:
				return errors.Wrap(ev.Err, "terminal event")
			case termbox.EventResize:
				if err := draw(runner.Snapshot()); err != nil {
					return err
				}
			case termbox.EventKey:
				if quits(ev) {
					return nil
				}
				if cmd, ok := input.Parse(keyName(ev)); ok {
					runner.Input(cmd)
				}
			}
		}
	}
}

func quits(ev termbox.Event) bool {
	return ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q'
}

// keyName 把 termbox 按键转换为 input.Parse 认识的名称
func keyName(ev termbox.Event) string {
	switch ev.Key {
	case termbox.KeyArrowUp:
		return "up"
	case termbox.KeyArrowDown:
		return "down"
	case termbox.KeyArrowLeft:
		return "left"
	case termbox.KeyArrowRight:
		return "right"
	}
	if ev.Ch != 0 {
		return string(ev.Ch)
	}
	return ""
}

// board 棋盘在终端中的位置
type board struct {
	left, top     int
	columns, rows int
}

func layout(snap structs.Snapshot, termWidth, termHeight int) board {
	columns := snap.Width / snap.UnitSize
	rows := (snap.Height + snap.UnitSize - 1) / snap.UnitSize
	return board{
		left:    (termWidth - columns*cellWidth) / 2,
		top:     (termHeight-rows)/2 + 1,
		columns: columns,
		rows:    rows,
	}
}

// cell 把像素坐标转换为终端坐标
func (b board) cell(p structs.Position, unit int) (int, int, bool) {
	cx, cy := p.X/unit, p.Y/unit
	if p.X < 0 || p.Y < 0 || cx >= b.columns || cy >= b.rows {
		return 0, 0, false
	}
	return b.left + cx*cellWidth, b.top + cy, true
}

// centered 返回文字居中时的起始列，按显示宽度计算（中文占两列）
func centered(text string, width int) int {
	return (width - runewidth.StringWidth(text)) / 2
}

func draw(snap structs.Snapshot) error {
	termbox.Clear(defaultColor, bgColor)
	w, h := termbox.Size()
	b := layout(snap, w, h)

	if snap.Alive {
		renderBoard(b)
		fill(b, snap.Apple, snap.UnitSize, '●', appleColor)
		for i := len(snap.Segments) - 1; i >= 0; i-- {
			if i == 0 {
				fill(b, snap.Segments[i], snap.UnitSize, headRune(snap.Direction), headColor)
			} else {
				fill(b, snap.Segments[i], snap.UnitSize, '█', bodyColor)
			}
		}
		text := fmt.Sprintf("SCORE: %d", snap.Score)
		renderText(centered(text, w), b.top-2, text, termbox.ColorWhite)
	} else {
		text := fmt.Sprintf("分数: %d", snap.Score)
		renderText(centered(text, w), h/2-2, text, termbox.ColorWhite)
		renderText(centered("GAME OVER", w), h/2, "GAME OVER", termbox.ColorRed|termbox.AttrBold)
		hint := "r 重新开始  q 退出"
		renderText(centered(hint, w), h/2+2, hint, defaultColor)
	}
	return termbox.Flush()
}

func headRune(d structs.Direction) rune {
	switch d {
	case structs.Up:
		return '▲'
	case structs.Down:
		return '▼'
	case structs.Left:
		return '◀'
	default:
		return '▶'
	}
}

func fill(b board, p structs.Position, unit int, ch rune, fg termbox.Attribute) {
	x, y, ok := b.cell(p, unit)
	if !ok {
		return
	}
	for i := 0; i < cellWidth; i++ {
		termbox.SetCell(x+i, y, ch, fg, bgColor)
	}
}

func renderText(x, y int, text string, fg termbox.Attribute) {
	for _, r := range text {
		termbox.SetCell(x, y, r, fg, bgColor)
		x += runewidth.RuneWidth(r)
	}
}

func renderBoard(b board) {
	right := b.left + b.columns*cellWidth
	bottom := b.top + b.rows
	for y := b.top; y < bottom; y++ {
		termbox.SetCell(b.left-1, y, '│', defaultColor, bgColor)
		termbox.SetCell(right, y, '│', defaultColor, bgColor)
	}
	for x := b.left; x < right; x++ {
		termbox.SetCell(x, b.top-1, '─', defaultColor, bgColor)
		termbox.SetCell(x, bottom, '─', defaultColor, bgColor)
	}
	termbox.SetCell(b.left-1, b.top-1, '┌', defaultColor, bgColor)
	termbox.SetCell(b.left-1, bottom, '└', defaultColor, bgColor)
	termbox.SetCell(right, b.top-1, '┐', defaultColor, bgColor)
	termbox.SetCell(right, bottom, '┘', defaultColor, bgColor)
}
