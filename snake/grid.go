package snake

import "github.com/hoshinonyaruko/snake-arcade/structs"

// Grid 描述游戏区域。坐标以像素为单位，且都是 UnitSize 的整数倍。
type Grid struct {
	ScreenWidth  int
	ScreenHeight int
	UnitSize     int
}

// DefaultGrid 1920x1080 的画面，80 像素一格
var DefaultGrid = Grid{ScreenWidth: 1920, ScreenHeight: 1080, UnitSize: 80}

// Columns 横向单元格数量
func (g Grid) Columns() int {
	return g.ScreenWidth / g.UnitSize
}

// Rows 纵向单元格数量
func (g Grid) Rows() int {
	return g.ScreenHeight / g.UnitSize
}

// Cells 是蛇身长度的上限。画面高度不能被单元格整除时，
// 最下面那一行不完整的格子蛇头依然可以进入，所以向上取整。
func (g Grid) Cells() int {
	rows := (g.ScreenHeight + g.UnitSize - 1) / g.UnitSize
	cols := (g.ScreenWidth + g.UnitSize - 1) / g.UnitSize
	return rows * cols
}

// Contains 判断位置是否在画面之内
func (g Grid) Contains(p structs.Position) bool {
	return p.X >= 0 && p.X < g.ScreenWidth && p.Y >= 0 && p.Y < g.ScreenHeight
}

// Step 返回 p 朝 d 方向移动一格后的位置
func (g Grid) Step(p structs.Position, d structs.Direction) structs.Position {
	switch d {
	case structs.Up:
		p.Y -= g.UnitSize
	case structs.Down:
		p.Y += g.UnitSize
	case structs.Left:
		p.X -= g.UnitSize
	case structs.Right:
		p.X += g.UnitSize
	}
	return p
}
