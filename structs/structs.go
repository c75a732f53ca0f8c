package structs

import "fmt"

// Position 描述游戏画面上的一个坐标位置（像素，按单元格对齐）。
type Position struct {
	X int `json:"x"` // X坐标
	Y int `json:"y"` // Y坐标
}

// Direction 蛇的移动方向
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Opposite 返回相反的方向
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// ParseDirection 将 "up", "down", "left", "right" 转换为方向
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return Up, true
	case "down":
		return Down, true
	case "left":
		return Left, true
	case "right":
		return Right, true
	}
	return Right, false
}

// MarshalText 让方向在JSON中以字符串出现
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText 解析JSON中的方向字符串
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, ok := ParseDirection(string(text))
	if !ok {
		return fmt.Errorf("invalid direction %q", text)
	}
	*d = parsed
	return nil
}

// Snapshot 描述某一帧的完整游戏状态，供渲染和推送使用。
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Tick      uint64     `json:"tick"`
	Segments  []Position `json:"segments"`  // 蛇身，下标0为蛇头
	Apple     Position   `json:"apple"`     // 食物位置
	Body      string     `json:"body"`      // 蛇身图片的key，如 "body2"
	Direction Direction  `json:"direction"` // 蛇头朝向
	Score     int        `json:"score"`     // 吃到的食物数量
	Alive     bool       `json:"alive"`     // 游戏是否正在运行
	Width     int        `json:"width"`     // 画面宽度
	Height    int        `json:"height"`    // 画面高度
	UnitSize  int        `json:"unit_size"` // 单元格大小
}
