// Package input maps key presses to game commands.
package input

import (
	"strings"

	"github.com/hoshinonyaruko/snake-arcade/structs"
)

// Action 按键对应的操作
type Action int

const (
	Turn    Action = iota // 改变方向
	Restart               // 重新开始
	Grow                  // 调试用：直接变长
)

// Command 一次按键解析出的命令
type Command struct {
	Action    Action
	Direction structs.Direction // 仅 Turn 使用
}

var keys = map[string]Command{
	"up":         {Action: Turn, Direction: structs.Up},
	"arrowup":    {Action: Turn, Direction: structs.Up},
	"w":          {Action: Turn, Direction: structs.Up},
	"down":       {Action: Turn, Direction: structs.Down},
	"arrowdown":  {Action: Turn, Direction: structs.Down},
	"s":          {Action: Turn, Direction: structs.Down},
	"left":       {Action: Turn, Direction: structs.Left},
	"arrowleft":  {Action: Turn, Direction: structs.Left},
	"a":          {Action: Turn, Direction: structs.Left},
	"right":      {Action: Turn, Direction: structs.Right},
	"arrowright": {Action: Turn, Direction: structs.Right},
	"d":          {Action: Turn, Direction: structs.Right},
	"r":          {Action: Restart},
	"b":          {Action: Grow},
}

// Parse 解析按键名称（不区分大小写），如 "ArrowUp"、"w"、"r"
func Parse(key string) (Command, bool) {
	cmd, ok := keys[strings.ToLower(strings.TrimSpace(key))]
	return cmd, ok
}
