// 关于蛇的状态更新
package snake

import (
	"math/rand"

	"github.com/hoshinonyaruko/snake-arcade/structs"
)

// InitialBodyParts 蛇的初始长度
const InitialBodyParts = 6

// Outcome 描述一次 Advance 中发生的事件
type Outcome struct {
	AteApple bool
	GameOver bool
}

// Game 保存一局游戏的全部状态。它不是并发安全的，
// 由调用方（session.Runner）串行驱动。
type Game struct {
	grid         Grid
	initialParts int
	rng          *rand.Rand

	segments  []structs.Position
	bodyParts int
	direction structs.Direction
	pending   *structs.Direction
	apple     structs.Position
	score     int
	live      bool
}

// NewGame 创建一局新游戏。initialParts 小于 1 时使用 InitialBodyParts。
func NewGame(grid Grid, initialParts int, rng *rand.Rand) *Game {
	if initialParts < 1 {
		initialParts = InitialBodyParts
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	g := &Game{
		grid:         grid,
		initialParts: initialParts,
		rng:          rng,
	}
	g.Restart()
	return g
}

// Restart 重置游戏状态，与开局时完全一致
func (g *Game) Restart() {
	g.bodyParts = g.initialParts
	if limit := g.grid.Cells(); g.bodyParts > limit {
		g.bodyParts = limit
	}
	g.score = 0
	g.direction = structs.Right
	g.pending = nil

	// 蛇头从第3列第3行开始，初始向右，身体在左边
	head := structs.Position{X: 2 * g.grid.UnitSize, Y: 2 * g.grid.UnitSize}
	g.segments = make([]structs.Position, g.bodyParts, g.bodyParts+1)
	for i := range g.segments {
		g.segments[i] = structs.Position{X: head.X - i*g.grid.UnitSize, Y: head.Y}
	}

	g.NewApple()
	g.live = true
}

// NewApple 在画面内随机生成食物，不检查是否与蛇身重叠
func (g *Game) NewApple() {
	g.apple = structs.Position{
		X: g.rng.Intn(g.grid.Columns()) * g.grid.UnitSize,
		Y: g.rng.Intn(g.grid.Rows()) * g.grid.UnitSize,
	}
}

// SetDirection 缓存下一次 Advance 使用的方向。
// 与当前方向相反的输入会被忽略。
func (g *Game) SetDirection(d structs.Direction) bool {
	if !g.live || d == g.direction.Opposite() {
		return false
	}
	g.pending = &d
	return true
}

// Grow 直接增加蛇的长度，新的一节在下一次移动时才有位置
func (g *Game) Grow() {
	if g.bodyParts < g.grid.Cells() {
		g.bodyParts++
	}
}

// Advance 推进一个时间片：移动、吃食物、碰撞检测
func (g *Game) Advance() Outcome {
	var out Outcome
	if !g.live {
		return out
	}

	if g.pending != nil {
		g.direction = *g.pending
		g.pending = nil
	}

	// 身体跟随前一节移动，保留旧的尾巴以便吃到食物时立即变长
	n := len(g.segments)
	if n > g.bodyParts {
		n = g.bodyParts
	}
	moved := make([]structs.Position, n+1, g.bodyParts+2)
	moved[0] = g.grid.Step(g.segments[0], g.direction)
	copy(moved[1:], g.segments[:n])

	if moved[0] == g.apple {
		if g.bodyParts < g.grid.Cells() {
			g.bodyParts++
		}
		g.score++
		g.NewApple()
		out.AteApple = true
	}

	if len(moved) > g.bodyParts {
		moved = moved[:g.bodyParts]
	}
	g.segments = moved

	if g.collided() {
		g.live = false
		out.GameOver = true
	}
	return out
}

// collided 检测蛇头是否撞到自己或边界
func (g *Game) collided() bool {
	head := g.segments[0]
	for _, part := range g.segments[1:] {
		if part == head {
			return true
		}
	}
	return !g.grid.Contains(head)
}

// Segments 返回蛇身的拷贝，下标0为蛇头
func (g *Game) Segments() []structs.Position {
	out := make([]structs.Position, len(g.segments))
	copy(out, g.segments)
	return out
}

func (g *Game) Head() structs.Position { return g.segments[0] }

// BodyParts 蛇的长度
func (g *Game) BodyParts() int { return g.bodyParts }

func (g *Game) Direction() structs.Direction { return g.direction }

func (g *Game) Apple() structs.Position { return g.apple }

func (g *Game) Score() int { return g.score }

func (g *Game) Alive() bool { return g.live }

func (g *Game) Grid() Grid { return g.grid }

// Snapshot 导出当前状态供渲染
func (g *Game) Snapshot() structs.Snapshot {
	return structs.Snapshot{
		Segments:  g.Segments(),
		Apple:     g.apple,
		Direction: g.direction,
		Score:     g.score,
		Alive:     g.live,
		Width:     g.grid.ScreenWidth,
		Height:    g.grid.ScreenHeight,
		UnitSize:  g.grid.UnitSize,
	}
}
