package sandbox

import (
	"math"

	"github.com/wippyai/wasm-frame-host/wire"
)

// World size in engine units.
const (
	WorldWidth  = 960
	WorldHeight = 540
)

const (
	playerSize    = 10
	playerStep    = 1.5
	playerSprint  = 10
	shootPeriod   = 0.1
	bulletSize    = 4
	bulletSpeed   = 300
	enemySize     = 10
	spawnPeriod   = 0.25
	spawnDistance = 100
	spawnMargin   = 5
	spawnAttempts = 16
	wallThickness = 4
)

type rgb struct{ r, g, b float32 }

var (
	playerColor = rgb{1, 1, 1}
	wallColor   = rgb{1, 0.1, 0.1}
	enemyColor  = rgb{0.1, 1, 0.1}
)

type box struct{ left, right, top, bottom float32 }

type body struct {
	pos  vec2
	w, h float32
}

func (b body) bounds() box {
	return box{
		left:   b.pos.x - b.w/2,
		right:  b.pos.x + b.w/2,
		top:    b.pos.y + b.h/2,
		bottom: b.pos.y - b.h/2,
	}
}

type side uint8

const (
	sideLeft side = iota
	sideRight
	sideTop
	sideBottom
)

// overlap reports the side of a along which it overlaps b the least, and
// how far a must move to clear it.
func overlap(a, b box) (side, float32, bool) {
	l := a.left - b.right
	r := b.left - a.right
	t := b.bottom - a.top
	bt := a.bottom - b.top
	if l >= 0 || r >= 0 || t >= 0 || bt >= 0 {
		return 0, 0, false
	}
	switch max(l, r, t, bt) {
	case l:
		return sideLeft, -l, true
	case r:
		return sideRight, -r, true
	case t:
		return sideTop, -t, true
	default:
		return sideBottom, -bt, true
	}
}

type cooldown struct{ left, period float32 }

func newCooldown(period float32) cooldown { return cooldown{left: period, period: period} }

func (c *cooldown) tick(delta float32) { c.left -= delta }
func (c *cooldown) ready() bool        { return c.left < 0 }
func (c *cooldown) restart()           { c.left = c.period }

type bullet struct {
	body
	vel  vec2
	life float32
}

type enemy struct {
	body
	life float32
}

// Arena is the game state. It is not safe for concurrent use.
type Arena struct {
	random  func() float32
	player  body
	walls   []body
	bullets []bullet
	enemies []enemy
	shoot   cooldown
	spawn   cooldown
	width   float32
	height  float32
	frames  uint64
}

// NewArena creates an arena of the given size with the player in the
// centre and one enemy near the lower left corner. random must return
// values in [0, 1).
func NewArena(width, height float32, random func() float32) *Arena {
	return &Arena{
		random: random,
		player: body{pos: vec2{width / 2, height / 2}, w: playerSize, h: playerSize},
		walls: []body{
			{pos: vec2{wallThickness / 2, height / 2}, w: wallThickness, h: height},
			{pos: vec2{width - wallThickness/2, height / 2}, w: wallThickness, h: height},
			{pos: vec2{width / 2, wallThickness / 2}, w: width, h: wallThickness},
			{pos: vec2{width / 2, height - wallThickness/2}, w: width, h: wallThickness},
		},
		enemies: []enemy{{body: body{pos: vec2{100, 100}, w: enemySize, h: enemySize}}},
		shoot:   newCooldown(shootPeriod),
		spawn:   newCooldown(spawnPeriod),
		width:   width,
		height:  height,
	}
}

// Step advances the game by delta seconds. It does nothing and returns
// false once the quit flag is set.
func (a *Arena) Step(in wire.InputState, delta float32) bool {
	if in.Has(wire.Quit) {
		return false
	}
	a.frames++

	a.spawn.tick(delta)
	if a.spawn.ready() {
		a.spawnEnemy()
		a.spawn.restart()
	}
	a.moveBullets(delta)
	a.chase(delta)
	a.movePlayer(in, delta)
	a.collideWalls()
	a.killEnemies()
	return true
}

func (a *Arena) spawnEnemy() {
	for n := 0; n < spawnAttempts; n++ {
		pos := vec2{
			x: spawnMargin + a.random()*(a.width-2*spawnMargin),
			y: spawnMargin + a.random()*(a.height-2*spawnMargin),
		}
		if pos.sub(a.player.pos).length() >= spawnDistance {
			a.enemies = append(a.enemies, enemy{body: body{pos: pos, w: enemySize, h: enemySize}})
			return
		}
	}
}

func (a *Arena) moveBullets(delta float32) {
	kept := a.bullets[:0]
	for _, b := range a.bullets {
		b.life += delta
		b.pos = b.pos.add(b.vel.scale(delta))
		if b.pos.x < 0 || b.pos.x > a.width || b.pos.y < 0 || b.pos.y > a.height {
			continue
		}
		kept = append(kept, b)
	}
	a.bullets = kept
}

func (a *Arena) chase(delta float32) {
	for i := range a.enemies {
		e := &a.enemies[i]
		e.life += delta
		e.pos = e.pos.add(a.player.pos.sub(e.pos).normalize())
		e.w = enemySize + pulse(0, 5, e.life*10)
		e.h = enemySize + pulse(0, 5, e.life*7.5)
	}
}

func (a *Arena) movePlayer(in wire.InputState, delta float32) {
	step := float32(playerStep)
	if in.Has(wire.Action) {
		step = playerSprint
	}
	if in.Has(wire.Up) {
		a.player.pos.y += step
	}
	if in.Has(wire.Down) {
		a.player.pos.y -= step
	}
	if in.Has(wire.Left) {
		a.player.pos.x -= step
	}
	if in.Has(wire.Right) {
		a.player.pos.x += step
	}

	a.shoot.tick(delta)
	if !a.shoot.ready() {
		return
	}
	a.shoot.restart()
	var dir vec2
	if in.Has(wire.ShootRight) {
		dir.x++
	}
	if in.Has(wire.ShootLeft) {
		dir.x--
	}
	if in.Has(wire.ShootUp) {
		dir.y++
	}
	if in.Has(wire.ShootDown) {
		dir.y--
	}
	if dir.length() > 0.5 {
		a.bullets = append(a.bullets, bullet{
			body: body{pos: a.player.pos, w: bulletSize, h: bulletSize},
			vel:  dir.scale(bulletSpeed),
		})
	}
}

func (a *Arena) collideWalls() {
	for _, w := range a.walls {
		s, amount, ok := overlap(a.player.bounds(), w.bounds())
		if !ok {
			continue
		}
		switch s {
		case sideLeft:
			a.player.pos.x += amount
		case sideRight:
			a.player.pos.x -= amount
		case sideTop:
			a.player.pos.y -= amount
		case sideBottom:
			a.player.pos.y += amount
		}
	}
}

func (a *Arena) killEnemies() {
	kept := a.enemies[:0]
	for _, e := range a.enemies {
		hit := false
		for _, b := range a.bullets {
			if _, _, ok := overlap(b.bounds(), e.bounds()); ok {
				hit = true
				break
			}
		}
		if !hit {
			kept = append(kept, e)
		}
	}
	a.enemies = kept
}

// Draw emits the scene in drawing order with unit colour channels.
func (a *Arena) Draw(fn func(wire.DrawCommand)) {
	emit := func(b body, c rgb) {
		bb := b.bounds()
		fn(wire.DrawCommand{
			Left:   float64(bb.left),
			Top:    float64(bb.top),
			Right:  float64(bb.right),
			Bottom: float64(bb.bottom),
			Red:    float64(c.r),
			Green:  float64(c.g),
			Blue:   float64(c.b),
		})
	}
	emit(a.player, playerColor)
	for _, w := range a.walls {
		emit(w, wallColor)
	}
	for _, b := range a.bullets {
		emit(b.body, rgb{pulse(0.7, 1, b.life*5), 0.7, 0.7})
	}
	for _, e := range a.enemies {
		emit(e.body, enemyColor)
	}
}

// Frame returns the scene as a frame in the given channel convention.
func (a *Arena) Frame(conv wire.Convention) wire.Frame {
	f := wire.Frame{Convention: conv, Commands: make([]wire.DrawCommand, 0, a.Count())}
	a.Draw(func(c wire.DrawCommand) {
		if conv == wire.ChannelsByte {
			c.Red = toByte(c.Red)
			c.Green = toByte(c.Green)
			c.Blue = toByte(c.Blue)
		}
		f.Commands = append(f.Commands, c)
	})
	return f
}

func toByte(v float64) float64 {
	return math.Floor(v * 255)
}

// Count returns the number of rectangles Draw emits.
func (a *Arena) Count() int {
	return 1 + len(a.walls) + len(a.bullets) + len(a.enemies)
}

// Player returns the player's position.
func (a *Arena) Player() (x, y float32) {
	return a.player.pos.x, a.player.pos.y
}

// Enemies returns the number of live enemies.
func (a *Arena) Enemies() int { return len(a.enemies) }

// Bullets returns the number of bullets in flight.
func (a *Arena) Bullets() int { return len(a.bullets) }

// Frames returns how many steps have run.
func (a *Arena) Frames() uint64 { return a.frames }
