package entity

import (
	"time"

	"github.com/annel0/tileworld/internal/vec"
)

// LerpRate скорость сглаживания позиции чужого игрока (доля пути в секунду)
const LerpRate = 10.0

// Peer другой игрок, известный клиенту по сообщениям сервера
type Peer struct {
	ID        int
	Name      string
	X, Y      float64
	Moving    bool
	Direction int
	Selected  string // тип выбранного предмета или "None"

	from, to vec.Vec2Float
	seen     time.Time
}

// NewPeer создаёт чужого игрока в точке (x, y)
func NewPeer(id int, name string, x, y float64, selected string) *Peer {
	pos := vec.Vec2Float{X: x, Y: y}
	return &Peer{ID: id, Name: name, X: x, Y: y, Selected: selected, from: pos, to: pos}
}

// Observe запоминает новую позицию из ping; отображаемая позиция догоняет её в Interpolate
func (p *Peer) Observe(x, y float64, now time.Time) {
	p.from = vec.Vec2Float{X: p.X, Y: p.Y}
	p.to = vec.Vec2Float{X: x, Y: y}
	p.seen = now
}

// Interpolate сдвигает отображаемую позицию к последней полученной
func (p *Peer) Interpolate(now time.Time) {
	k := now.Sub(p.seen).Seconds() * LerpRate
	if k >= 1 || p.seen.IsZero() {
		p.X, p.Y = p.to.X, p.to.Y
		return
	}
	if k < 0 {
		k = 0
	}
	p.X = p.from.X + k*(p.to.X-p.from.X)
	p.Y = p.from.Y + k*(p.to.Y-p.from.Y)
}

// Target последняя полученная позиция
func (p *Peer) Target() vec.Vec2Float {
	return p.to
}
