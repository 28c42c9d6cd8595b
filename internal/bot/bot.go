// Package bot управляет игроком без человека: бродит по миру, копает и ставит блоки.
// Используется для нагрузочной проверки сервера.
package bot

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/tileworld/internal/game"
	"github.com/annel0/tileworld/internal/logging"
)

// Action что бот сделал за шаг
type Action int

const (
	Idle Action = iota
	Walked
	Blocked
	Mined
	Placed
)

func (a Action) String() string {
	switch a {
	case Idle:
		return "idle"
	case Walked:
		return "walked"
	case Blocked:
		return "blocked"
	case Mined:
		return "mined"
	case Placed:
		return "placed"
	}
	return "unknown"
}

type Config struct {
	Speed     float64 // клеток за шаг при максимальном шуме
	Damage    float64 // урон по блоку за шаг копания
	WorkEvery int     // каждый N-й шаг бот копает или строит
}

func DefaultConfig() Config {
	return Config{Speed: 0.25, Damage: 60, WorkEvery: 8}
}

// Bot ведёт одну игровую сессию. Направление ходьбы задаётся одномерным
// шумом Перлина, поэтому бот то уходит далеко, то топчется на месте.
type Bot struct {
	cfg     Config
	session *game.Session
	noise   *perlin.Perlin
	t       float64
	steps   int
	logger  *logging.Logger
}

func New(cfg Config, s *game.Session, seed int64) *Bot {
	return &Bot{
		cfg:     cfg,
		session: s,
		noise:   perlin.NewPerlin(2, 2, 3, seed),
		logger:  logging.GetClientLogger(),
	}
}

// Direction значение шума в [-1, 1] для момента t
func (b *Bot) Direction(t float64) float64 {
	return math.Max(-1, math.Min(1, b.noise.Noise1D(t)*2))
}

// Step делает один шаг: ходьба, а на каждом WorkEvery-м шаге работа с клеткой
// перед ботом. Отказы мира (занято, пусто, нечего ставить) не считаются ошибкой.
func (b *Bot) Step(now time.Time) (Action, error) {
	b.steps++
	b.t += 0.05
	defer b.session.Update(now)

	if b.cfg.WorkEvery > 0 && b.steps%b.cfg.WorkEvery == 0 {
		return b.work()
	}

	dx := b.Direction(b.t) * b.cfg.Speed
	if math.Abs(dx) < 1e-3 {
		return Idle, nil
	}
	if b.session.Move(dx, 0) {
		return Walked, nil
	}
	// упёрлись: пробуем подняться на клетку
	if b.session.Move(dx, -1) {
		return Walked, nil
	}
	return Blocked, nil
}

func (b *Bot) work() (Action, error) {
	c := b.session.Player.Cell()
	dir := b.session.Player.Direction
	if dir == 0 {
		dir = 1
	}
	x, y := c.X+dir*2, c.Y

	broken, err := b.session.Mine(x, y, b.cfg.Damage)
	switch {
	case err == nil:
		if broken {
			return Mined, nil
		}
		return Idle, nil
	case errors.Is(err, game.ErrEmpty):
	case errors.Is(err, game.ErrUnbreakable):
		return Blocked, nil
	default:
		return Idle, err
	}

	// клетка пуста: ставим то, что выбрано
	err = b.session.Place(x, y)
	switch {
	case err == nil:
		return Placed, nil
	case errors.Is(err, game.ErrNoItem), errors.Is(err, game.ErrNotPlaceable),
		errors.Is(err, game.ErrAvatar), errors.Is(err, game.ErrOccupied):
		return Idle, nil
	}
	return Idle, err
}

// Steps сколько шагов сделано
func (b *Bot) Steps() int { return b.steps }

// Run шагает с периодом interval до отмены ctx или разрыва соединения
func (b *Bot) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	counts := make(map[Action]int)
	defer func() {
		b.logger.Info("🤖 Бот %s остановлен: шагов %d, %v", b.session.Player.Name, b.steps, counts)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			action, err := b.Step(now)
			if err != nil {
				return err
			}
			counts[action]++
			if client := b.session.Client(); client != nil && client.Err() != nil {
				return client.Err()
			}
		}
	}
}
