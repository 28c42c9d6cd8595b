package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/annel0/tileworld/internal/logging"
)

// ErrExit оператор ввёл exit
var ErrExit = errors.New("admin: exit requested")

// Console выполняет команды оператора сервера
type Console struct {
	game   GameServer
	out    io.Writer
	logger *logging.Logger
}

func NewConsole(game GameServer, out io.Writer) *Console {
	return &Console{game: game, out: out, logger: logging.GetServerLogger()}
}

// Run читает команды построчно до exit, конца ввода или отмены ctx.
// Возвращает ErrExit только по команде exit; конец ввода даёт nil, и сервер продолжает работу.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Execute(ctx, line); err != nil {
				if errors.Is(err, ErrExit) {
					return err
				}
				fmt.Fprintf(c.out, "ошибка: %v\n", err)
			}
		}
	}
}

// Execute выполняет одну команду
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "exit", "quit", "stop":
		c.logger.Info("🛑 Остановка по команде консоли")
		return ErrExit
	case "save":
		if err := c.game.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "мир сохранён")
	case "load":
		if err := c.game.Load(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "мир загружен")
	case "status":
		stats := c.game.Stats()
		fmt.Fprintf(c.out, "игроков онлайн: %v из %v, соединений: %v, изменённых клеток: %v, seed: %v\n",
			stats["players_online"], stats["players_total"], stats["connections"], stats["changes"], stats["seed"])
	case "players":
		players := c.game.Players()
		if len(players) == 0 {
			fmt.Fprintln(c.out, "игроков нет")
		}
		for _, p := range players {
			state := "offline"
			if p.Online {
				state = "online"
			}
			fmt.Fprintf(c.out, "%d %s (%.1f, %.1f) %s\n", p.ID, p.Name, p.X, p.Y, state)
		}
	case "loggers":
		lm := logging.GetLoggerManager()
		for _, name := range lm.ListComponents() {
			console, file := lm.Levels(name)
			fmt.Fprintf(c.out, "%s console=%s file=%s\n", name, console, file)
		}
	case "loglevel":
		if len(fields) != 3 {
			return fmt.Errorf("использование: loglevel <компонент> <уровень>")
		}
		level, err := logging.ParseLevel(fields[2])
		if err != nil {
			return err
		}
		lm := logging.GetLoggerManager()
		_, file := lm.Levels(fields[1])
		lm.SetLogLevel(fields[1], level, file)
		c.logger.Info("🔧 Порог консоли %s: %s", fields[1], level)
		fmt.Fprintf(c.out, "%s console=%s file=%s\n", fields[1], level, file)
	case "help":
		fmt.Fprintln(c.out, "команды: save, load, status, players, loggers, loglevel <компонент> <уровень>, exit")
	default:
		return fmt.Errorf("неизвестная команда %q", cmd)
	}
	return nil
}
