// bot подключает к серверу несколько игроков-ботов для нагрузочной проверки.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/tileworld/internal/bot"
	"github.com/annel0/tileworld/internal/game"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/network"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:7777", "адрес игрового сервера")
		transport = flag.String("transport", "tcp", "транспорт: tcp или kcp")
		prefix    = flag.String("name", "bot", "префикс имён ботов")
		count     = flag.Int("count", 1, "количество ботов")
		interval  = flag.Duration("interval", 50*time.Millisecond, "период шага бота")
		duration  = flag.Duration("duration", 0, "время работы, 0 - до сигнала")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "сид маршрутов")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *count; i++ {
		name := fmt.Sprintf("%s%d", *prefix, i)
		botSeed := *seed + int64(i)
		g.Go(func() error {
			cfg := network.DefaultClientConfig(*addr)
			cfg.Transport = *transport
			s, err := game.Join(gctx, game.DefaultConfig(), network.NewClient(cfg), name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			defer s.Leave()
			logging.Info("🤖 %s подключён, id=%d", name, s.ID())
			return bot.New(bot.DefaultConfig(), s, botSeed).Run(gctx, *interval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}
