package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/tileworld/internal/admin"
	"github.com/annel0/tileworld/internal/config"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/network"
	"github.com/annel0/tileworld/internal/observability"
	"github.com/annel0/tileworld/internal/storage"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию GAME_CONFIG)")
	noConsole := flag.Bool("no-console", false, "не читать команды со stdin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	consoleLevel, err := logging.ParseLevel(cfg.Logging.ConsoleLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.Logging.FileLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := logging.InitDefaultLogger(cfg.Logging.Dir, consoleLevel, fileLevel); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	components, err := cfg.Logging.ComponentLevels()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	for name, lv := range components {
		logging.GetLoggerManager().SetLogLevel(name, lv[0], lv[1])
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg, !*noConsole); err != nil {
		logging.Error("❌ Сервер остановлен с ошибкой: %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config, withConsole bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := cfg.World.GetSeed()
	logging.Info("🎮 Запуск сервера мира: seed=%d, транспорт=%s, игра=%s, http=%s",
		seed, cfg.Server.Transport, cfg.Server.Addr(), cfg.Server.HTTPAddr())

	shutdownTelemetry := observability.Shutdown(observability.Noop)
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, seed)
		if err != nil {
			logging.Warn("⚠️ Телеметрия не запущена: %v", err)
		} else {
			shutdownTelemetry = shutdown
		}
	}
	defer shutdownTelemetry(context.Background())

	if cfg.World.BlocksDir != "" {
		if err := block.LoadJSONBlocks(cfg.World.BlocksDir); err != nil {
			return err
		}
		logging.Info("🧱 Загружены описания блоков из %s", cfg.World.BlocksDir)
	}

	// === ХРАНИЛИЩА ===
	store, err := storage.NewWorldStorage(cfg.World.GetDataPath())
	if err != nil {
		return err
	}
	defer store.Close()

	repo, err := storage.OpenPlayerRepo(ctx, cfg.Players, store)
	if err != nil {
		return err
	}
	defer repo.Close()

	// === МЕТРИКИ И СОБЫТИЯ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return err
	}
	if err := eventbus.RegisterMetrics(reg, bus); err != nil {
		return err
	}

	// === ИГРОВОЙ СЕРВЕР ===
	srv := network.NewServer(network.ServerConfig{
		Transport:        cfg.Server.Transport,
		Addr:             cfg.Server.Addr(),
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		MaxMessageSize:   cfg.Server.MaxMessageSize,
		TickInterval:     cfg.Server.TickInterval,
		AutosaveInterval: cfg.Server.AutosaveInterval,
	}, world.NewWorldManager(seed))
	srv.SetMetrics(network.NewMetrics(reg))
	srv.SetWorldStorage(store)
	srv.SetPlayerRepo(repo)
	srv.SetEventBus(bus)

	switch err := srv.Load(ctx); {
	case err == nil:
	case errors.Is(err, network.ErrNothingToLoad):
		logging.Info("🌱 Сохранения нет, создаётся новый мир")
	default:
		return err
	}

	if err := srv.Listen(); err != nil {
		return err
	}
	httpSrv := admin.NewHTTPServer(srv, reg, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		return httpSrv.Start(cfg.Server.HTTPAddr())
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Close()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if withConsole {
		g.Go(func() error {
			err := admin.NewConsole(srv, os.Stdout).Run(gctx, os.Stdin)
			if errors.Is(err, admin.ErrExit) {
				stop()
				return nil
			}
			return err
		})
	}

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	serveErr := g.Wait()

	// Итоговое сохранение выполняется даже после ошибки одного из сервисов
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Save(saveCtx); err != nil {
		logging.Error("❌ Итоговое сохранение: %v", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}

func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, err
	}
	logging.Info("📨 События публикуются в NATS %s (stream=%s)", cfg.URL, cfg.Stream)
	return bus, nil
}
