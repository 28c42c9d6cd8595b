// Package admin отдаёт состояние игрового сервера по HTTP и обслуживает консоль оператора.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/middleware"
	"github.com/annel0/tileworld/internal/network"
)

// RootBanner ответ на GET /, по нему хостинг понимает, что сервис жив
const RootBanner = "Это чтобы он крутился на сервисе"

// GameServer часть игрового сервера, которой пользуется админка
type GameServer interface {
	Players() []network.PlayerStatus
	Stats() map[string]interface{}
	Save(ctx context.Context) error
	Load(ctx context.Context) error
}

// GenericResponse общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HTTPServer HTTP-интерфейс состояния сервера
type HTTPServer struct {
	game    GameServer
	metrics *ProcessMetrics
	router  *gin.Engine
	logger  *logging.Logger

	srv *http.Server
}

// NewHTTPServer собирает роутер. Метрики HTTP регистрируются в reg, /metrics отдаёт gatherer.
func NewHTTPServer(game GameServer, reg prometheus.Registerer, gatherer prometheus.Gatherer) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	hs := &HTTPServer{
		game:    game,
		metrics: NewProcessMetrics(),
		router:  gin.New(),
		logger:  logging.GetComponentLogger("HTTP"),
	}

	hs.router.Use(gin.Recovery())
	// otelgin раньше логгера, чтобы trace-id брался из span'а
	hs.router.Use(otelgin.Middleware("admin_api"))
	hs.router.Use(middleware.NewRequestLogger(hs.logger, "/metrics", "/health").Handler())

	promMw := middleware.NewPrometheusMiddleware("tileworld_admin", reg)
	hs.router.Use(promMw.Handler())
	if gatherer != nil {
		middleware.RegisterMetricsEndpoint(hs.router, gatherer)
	}

	hs.setupRoutes()
	hs.srv = &http.Server{
		Handler:           hs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return hs
}

func (hs *HTTPServer) setupRoutes() {
	hs.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RootBanner)
	})
	hs.router.GET("/health", hs.handleHealth)
	hs.router.GET("/players", hs.handlePlayers)

	world := hs.router.Group("/world")
	{
		world.POST("/save", hs.handleSave)
		world.POST("/load", hs.handleLoad)
	}
}

// Handler возвращает http.Handler роутера
func (hs *HTTPServer) Handler() http.Handler { return hs.router }

func (hs *HTTPServer) handleHealth(c *gin.Context) {
	data := gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"uptime": FormatUptime(hs.metrics.Uptime()),
		"memory": hs.metrics.MemoryStats(),
		"server": hs.game.Stats(),
	}
	if cpu, err := hs.metrics.CPUUsage(); err == nil {
		data["cpu_percent"] = cpu
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: data})
}

func (hs *HTTPServer) handlePlayers(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: hs.game.Players()})
}

func (hs *HTTPServer) handleSave(c *gin.Context) {
	if err := hs.game.Save(c.Request.Context()); err != nil {
		hs.logger.Error("❌ Сохранение через HTTP: %v", err)
		c.JSON(statusFor(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "мир сохранён"})
}

func (hs *HTTPServer) handleLoad(c *gin.Context) {
	if err := hs.game.Load(c.Request.Context()); err != nil {
		hs.logger.Error("❌ Загрузка через HTTP: %v", err)
		c.JSON(statusFor(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "мир загружен"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, network.ErrNoStorage):
		return http.StatusNotImplemented
	case errors.Is(err, network.ErrNothingToLoad):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Start слушает addr и блокируется до Shutdown. Штатная остановка возвращает nil.
func (hs *HTTPServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return hs.Serve(ln)
}

// Serve обслуживает уже открытый listener
func (hs *HTTPServer) Serve(ln net.Listener) error {
	hs.logger.Info("🌐 HTTP статус слушает %s", ln.Addr())

	if err := hs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает HTTP сервер, дожидаясь активных запросов
func (hs *HTTPServer) Shutdown(ctx context.Context) error {
	return hs.srv.Shutdown(ctx)
}
