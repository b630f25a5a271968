// Package api предоставляет REST API для управления конструкцией:
// создание и разрушение ячеек, инспекция нагрузок и путей опоры.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxelload/internal/auth"
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/middleware"
	"github.com/annel0/voxelload/internal/storage"
	"github.com/annel0/voxelload/internal/world"
)

// Server представляет REST API сервер движка нагрузок
type Server struct {
	router    *gin.Engine
	engine    *world.Engine
	logger    *logging.Logger
	tokens    *auth.TokenIssuer
	snapshots storage.SnapshotStore
	metrics   *ProcessMetrics
	addr      string
	http      *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr       string                // адрес для запуска сервера
	Engine     *world.Engine         // движок нагрузок
	Logger     *logging.Logger       // nil - логгер компонента server
	Registerer prometheus.Registerer // nil - глобальный регистр
	Gatherer   prometheus.Gatherer   // источник для /metrics
	Tokens     *auth.TokenIssuer     // nil - API без аутентификации
	Snapshots  storage.SnapshotStore // nil - снимки раскладки отключены
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создает новый REST API сервер
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("api: engine обязателен")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetServerLogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("voxel_api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("voxel_api", cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	s := &Server{
		router:    router,
		engine:    cfg.Engine,
		logger:    cfg.Logger,
		tokens:    cfg.Tokens,
		snapshots: cfg.Snapshots,
		metrics:   NewProcessMetrics(),
		addr:      cfg.Addr,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes настраивает маршруты REST API
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	if s.tokens != nil {
		api.Use(s.jwtMiddleware())
	}

	api.GET("/stats", s.handleStats)
	api.GET("/voxels", s.handleListVoxels)
	api.GET("/voxels/:x/:y/:z", s.handleGetVoxel)
	api.GET("/layout/digest", s.handleDigest)
	api.GET("/debug/consistency", s.handleConsistency)

	write := api.Group("/")
	write.Use(s.writeMiddleware())
	{
		write.POST("/voxels", s.handleCreateVoxel)
		write.DELETE("/voxels/:x/:y/:z", s.handleDestroyVoxel)
		write.POST("/voxels/:x/:y/:z/recompute", s.handleRecompute)
	}

	if s.snapshots != nil {
		api.GET("/layout/snapshots/:name", s.handleLoadSnapshot)
		write.POST("/layout/snapshots/:name", s.handleSaveSnapshot)
	}
}

// Handler возвращает http.Handler сервера (используется в тестах)
func (s *Server) Handler() http.Handler { return s.router }

// Start запускает HTTP сервер и блокируется до остановки контекста
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 REST API запущен на %s", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("🛑 Остановка REST API")
	return s.http.Shutdown(shutdownCtx)
}
