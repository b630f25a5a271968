package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxelload/internal/api"
	"github.com/annel0/voxelload/internal/auth"
	"github.com/annel0/voxelload/internal/config"
	"github.com/annel0/voxelload/internal/effects"
	"github.com/annel0/voxelload/internal/eventbus"
	"github.com/annel0/voxelload/internal/logging"
	"github.com/annel0/voxelload/internal/observability"
	"github.com/annel0/voxelload/internal/physics"
	"github.com/annel0/voxelload/internal/scenario"
	"github.com/annel0/voxelload/internal/storage"
	"github.com/annel0/voxelload/internal/vec"
	"github.com/annel0/voxelload/internal/world"
)

type options struct {
	configPath string
	scenario   string
	size       int
	seed       int64
	serve      bool
	exportPath string
	importPath string
	issueToken string
	readOnly   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Путь к YAML конфигурации (или VOXEL_CONFIG)")
	flag.StringVar(&opts.scenario, "scenario", "", "Сценарий постройки: cube, column, bridge, terrain")
	flag.IntVar(&opts.size, "size", 3, "Размер сценария")
	flag.Int64Var(&opts.seed, "seed", 1, "Сид шума для terrain")
	flag.BoolVar(&opts.serve, "serve", false, "Запустить REST API и ждать сигнала завершения")
	flag.StringVar(&opts.exportPath, "export", "", "Сохранить раскладку в файл (zstd)")
	flag.StringVar(&opts.importPath, "import", "", "Восстановить раскладку из файла (zstd)")
	flag.StringVar(&opts.issueToken, "issue-token", "", "Выпустить JWT для оператора и выйти")
	flag.BoolVar(&opts.readOnly, "read-only", false, "Токен только для чтения (с -issue-token)")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if opts.issueToken != "" {
		if err := printToken(cfg, opts.issueToken, opts.readOnly); err != nil {
			log.Fatalf("❌ %v", err)
		}
		return
	}

	logging.SetLogDir(cfg.Logging.Dir)
	if err := logging.InitDefaultLogger("voxelsim"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	applyLogLevels(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		logging.Error("❌ %v", err)
		_ = logging.GetLoggerManager().CloseAll()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	logging.Info("🧱 Запуск симуляции нагрузок (max_load=%d, storage=%s)", cfg.Physics.MaxLoad, cfg.Storage.Backend)

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("ошибка инициализации телеметрии: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logging.Warn("⚠️ Ошибка остановки телеметрии: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === Шина событий ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}

	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger(logging.ComponentEvents)); err != nil {
		return fmt.Errorf("ошибка подписки логгера событий: %w", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start(5 * time.Second)
	defer exporter.Stop()

	// === Хранилище раскладки ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("ошибка открытия хранилища: %w", err)
	}
	defer repo.Close()

	recorder, err := storage.StartRecorder(ctx, bus, repo, nil)
	if err != nil {
		return fmt.Errorf("ошибка запуска записи раскладки: %w", err)
	}
	defer recorder.Stop()
	// шина закрывается раньше хранилища, чтобы записать последние события
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn("⚠️ Ошибка закрытия шины: %v", err)
		}
	}()

	// === Движок ===
	queue := effects.NewQueue(256, logging.GetComponentLogger(logging.ComponentEffects))
	defer queue.Close()

	engineOpts := append(world.ConfigOptions(cfg),
		world.WithEventBus(bus),
		world.WithMetrics(world.NewMetrics(reg)),
		world.WithScheduler(queue),
		world.WithPresenter(effects.LogPresenter{Logger: logging.GetComponentLogger(logging.ComponentEffects)}),
	)
	engine := world.NewEngine(world.NewRegistry(), physics.FlatGround{Level: cfg.Physics.GroundLevel}, engineOpts...)

	if _, err := storage.RestoreFrom(ctx, repo, engine, nil); err != nil {
		return fmt.Errorf("ошибка восстановления раскладки: %w", err)
	}
	if opts.importPath != "" {
		if err := importLayout(ctx, opts.importPath, engine); err != nil {
			return err
		}
	}

	if opts.scenario != "" {
		s, err := scenario.ByName(opts.scenario, opts.size, opts.seed)
		if err != nil {
			return err
		}
		res, err := scenario.Run(ctx, engine, s)
		if err != nil {
			return fmt.Errorf("сценарий %s прерван: %w", s.Name, err)
		}
		logging.Info("🏗️ Сценарий %s: создано %d, отклонено %d, обрушилось при создании %d, разрушено %d %v",
			res.Scenario, res.Created, res.Rejected, res.Collapsed, res.Destroyed, res.ByReason)
	}

	if err := engine.CheckConsistency(); err != nil {
		logging.Error("❌ %v", err)
	}
	st := engine.Stats()
	logging.Info("📊 Живых ячеек %d (база %d), пиковая нагрузка %d/%d, digest %016x",
		st.Live, st.Base, st.PeakLoad, st.MaxLoad, st.Digest)

	if opts.exportPath != "" {
		if err := exportLayout(opts.exportPath, engine); err != nil {
			return err
		}
	}

	if !opts.serve {
		return nil
	}
	return serve(ctx, cfg, engine, reg, repo)
}

func serve(ctx context.Context, cfg *config.Config, engine *world.Engine, reg *prometheus.Registry, repo storage.LayoutRepo) error {
	var tokens *auth.TokenIssuer
	if cfg.Server.JWTSecret != "" {
		ti, err := auth.NewTokenIssuer(cfg.Server.JWTSecret, 24*time.Hour)
		if err != nil {
			return err
		}
		tokens = ti
		logging.Info("🔐 JWT аутентификация активирована")
	}

	snapshots, _ := repo.(storage.SnapshotStore)
	srv, err := api.NewServer(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Engine:     engine,
		Registerer: reg,
		Gatherer:   reg,
		Tokens:     tokens,
		Snapshots:  snapshots,
	})
	if err != nil {
		return err
	}

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("📈 Prometheus метрики на %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Сервер метрик: %v", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(sctx)
	}()

	return srv.Start(ctx)
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к NATS %s: %w", cfg.URL, err)
	}
	logging.Info("📡 Шина событий: JetStream %s (stream %s)", cfg.URL, cfg.Stream)
	return bus, nil
}

func importLayout(ctx context.Context, path string, engine *world.Engine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения раскладки %s: %w", path, err)
	}
	positions, err := storage.DecodeLayout(data)
	if err != nil {
		return fmt.Errorf("ошибка разбора раскладки %s: %w", path, err)
	}
	_, err = storage.Restore(ctx, positions, engine, nil)
	return err
}

func exportLayout(path string, engine *world.Engine) error {
	var positions []vec.Vec3
	engine.Inspect(func(reg *world.Registry) {
		positions = reg.Positions()
	})
	data, err := storage.EncodeLayout(positions)
	if err != nil {
		return fmt.Errorf("ошибка кодирования раскладки: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ошибка записи раскладки %s: %w", path, err)
	}
	logging.Info("💾 Раскладка сохранена в %s: %d ячеек, %d байт", path, len(positions), len(data))
	return nil
}

func printToken(cfg *config.Config, operator string, readOnly bool) error {
	ti, err := auth.NewTokenIssuer(cfg.Server.JWTSecret, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("jwt_secret не задан или слишком короткий: %w", err)
	}
	token, err := ti.Issue(operator, readOnly)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func applyLogLevels(cfg config.LoggingConfig) {
	console, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		console = logging.INFO
	}
	file, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		file = logging.TRACE
	}
	logging.Default().SetLevels(console, file)
	logging.GetLoggerManager().SetLevels(console, file)
}
