package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/helpdesk-agent-core/internal/audit"
	"github.com/xela07ax/helpdesk-agent-core/internal/authz"
	"github.com/xela07ax/helpdesk-agent-core/internal/bus"
	"github.com/xela07ax/helpdesk-agent-core/internal/connectors"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/handler"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/server"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
	"github.com/xela07ax/helpdesk-agent-core/internal/contexts"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra/auth"
	"github.com/xela07ax/helpdesk-agent-core/internal/registry"
	"github.com/xela07ax/helpdesk-agent-core/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Внешние ресурсы (оба опциональны: ядро умеет жить в одном процессе)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing degraded", zap.Error(err))
		}
		pingCancel()
	}

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	// 3. Журнал аудита: in-memory trail + батчевый архив в Postgres (если задан)
	var archiver *audit.Archiver
	var trailSink audit.Sink
	if cfg.Database.URL != "" {
		auditRepo, err := postgres.NewAuditRepo(cfg.Database.URL)
		if err != nil {
			logger.Fatal("audit storage init failed", zap.Error(err))
		}
		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := auditRepo.Ping(pingCtx); err != nil {
			logger.Fatal("audit database unreachable", zap.Error(err))
		}
		pingCancel()
		defer auditRepo.Close()

		archiver = audit.NewArchiver(auditRepo, logger, audit.Options{
			BufferSize:    cfg.Kernel.AuditBufferSize,
			BatchSize:     cfg.Kernel.AuditBatchSize,
			FlushInterval: cfg.Kernel.AuditFlushInterval,
		}, metrics.AuditBufferFill.Set)
		archiver.Start()
		trailSink = archiver
	}
	trail := audit.NewTrail(trailSink)

	// 4. Сборка ядра (Dependency Injection)
	engine := authz.New(trail, metrics, logger)

	var publisher registry.StatusPublisher
	var statusSync *registry.StatusSync
	if rdb != nil {
		statusSync = registry.NewStatusSync(rdb, logger)
		publisher = statusSync
	}
	agentReg := registry.New(logger, publisher)
	if statusSync != nil {
		go statusSync.Listen(appCtx, agentReg, nil)
	}

	messageBus := bus.New(cfg.Kernel.QueueCapacity, cfg.Kernel.DefaultSendTimeout, metrics, logger)

	var kv contexts.KV
	if rdb != nil {
		kv = contexts.NewRedisKV(rdb)
	}
	store := contexts.NewStore(kv, metrics, logger)

	// Фоновая чистка протухших контекстов
	go func() {
		ticker := time.NewTicker(cfg.Kernel.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				store.SweepExpired(appCtx)
			}
		}
	}()

	// 5. Коннектор внешних систем за защитным контуром
	executor := connectors.NewReliabilityWrapper("helpdesk-systems", &connectors.MockSystemsConnector{})
	bridge := connectors.NewBridge("connector:helpdesk", messageBus, executor, logger)
	bridge.Attach()
	go bridge.Run(appCtx, 10*time.Millisecond)

	// 6. Console API
	publicKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("public key parse failed", zap.Error(err))
	}
	privateKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("private key parse failed", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Operators, auth.NewBaseValidator(publicKey), privateKey, cfg.Auth.TokenTTL)
	kernelService := service.NewKernelService(agentReg, engine, messageBus, store, trail, logger)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		authService,
		handler.NewAuthHandler(authService),
		handler.NewAgentHandler(kernelService),
		handler.NewPolicyHandler(kernelService),
		handler.NewApprovalHandler(kernelService),
		handler.NewDashboardHandler(kernelService),
		handler.NewAuditHandler(kernelService),
		handler.NewContextHandler(kernelService),
	)

	// Экспортируем метрики для Prometheus на отдельном порту
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("coordination kernel started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("coordination kernel stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Останавливаем фоновые горутины и дожимаем буфер аудита в базу
	cancel()
	if archiver != nil {
		archiver.Stop()
	}
	logger.Info("coordination kernel exited properly")
}
