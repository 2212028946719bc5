package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbiter/internal/common/cache"
	commonmw "arbiter/internal/common/http/middleware"
	"arbiter/internal/common/mq"
	"arbiter/internal/judge/catalog"
	"arbiter/internal/judge/controller"
	"arbiter/internal/judge/orchestrator"
	"arbiter/internal/judge/provision"
	"arbiter/internal/judge/queue"
	"arbiter/internal/judge/registry"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/runner"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/service"
	"arbiter/internal/judge/worker"
	"arbiter/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	redisCache, err := cache.NewRedisCache(appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := buildObjectStorage(appCfg.Storage)
	if err != nil {
		logger.Error(context.Background(), "init object storage failed", zap.Error(err))
		return
	}

	reg, err := registry.NewSQLiteRegistry(appCfg.Registry, objStorage)
	if err != nil {
		logger.Error(context.Background(), "init registry failed", zap.Error(err))
		return
	}
	defer func() {
		_ = reg.Close()
	}()

	var publisher repository.ResultEventPublisher
	if len(appCfg.Events.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(appCfg.Events.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = repository.NewMQResultEventPublisher(producer, appCfg.Events.Topic)
	}

	cat, err := catalog.NewLocalCatalog(appCfg.Catalog.RootDir)
	if err != nil {
		logger.Error(context.Background(), "init catalog failed", zap.Error(err))
		return
	}

	sandboxClient := sandbox.NewHTTPClient(appCfg.Sandbox)
	provisioner := provision.NewProvisioner(sandboxClient, cat, appCfg.Provision)
	caseRunner := runner.NewCaseRunner(sandboxClient)
	resultRepo := repository.NewResultRepository(redisCache, reg, publisher, appCfg.Results)
	orch := orchestrator.NewOrchestrator(sandboxClient, cat, provisioner, caseRunner, resultRepo)

	jobQueue := queue.NewQueue(appCfg.Queue, reg)
	intakeSvc := service.NewIntakeService(appCfg.Intake, jobQueue, reg, resultRepo)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	pool := worker.NewPool(appCfg.Worker, jobQueue, orch, reg)
	pool.Start(workerCtx)

	httpServer := buildHTTPServer(appCfg.Server, intakeSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		stopWorkers()
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}

	stopWorkers()
	pool.Wait()
	provisioner.Shutdown(ctx)
}

func buildHTTPServer(cfg ServerConfig, svc *service.IntakeService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	api := router.Group("/api/v1")
	controller.NewSubmissionController(svc).RegisterRoutes(api)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
