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

	"dailycode/internal/common/cache"
	"dailycode/internal/common/db"
	"dailycode/internal/common/mq"
	"dailycode/internal/common/storage"
	"dailycode/internal/verify/controller"
	"dailycode/internal/verify/metrics"
	"dailycode/internal/verify/repository"
	"dailycode/internal/verify/sandbox"
	"dailycode/internal/verify/sandbox/local"
	"dailycode/internal/verify/sandbox/remote"
	"dailycode/internal/verify/service"
	"dailycode/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/verify_service.yaml"
	defaultEnvPath    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", defaultEnvPath, "Path to optional .env file")
	flag.Parse()

	if err := loadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
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
	ctx := context.Background()

	database, err := db.Open(appCfg.Database.Driver, appCfg.Database.toPoolConfig())
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()
	if appCfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, database); err != nil {
			logger.Error(ctx, "migrate database failed", zap.Error(err))
			return
		}
	}
	dbProvider := db.NewManager(database)

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(ctx, "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	var (
		auditWriter repository.AuditWriter
		auditCtl    *controller.AuditController
	)
	if appCfg.MinIO.AuditEnabled {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO.MinIOConfig)
		if err != nil {
			logger.Error(ctx, "init minio failed", zap.Error(err))
			return
		}
		if err := objStorage.EnsureBucket(ctx, appCfg.MinIO.Bucket); err != nil {
			logger.Error(ctx, "ensure audit bucket failed", zap.Error(err))
			return
		}
		auditRepo := repository.NewObjectAuditRepository(objStorage, appCfg.MinIO.Bucket)
		auditWriter = auditRepo
		auditCtl = controller.NewAuditController(auditRepo)
	}

	registry, err := appCfg.registry()
	if err != nil {
		logger.Error(ctx, "init language registry failed", zap.Error(err))
		return
	}
	policy, err := appCfg.Rewards.policy()
	if err != nil {
		logger.Error(ctx, "init reward policy failed", zap.Error(err))
		return
	}
	observer := metrics.New()
	dispatcher := sandbox.NewDispatcher(
		registry,
		local.NewRunner(appCfg.Local.toRunnerConfig()),
		remote.NewClient(appCfg.Remote.toClientConfig(), &http.Client{}),
		observer,
	)

	learners := repository.NewLearnerRepository(dbProvider)
	publisher := repository.NewMQPublisher(mqClient, appCfg.Kafka.JobTopic, appCfg.Kafka.StatusTopic, appCfg.Kafka.CompletionTopic)
	verifySvc, err := service.NewService(service.Config{
		DB:                dbProvider,
		Problems:          repository.NewProblemRepositoryWithTTL(dbProvider, redisCache, appCfg.Problem.TTL, appCfg.Problem.EmptyTTL),
		Learners:          learners,
		Completions:       repository.NewCompletionRepository(dbProvider),
		Progress:          repository.NewProgressRepository(dbProvider),
		Executor:          dispatcher,
		Policy:            policy,
		Events:            publisher,
		Audit:             auditWriter,
		ExecuteTimeout:    appCfg.Rewards.ExecuteTimeout,
		SideEffectTimeout: appCfg.Rewards.SideEffectTimeout,
		MaxSourceBytes:    appCfg.Rewards.MaxSourceBytes,
	})
	if err != nil {
		logger.Error(ctx, "init verify service failed", zap.Error(err))
		return
	}
	hintSvc, err := service.NewHintService(dbProvider, learners, policy, nil)
	if err != nil {
		logger.Error(ctx, "init hint service failed", zap.Error(err))
		return
	}

	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
	jobSvc, err := service.NewJobService(service.JobConfig{
		Verifier:          verifySvc,
		StatusRepo:        statusRepo,
		Jobs:              publisher,
		StatusEvents:      publisher,
		Locker:            redisCache,
		Queue:             mqClient,
		RetryTopic:        appCfg.Kafka.RetryTopic,
		DeadLetterTopic:   appCfg.Kafka.DeadLetter,
		PoolRetryMax:      appCfg.Kafka.PoolRetryMax,
		PoolRetryBase:     appCfg.Kafka.PoolRetryBase,
		PoolRetryMaxDelay: appCfg.Kafka.PoolRetryMaxD,
		WorkerPoolSize:    appCfg.Worker.PoolSize,
		WorkerTimeout:     appCfg.Worker.Timeout,
		StatusTimeout:     appCfg.Status.Timeout,
		LockTTL:           appCfg.Worker.LockTTL,
	})
	if err != nil {
		logger.Error(ctx, "init job service failed", zap.Error(err))
		return
	}

	limiter := mq.NewTokenLimiter(appCfg.Worker.PoolSize)
	for _, topic := range []string{appCfg.Kafka.JobTopic, appCfg.Kafka.RetryTopic} {
		opts := appCfg.Kafka.subscribeOptions()
		opts.Limiter = limiter
		if err := mqClient.SubscribeWithOptions(ctx, topic, jobSvc.HandleMessage, opts); err != nil {
			logger.Error(ctx, "subscribe kafka failed", zap.String("topic", topic), zap.Error(err))
			return
		}
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(ctx, "start kafka consumer failed", zap.Error(err))
		return
	}

	var authenticator *service.AuthService
	if appCfg.Auth.JWTSecret != "" {
		authenticator = service.NewAuthService(appCfg.Auth.JWTSecret, appCfg.Auth.Issuer)
	}
	routerCfg := controller.RouterConfig{
		Verify:            controller.NewVerifyController(verifySvc, observer),
		Submissions:       controller.NewSubmissionController(jobSvc, statusRepo),
		Hints:             controller.NewHintController(hintSvc, observer),
		Audit:             auditCtl,
		AllowUserIDHeader: appCfg.Auth.AllowUserIDHeader,
		Limiter:           service.NewRateLimitService(redisCache, appCfg.RateLimit.Window, appCfg.RateLimit.RedisTimeout),
		RateLimit:         appCfg.RateLimit.toPolicy(),
		Metrics:           observer.Handler(),
		Health: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return database.Ping(pingCtx)
		},
	}
	if authenticator != nil {
		routerCfg.Auth = authenticator
	}

	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      controller.NewRouter(routerCfg),
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "verify http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("database", database.Dialect()),
			zap.Int("languages", len(registry.Languages())),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}
