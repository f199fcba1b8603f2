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

	accountctrl "acmdaily/internal/account/controller"
	accountrepo "acmdaily/internal/account/repository"
	accountsvc "acmdaily/internal/account/service"
	"acmdaily/internal/codeforces"
	"acmdaily/internal/common/cache"
	"acmdaily/internal/common/db"
	commonmw "acmdaily/internal/common/http/middleware"
	"acmdaily/internal/common/mq"
	"acmdaily/internal/daily"
	problemctrl "acmdaily/internal/problem/controller"
	problemrepo "acmdaily/internal/problem/repository"
	problemsvc "acmdaily/internal/problem/service"
	scorectrl "acmdaily/internal/score/controller"
	scoresvc "acmdaily/internal/score/service"
	targetctrl "acmdaily/internal/target/controller"
	targetrepo "acmdaily/internal/target/repository"
	targetsvc "acmdaily/internal/target/service"
	"acmdaily/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/daily_service.yaml"

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

	mysqlDB, err := db.NewMySQLWithConfig(appCfg.Database.toMySQLConfig())
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(appCfg.Redis.toRedisConfig())
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	producer, err := mq.NewKafkaProducer(appCfg.Kafka.toKafkaConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = producer.Close()
	}()

	feedClient := codeforces.NewClient(appCfg.Feed.toClientConfig())

	problemRepo := problemrepo.NewProblemRepository(mysqlDB)
	accountRepo := accountrepo.NewAccountRepository(mysqlDB)
	targetRepo := targetrepo.NewTargetRepository(mysqlDB)

	poolService := problemsvc.NewPoolService(problemRepo, targetRepo, feedClient, producer, problemsvc.PoolConfig{
		Tier:  appCfg.Pool.toTierConfig(),
		Topic: appCfg.Kafka.Topic,
	})
	problemService := problemsvc.NewProblemService(problemRepo, accountRepo, feedClient, appCfg.Pool.toTierConfig())
	reconcileService := scoresvc.NewReconcileService(problemRepo, accountRepo, feedClient, redisCache, appCfg.Reconcile.toServiceConfig())
	leaderboardService := scoresvc.NewLeaderboardService(reconcileService, accountRepo, problemRepo)
	accountService := accountsvc.NewAccountService(accountRepo, feedClient)
	targetService := targetsvc.NewTargetService(targetRepo)

	scheduler, err := daily.NewScheduler(poolService, reconcileService, appCfg.Scheduler.toSchedulerConfig())
	if err != nil {
		logger.Error(context.Background(), "init scheduler failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, poolService, problemService, reconcileService, leaderboardService, accountService, targetService)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Run(shutdownCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "daily http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

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
}

func buildHTTPServer(
	appCfg *AppConfig,
	poolService *problemsvc.PoolService,
	problemService *problemsvc.ProblemService,
	reconcileService *scoresvc.ReconcileService,
	leaderboardService *scoresvc.LeaderboardService,
	accountService *accountsvc.AccountService,
	targetService *targetsvc.TargetService,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	problemController := problemctrl.NewProblemController(poolService, problemService)
	scoreController := scorectrl.NewScoreController(reconcileService, leaderboardService)
	accountController := accountctrl.NewAccountController(accountService)
	targetController := targetctrl.NewTargetController(targetService)

	api := router.Group("/api/v1")
	api.GET("/problems/today", problemController.Today)
	api.GET("/problems/random", problemController.Random)
	api.POST("/problems/emplace", problemController.Emplace)
	api.GET("/leaderboard", scoreController.Leaderboard)
	api.POST("/accounts/bind", accountController.Bind)
	api.POST("/accounts/unbind", accountController.Unbind)
	api.GET("/accounts/:chat_id", accountController.Whoami)
	api.POST("/targets/subscribe", targetController.Subscribe)
	api.POST("/targets/unsubscribe", targetController.Unsubscribe)

	admin := api.Group("", commonmw.AdminAuthMiddleware(appCfg.Auth.toMiddlewareConfig()))
	admin.POST("/problems/distribute", problemController.Distribute)
	admin.POST("/scores/reconcile", scoreController.Reconcile)
	admin.GET("/targets", targetController.List)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  durationOr(appCfg.Server.ReadTimeout, defaultReadTimeout),
		WriteTimeout: durationOr(appCfg.Server.WriteTimeout, defaultWriteTimeout),
		IdleTimeout:  durationOr(appCfg.Server.IdleTimeout, defaultIdleTimeout),
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
