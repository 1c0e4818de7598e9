package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	intDatabase "callmesh-backend/internal/database"
	callHandler "callmesh-backend/internal/handler/http/call"
	presenceHandler "callmesh-backend/internal/handler/http/presence"
	pushTokenHandler "callmesh-backend/internal/handler/http/pushtoken"
	wsHandler "callmesh-backend/internal/handler/ws"
	"callmesh-backend/internal/middleware"
	"callmesh-backend/internal/repository/cassandra"
	"callmesh-backend/internal/repository/cockroach"
	redisRepo "callmesh-backend/internal/repository/redis"
	"callmesh-backend/internal/service/directory"
	historyService "callmesh-backend/internal/service/history"
	notifyService "callmesh-backend/internal/service/notify"
	presenceService "callmesh-backend/internal/service/presence"
	"callmesh-backend/internal/signaling"
	"callmesh-backend/pkg/config"
	"callmesh-backend/pkg/constants"
	pkgDatabase "callmesh-backend/pkg/database"
	"callmesh-backend/pkg/jwt"
	"callmesh-backend/pkg/logger"
	"callmesh-backend/pkg/push"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)

	// CockroachDB with exponential backoff; the service degrades to
	// signaling-only when call history persistence is unavailable
	db := connectCockroach(ctx, cfg)
	var callHistoryRepo *cockroach.CallHistoryRepository
	var userRepo *cockroach.UserRepository
	if db != nil {
		defer db.Close()
		callHistoryRepo = cockroach.NewCallHistoryRepository(db.Pool)
		userRepo = cockroach.NewUserRepository(db.Pool)
	}

	// Redis with degraded mode support
	intDatabase.InitRedisMetrics()
	redisDB, err := intDatabase.NewRedisDB(&intDatabase.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Warn("Failed to connect to Redis, presence mirroring degraded", zap.Error(err))
	}
	defer redisDB.Close()
	redisDB.StartHealthCheck(ctx, 10*time.Second)

	presenceRepo := redisRepo.NewPresenceRepository(redisDB)
	sessionRepo := redisRepo.NewSessionRepository(redisDB.Client)
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisDB.Client)

	// Cassandra call event timeline is optional
	var callEventRepo *cassandra.CallEventRepository
	cassandraDB, err := pkgDatabase.NewCassandraDB(&pkgDatabase.CassandraConfig{
		Hosts:    cfg.Cassandra.Hosts,
		Keyspace: cfg.Cassandra.Keyspace,
		Timeout:  cfg.Cassandra.Timeout,
	})
	if err != nil {
		logger.Warn("Failed to connect to Cassandra, call event timeline disabled", zap.Error(err))
	} else {
		defer cassandraDB.Close()
		callEventRepo = cassandra.NewCallEventRepository(cassandraDB.Session)
		logger.Info("Connected to Cassandra", zap.Strings("hosts", cfg.Cassandra.Hosts))
	}

	// MinIO for presigned avatar URLs, optional
	var minioClient *minio.Client
	minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		logger.Warn("Failed to initialize MinIO client, avatars disabled", zap.Error(err))
		minioClient = nil
	}

	// Push provider per configuration
	pushProvider, err := push.NewProvider(&cfg.Push)
	if err != nil {
		logger.Fatal("Failed to initialize push provider", zap.Error(err))
	}
	pushSvc := push.NewService(pushProvider, pushTokenRepo)

	// Assemble the signaling engine
	var directorySvc *directory.Service
	opts := signaling.EngineOptions{
		Notifier:    notifyService.NewService(pushSvc),
		Presence:    presenceService.NewService(presenceRepo, userRepo),
		RingTimeout: cfg.Signaling.RingTimeout,
	}
	if callHistoryRepo != nil {
		historySvc := historyService.NewService(callHistoryRepo, callEventRepo)
		opts.History = historySvc
		opts.EventLog = historySvc
	}
	if userRepo != nil {
		directorySvc = directory.NewService(userRepo, minioClient, cfg.MinIO.Bucket)
	}
	engine := signaling.NewEngine(directoryOrStub(directorySvc), opts)
	engine.StartReaper(ctx, cfg.Signaling.ReapInterval)

	// Handlers
	signalingWS := wsHandler.NewSignalingHandler(engine, jwtManager, sessionRepo,
		cfg.Signaling.MaxConnections, cfg.Signaling.SendBuffer)
	callHdlr := callHandler.NewHandler(callHistoryRepo, callEventRepo)
	presenceHdlr := presenceHandler.NewHandler(engine,
		presenceService.NewService(presenceRepo, userRepo), directorySvc)
	pushTokenHdlr := pushTokenHandler.NewHandler(pushTokenRepo)

	// Router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.Prometheus())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.Server.ServiceName,
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	// WebSocket endpoint authenticates inside the handler: browsers cannot
	// set Authorization headers on upgrade requests
	router.GET("/ws/signaling", signalingWS.ServeWS)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		if callHistoryRepo != nil {
			v1.GET("/calls/history", callHdlr.GetHistory)
			v1.GET("/calls/:id", callHdlr.GetCall)
			v1.GET("/calls/:id/events", callHdlr.GetCallEvents)
		}
		v1.GET("/presence/online", presenceHdlr.GetOnlineUsers)
		v1.GET("/presence/:id", presenceHdlr.GetUserPresence)
		v1.POST("/push/tokens", pushTokenHdlr.RegisterToken)
		v1.DELETE("/push/tokens/:token", pushTokenHdlr.DeleteToken)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Signaling service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down signaling service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// connectCockroach dials CockroachDB with exponential backoff, returning nil
// when persistence is unavailable
func connectCockroach(ctx context.Context, cfg *config.Config) *pkgDatabase.CockroachDB {
	dbConfig := &pkgDatabase.CockroachConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}

	const maxRetries = 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err := pkgDatabase.NewCockroachDB(ctx, dbConfig)
		if err == nil {
			logger.Info("Connected to CockroachDB", zap.Int("attempt", attempt))
			return db
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("CockroachDB connection failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	logger.Warn("Running without call history persistence")
	return nil
}

// directoryOrStub falls back to placeholder display names when the user
// store is unavailable
func directoryOrStub(svc *directory.Service) signaling.Directory {
	if svc != nil {
		return svc
	}
	return stubDirectory{}
}

type stubDirectory struct{}

func (stubDirectory) Resolve(_ context.Context, _ string) (string, string, error) {
	return "User", "", nil
}
