package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-canvas/internal/engine/relay"
	httpHandler "collaborative-canvas/internal/handler/http"
	wsHandler "collaborative-canvas/internal/handler/websocket"
	"collaborative-canvas/internal/hub"
	jwtidentity "collaborative-canvas/internal/infra/identity"
	gormpersistence "collaborative-canvas/internal/infra/persistence/gorm"
	"collaborative-canvas/internal/infra/setup"
	"collaborative-canvas/internal/middleware"
	"collaborative-canvas/internal/service"
	"collaborative-canvas/internal/tasks"
	"collaborative-canvas/internal/worker"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser        string
	DBPassword    string
	DBHost        string
	DBPort        string
	DBName        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	ServerPort    string
	LogLevel      string
	AppEnv        string // 应用环境 (development/production)
	KeyPrefix     string // Redis Key 前缀

	RateLimitMax    int
	RateLimitWindow time.Duration
	JWTExpiryHours  int

	HeartbeatInterval time.Duration // 心跳检查周期
	AllowAnonymous    bool          // 是否允许无令牌的同步连接
	RoomIdleAfter     time.Duration // 空房间被清理前允许的闲置时长
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)，忽略错误，允许只使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		// --- 缺省值 ---
		RateLimitMax:      100,
		RateLimitWindow:   1 * time.Second,
		JWTExpiryHours:    24,
		HeartbeatInterval: hub.DefaultHeartbeatInterval,
		AllowAnonymous:    true,
		RoomIdleAfter:     30 * time.Minute,
	}

	// 处理 Redis DB，解析失败默认为 0
	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr)

	// 可选的时长与开关配置
	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HeartbeatInterval = d
		} else {
			logrus.Warnf("Invalid HEARTBEAT_INTERVAL '%s', using default %s", v, cfg.HeartbeatInterval)
		}
	}
	if v := os.Getenv("ROOM_IDLE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RoomIdleAfter = d
		} else {
			logrus.Warnf("Invalid ROOM_IDLE_AFTER '%s', using default %s", v, cfg.RoomIdleAfter)
		}
	}
	if v := os.Getenv("ALLOW_ANONYMOUS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAnonymous = b
		} else {
			logrus.Warnf("Invalid ALLOW_ANONYMOUS '%s', using default %t", v, cfg.AllowAnonymous)
		}
	}

	// --- 其他缺省值和必要检查 ---
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cc:"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Registry    *hub.Registry
	Heartbeat   *hub.Heartbeat
	Relay       *relay.Relay
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 此时可能还未配置好，直接写 stderr
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 LoadConfig 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.Info("Database initialized")

	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	log.Info("Initializing repositories...")
	userRepo := gormpersistence.NewGormUserRepository(db)
	canvasRepo := gormpersistence.NewGormCanvasRepository(db)
	accessLogRepo := gormpersistence.NewGormAccessLogRepository(db)
	log.Info("Repositories initialized")

	// 5. 初始化 Services
	log.Info("Initializing services...")
	verifier, err := jwtidentity.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT verifier: %w", err)
	}
	authService, err := service.NewAuthService(userRepo, accessLogRepo, verifier, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	canvasService := service.NewCanvasService(canvasRepo)
	docService := service.NewDocumentService(canvasRepo)
	log.Info("Services initialized")

	// 6. 初始化房间注册表、心跳检查和同步引擎
	log.Info("Initializing hub and sync engine...")
	registry := hub.NewRegistry()
	heartbeat := hub.NewHeartbeat(registry, cfg.HeartbeatInterval, log.WithField("component", "heartbeat"))
	relayEngine := relay.New(registry, docService, asynqClient, log.WithField("component", "relay"))
	log.Info("Hub and sync engine initialized")

	// 7. 初始化 Handlers
	log.Info("Initializing handlers...")
	authHandler := httpHandler.NewAuthHandler(authService)
	canvasHandler := httpHandler.NewCanvasHandler(canvasService)
	syncHandler := wsHandler.NewWebSocketHandler(registry, relayEngine, authService, cfg.HeartbeatInterval, cfg.AllowAnonymous)
	log.Info("Handlers initialized")

	// 8. 初始化 Worker Server
	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, docService, registry, cfg.RoomIdleAfter, log)
	log.Info("Worker server initialized")

	// 9. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	// --- CORS ---
	router.Use(func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000" // 开发默认
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))

	// --- 路由 ---
	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}
	canvasRoutes := api.Group("/canvases").Use(middleware.Auth(cfg.JWTSecret))
	{
		canvasRoutes.POST("", canvasHandler.CreateCanvas)
		canvasRoutes.GET("", canvasHandler.ListCanvases)
		canvasRoutes.GET("/:id", canvasHandler.GetCanvas)
		canvasRoutes.DELETE("/:id", canvasHandler.DeleteCanvas)
	}
	api.GET("/stats", middleware.Auth(cfg.JWTSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"rooms":       registry.Rooms(),
			"room_count":  registry.RoomCount(),
			"connections": len(registry.Connections()),
		})
	})
	// 同步路由不挂 Auth 中间件: 令牌在升级前由 handler 自己校验，
	// 匿名访问是否放行由 ALLOW_ANONYMOUS 决定
	router.GET("/ws/*canvas", syncHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 10. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	log.Info("HTTP server initialized")

	// 11. 组装 App 对象
	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Registry:       registry,
		Heartbeat:      heartbeat,
		Relay:          relayEngine,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")

	a.Heartbeat.Start()
	a.Log.Infof("Heartbeat monitor started (interval: %s)", a.Heartbeat.Interval())

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	// 启动 HTTP 服务器
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册周期性的空房间清理任务并启动调度器。
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	schedule := "@every 5m"
	entryID, err := scheduler.Register(schedule, tasks.NewRoomSweepTask(), asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic room sweep task: %v", err)
	} else {
		a.Log.Infof("Periodic room sweep task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	// Start 不阻塞，调度器由 App.Shutdown 统一停止
	if err := scheduler.Start(); err != nil {
		a.Log.Errorf("Could not start asynq scheduler: %v", err)
		return
	}
	a.scheduler = scheduler
	a.Log.Info("Asynq scheduler started")
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止心跳检查，关闭期间不再探测或断开连接
	if a.Heartbeat != nil {
		a.Heartbeat.Stop()
	}

	// 2. 停止周期任务调度器
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}

	// 3. 优雅关闭 Worker Server
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 5. 冲刷同步引擎里尚未持久化的画布状态 (worker 已停，直接写库)
	if a.Relay != nil {
		a.Relay.Shutdown(ctx)
	}

	// 6. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	// 7. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else {
			// 区分状态码记录日志级别
			if statusCode >= 500 {
				entry.Error("Server error")
			} else if statusCode >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Request handled")
			}
		}
	}
}
