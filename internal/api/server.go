package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lostfound/internal/api/auth"
	"lostfound/internal/api/middleware"
	"lostfound/internal/api/sweeper"
	"lostfound/internal/config"
	"lostfound/internal/itemstore"
	"lostfound/internal/model"
	"lostfound/internal/pkg/blobstore"
	"lostfound/internal/pkg/metrics"
	"lostfound/internal/pkg/notifier"
	"lostfound/internal/pkg/notify"
	"lostfound/internal/pkg/queue"
	"lostfound/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、物品 Store、blob 仓库以及 Gin 路由引擎。
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	rdb     *redis.Client
	router  *gin.Engine
	auth    *auth.Handler
	items   ItemService
	users   UserStore
	uploads Uploader
	mailer  notify.Mailer
	jobs    *queue.Queue
	changes *notifier.Notifier
	sweep   *sweeper.Sweeper
	store   *itemstore.Store
}

// ItemService 物品集合上的全部操作，与 itemstore.Store 对应。
type ItemService interface {
	List() []model.Item
	Get(id string) (*model.Item, bool)
	Add(ctx context.Context, draft itemstore.Draft, actor *model.User) (*model.Item, error)
	UpdateStatus(ctx context.Context, id string, next model.ItemStatus, actor *model.User) error
	Delete(ctx context.Context, id string, actor *model.User) error
	DeleteByFilter(ctx context.Context, dr *itemstore.DateRange, typ string, actor *model.User) error
}

// UserStore 用户记录的查询与后台更新。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error
}

// Uploader 照片上传接口。
type Uploader interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

type dbUserStore struct {
	db       *gorm.DB
	resolver *auth.Resolver
}

func (s dbUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.resolver.Resolve(ctx, id)
}

func (s dbUserStore) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s dbUserStore) UpdateUser(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 构建物品 Store（按配置选择 MySQL 或本地快照后端）
// 4. 初始化 blob 仓库、后台任务队列和 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Item{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	changes := notifier.New(rdb, logger)
	jobs := queue.NewQueue(logger, cfg.App.WorkerPoolSize, cfg.App.QueueCapacity)

	blobs, err := blobstore.New(ctx, &cfg.S3)
	if err != nil {
		return nil, err
	}

	var persistence itemstore.Persistence
	switch cfg.Storage.Backend {
	case "local":
		persistence = itemstore.NewLocalPersistence(cfg.Storage.SnapshotPath)
	default:
		persistence = itemstore.NewRemotePersistence(db)
	}

	store := itemstore.NewStore(persistence, changes, blobs, jobs, logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}

	mailer := notify.NewEmailNotifier(&cfg.Email, logger)
	resolver := auth.NewResolver(db)

	limiter := ratelimit.NewRedisRateLimiter(rdb, "lostfound:ratelimit:auth", cfg.App.RateLimit, cfg.App.RateBurst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		rdb:     rdb,
		router:  r,
		auth:    auth.NewHandler(db, cfg.Security.JWTSecret, cfg.Security.AdminCode, logger),
		items:   store,
		users:   dbUserStore{db: db, resolver: resolver},
		uploads: blobs,
		mailer:  mailer,
		jobs:    jobs,
		changes: changes,
		sweep:   sweeper.New(store, logger, cfg.App.SweepInterval, cfg.App.RetentionPeriod),
		store:   store,
	}
	s.registerRoutes(limiter)
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartBackground 启动后台任务队列、保留期清扫器和变更订阅。
func (s *Server) StartBackground(ctx context.Context) {
	s.jobs.Start(ctx)

	// 1. 保护清扫器
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in retention sweeper", slog.Any("panic", r))
			}
		}()
		s.sweep.Run(ctx)
	}()

	// 2. 保护变更订阅（本地快照后端没有变更流）
	if s.cfg.Storage.Backend != "local" {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("PANIC in change listener", slog.Any("panic", r))
				}
			}()
			if err := s.changes.Listen(ctx, s.store.Refresh); err != nil {
				s.logger.Error("change listener stopped", slog.String("error", err.Error()))
			}
		}()
	}
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	s.jobs.Shutdown()

	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes(limiter *ratelimit.RateLimiter) {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	public := s.router.Group("/")
	public.Use(middleware.RateLimit(limiter, s.logger))
	public.POST("/register", s.auth.Register)
	public.POST("/login", s.auth.Login)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.POST("/logout", s.auth.Logout)
	authed.GET("/me", s.handleMe)
	authed.GET("/items", s.handleListItems)
	authed.GET("/items/mine", s.handleMyItems)
	authed.GET("/items/emergency", s.handleEmergencyItems)
	authed.GET("/items/normal", s.handleNormalItems)
	authed.GET("/items/:id", s.handleGetItem)
	authed.POST("/items", s.handleCreateItem)
	authed.PATCH("/items/:id/status", s.handleUpdateStatus)
	authed.DELETE("/items/:id", s.handleDeleteItem)
	authed.POST("/uploads", s.handleUpload)
	authed.POST("/contact", s.handleContact)

	admin := authed.Group("/")
	admin.Use(requireAdmin())
	admin.DELETE("/items", s.handleBulkDelete)
	admin.GET("/admin/stats", s.handleAdminStats)
	admin.GET("/admin/users", s.handleAdminListUsers)
	admin.PATCH("/admin/users/:id", s.handleAdminUpdateUser)
}

// requireAdmin 拦截非管理员的管理端请求。
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if getUserRole(c) != model.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveActor 将会话中的用户标识解析为 User 记录。
//
// 解析失败（用户已被删除等）按未认证处理。
func (s *Server) resolveActor(c *gin.Context) *model.User {
	userID := getUserID(c)
	if userID == "" {
		return nil
	}
	user, err := s.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

func getUserID(c *gin.Context) string {
	return c.GetString("userID")
}

func getUserRole(c *gin.Context) string {
	role, ok := c.Get("role")
	if !ok {
		return model.RoleUser
	}
	if s, ok := role.(string); ok && s != "" {
		return s
	}
	return model.RoleUser
}
