package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/config"
	"github.com/lucidchat/billing/internal/db"
	"github.com/lucidchat/billing/internal/http/api/admin"
	"github.com/lucidchat/billing/internal/http/api/front"
	"github.com/lucidchat/billing/internal/http/api/webhook"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/models"
	"github.com/lucidchat/billing/internal/ratelimit"
	"github.com/lucidchat/billing/internal/security"
	"github.com/lucidchat/billing/internal/settings"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// Migrate opens the database and runs schema migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the billing API server.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	setupLogging(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings snapshot: %w", errRefresh)
	}
	if errSeed := ensureDefaultAdmin(ctx, conn); errSeed != nil {
		return fmt.Errorf("seed default admin: %w", errSeed)
	}

	var counter *ratelimit.Counter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			return fmt.Errorf("redis ping: %w", errPing)
		}
		counter = ratelimit.NewCounter(client)
	} else {
		log.Warn("redis address not configured; free tier counters disabled")
	}

	svc := ledger.NewService(conn, counter)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})

	front.RegisterFrontRoutes(engine, conn, cfg.JWT, svc, counter)
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT, svc)
	webhook.RegisterWebhookRoutes(engine, svc, cfg.Webhook)

	log.WithField("listen", cfg.Listen).Info("billing server starting")
	return engine.Run(cfg.Listen)
}

// ensureDefaultAdmin creates the first administrator account when the admins
// table is empty. The generated password is printed once at startup and must
// be rotated through the admin API.
func ensureDefaultAdmin(ctx context.Context, conn *gorm.DB) error {
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return nil
	}

	buf := make([]byte, 12)
	if _, errRand := rand.Read(buf); errRand != nil {
		return errRand
	}
	password := hex.EncodeToString(buf)
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return errHash
	}

	admin := models.Admin{Username: "admin", Password: hash, Active: true}
	if errCreate := conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		return errCreate
	}
	log.Warnf("created default admin account %q with password %s", admin.Username, password)
	return nil
}

// setupLogging configures logrus output and rotation.
func setupLogging(cfg config.LogConfig) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
