package app

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/mailer"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config *config.Config

	Repo       *db.Repo
	Tokens     *session.TokenService
	Ceremonies *session.CeremonyStore
	Mail       mailer.Sender
}

func New(cfg *config.Config) (*App, error) {
	// --- DB ---
	dbConn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.AppName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	return &App{
		Router:     NewRouter(cfg),
		DB:         dbConn,
		RDB:        rdb,
		WA:         wa,
		Config:     cfg,
		Repo:       db.NewRepo(dbConn),
		Tokens:     session.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, session.NewRedisRevocations(rdb)),
		Ceremonies: session.NewCeremonyStore(rdb, cfg.SessionTTL),
		Mail:       mailer.New(cfg),
	}, nil
}

func MustNew(cfg *config.Config) *App {
	a, err := New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	return a
}

// NewRouter gin 引擎 + 公共中间件
func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery(), ErrorHandler())
	useCORS(r, cfg.WebOrigin)
	return r
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
