package app

import (
	"context"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/services"

	"github.com/rs/zerolog/log"
)

// BootstrapSuperAdmin 配置了 BOOTSTRAP_EMAIL 且库里还没有 super_admin 时创建第一个
func BootstrapSuperAdmin(ctx context.Context, cfg *config.Config, users *services.UserService) {
	if cfg.BootstrapEmail == "" {
		return
	}
	created, err := users.BootstrapSuperAdmin(ctx, cfg.BootstrapEmail, cfg.BootstrapUsername, cfg.BootstrapPassword)
	if err != nil {
		log.Error().Err(err).Str("email", cfg.BootstrapEmail).Msg("bootstrap super admin")
		return
	}
	if created {
		log.Info().Str("email", cfg.BootstrapEmail).Msg("[BOOTSTRAP] created first super admin")
	}
}
