// Package services holds the rental managers. Each mutating method consults
// the policy table first and returns *apperr.Error for business failures.
package services

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// Actor 发起请求的已登录用户
type Actor struct {
	ID       string
	Username string
	Role     models.Role
}

func ActorFromClaims(c *session.Claims) Actor {
	return Actor{ID: c.UserID, Username: c.Username, Role: c.Role}
}

var validate = validator.New()

func init() {
	// 错误里用 json 字段名
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// check 把 validator 错误压平成 {field: tag}
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperr.Validation(err.Error())
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		fields[fe.Field()] = fe.Tag()
	}
	return apperr.ValidationFields(fields)
}

// audit 审计失败只记日志，不影响已提交的业务
func audit(ctx context.Context, repo *db.Repo, a Actor, action, targetType, targetID, detail string) {
	err := repo.LogAudit(ctx, &models.AuditLog{
		ActorID:       a.ID,
		ActorUsername: a.Username,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetID,
		Detail:        detail,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("action", action).Str("target", targetID).Msg("audit log")
	}
}
