// controllers/srv.go
package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"Gin_postgres_redis_campus_rent/app"
	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/services"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
)

type Srv struct {
	WA         *webauthn.WebAuthn
	Repo       *db.Repo
	Ceremonies *session.CeremonyStore

	Users     *services.UserService
	Rooms     *services.RoomService
	Inventory *services.InventoryService
	Reports   *services.ReportService
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:         a.WA,
		Repo:       a.Repo,
		Ceremonies: a.Ceremonies,
		Users:      services.NewUserService(a.Repo, a.Tokens, a.Mail, a.Config),
		Rooms:      services.NewRoomService(a.Repo),
		Inventory:  services.NewInventoryService(a.Repo),
		Reports:    services.NewReportService(a.Repo, a.Config.AppName),
	}
}

// --- helpers ---

func actor(c *gin.Context) services.Actor {
	claims := app.Claims(c)
	if claims == nil {
		return services.Actor{}
	}
	return services.ActorFromClaims(claims)
}

// respondError 业务错误按 Kind 映射状态码；其余记日志并返回 500
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		var detail any
		if len(ae.Fields) > 0 {
			detail = ae.Fields
		}
		app.Fail(c, ae.Kind.Status(), ae.Message, detail)
		return
	}
	_ = c.Error(err)
	app.InternalError(c)
}

// bindJSON 只负责解码，字段校验在 services 里做；空 body 视为 {}
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		app.Fail(c, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil {
		return n
	}
	return def
}
