package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 所有 JSON 响应的统一外壳
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Err     any    `json:"err,omitempty"`
}

func OK(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

func Fail(c *gin.Context, status int, msg string, detail any) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: msg, Err: detail})
}

func InternalError(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, "Internal server error", nil)
}
