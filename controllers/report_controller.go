package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"Gin_postgres_redis_campus_rent/app"

	"github.com/gin-gonic/gin"
)

func (s *Srv) InventoryReport(c *gin.Context) {
	rep, err := s.Reports.Inventory(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Inventory report generated", rep)
}

// InventoryReportPDF 先写入内存，出错时还能返回 JSON
func (s *Srv) InventoryReportPDF(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.Reports.InventoryPDF(c.Request.Context(), actor(c), &buf); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("inventory-%s.pdf", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Srv) RoomReport(c *gin.Context) {
	rep, err := s.Reports.Rooms(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Room report generated", rep)
}

// AuditLog ?action=&page=&size=
func (s *Srv) AuditLog(c *gin.Context) {
	res, err := s.Reports.Audit(c.Request.Context(), actor(c), c.Query("action"), queryInt(c, "page", 1), queryInt(c, "size", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	app.OK(c, http.StatusOK, "Audit log retrieved", res)
}
