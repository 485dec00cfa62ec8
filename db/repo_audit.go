package db

import (
	"context"
	"fmt"

	"Gin_postgres_redis_campus_rent/models"
)

func (r *Repo) LogAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

type ListAuditResult struct {
	Entries []models.AuditLog `json:"entries"`
	Total   int64             `json:"total"`
}

// ListAudit 新的在前；action 为空时不过滤
func (r *Repo) ListAudit(ctx context.Context, action string, page, size int) (ListAuditResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	tx := r.DB.WithContext(ctx).Model(&models.AuditLog{})
	if action != "" {
		tx = tx.Where("action = ?", action)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListAuditResult{}, err
	}
	var entries []models.AuditLog
	if err := tx.Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&entries).Error; err != nil {
		return ListAuditResult{}, err
	}
	return ListAuditResult{Entries: entries, Total: total}, nil
}
