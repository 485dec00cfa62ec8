package db

import (
	"context"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"

	"gorm.io/gorm"
)

func (r *Repo) CreatePasswordReset(ctx context.Context, email, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	pr := &models.PasswordReset{Email: email, Token: token, ExpiresAt: expiresAt}
	return pr, r.DB.WithContext(ctx).Create(pr).Error
}

func (r *Repo) GetPasswordReset(ctx context.Context, token string) (*models.PasswordReset, error) {
	var pr models.PasswordReset
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&pr).Error; err != nil {
		return nil, notFound(err, "Reset token not found")
	}
	return &pr, nil
}

// ConsumePasswordReset 一次性：标记 used_at 并更新密码，在同一事务中完成
func (r *Repo) ConsumePasswordReset(ctx context.Context, token, userID, hash string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&models.PasswordReset{}).
			Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
			Update("used_at", &now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Validation("Reset token is invalid or has expired")
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("password_hash", hash).Error
	})
}
