package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"

	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// notFound 把 gorm.ErrRecordNotFound 转成业务错误，其余原样返回
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	err := r.DB.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("Email, username or NIP already in use")
	}
	return err
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID string) error {
	// 计数自增，避免并发覆盖
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": time.Now().UTC(),
			"last_seen_at":  time.Now().UTC(),
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", time.Now().UTC()).Error
}

// 按 ID 查（不含已删除）
func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &u, nil
}

// 按 ID 查（含已删除）
func (r *Repo) FindUserByIDUnscoped(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Unscoped().First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &u, nil
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &u, nil
}

// FindUserForLogin 匹配 email / 用户名 / nip 任意一个
func (r *Repo) FindUserForLogin(ctx context.Context, identifier string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).
		Where("email = ? OR username = ? OR nip = ?", strings.ToLower(identifier), identifier, identifier).
		Order("created_at ASC").
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return &u, nil
}

func (r *Repo) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	return r.taken(ctx, "email", strings.ToLower(email), exceptID)
}

func (r *Repo) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	return r.taken(ctx, "username", username, exceptID)
}

func (r *Repo) NIPTaken(ctx context.Context, nip, exceptID string) (bool, error) {
	return r.taken(ctx, "nip", nip, exceptID)
}

func (r *Repo) taken(ctx context.Context, col, val, exceptID string) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.User{}).Where(col+" = ?", val)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// 列表（分页 + 关键词，关键词匹配用户名/邮箱/nip）
type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q string, page, size int, withDeleted bool) (ListUsersResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if withDeleted {
		tx = tx.Unscoped()
	}
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(nip, '')) LIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListUsersResult{}, err
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error; err != nil {
		return ListUsersResult{}, err
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

func (r *Repo) UpdateUser(ctx context.Context, id string, fields map[string]any) (*models.User, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Email, username or NIP already in use")
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("User not found")
	}
	return r.FindUserByID(ctx, id)
}

func (r *Repo) SetUserPassword(ctx context.Context, id, hash string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

// 软删除：只写 deleted_at
func (r *Repo) SoftDeleteUser(ctx context.Context, id string) (*models.User, error) {
	u, err := r.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).Delete(u).Error; err != nil {
		return nil, err
	}
	return r.FindUserByIDUnscoped(ctx, id)
}

func (r *Repo) CountUsersByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", role).
		Count(&n).Error
	return n, err
}

// Credentials

func (r *Repo) LoadUserCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	var cs []models.Credential
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) UpdateCredentialCounter(ctx context.Context, credID []byte, newCount uint32, cloneWarn bool) error {
	return r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    newCount,
			"clone_warning": cloneWarn,
			"last_used_at":  time.Now().UTC(),
		}).Error
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	if err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error; err != nil {
		return nil, nil, notFound(err, "Credential not found")
	}
	u, err := r.FindUserByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &c, nil
}
