package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/mailer"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/policy"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const resetTTL = 30 * time.Minute

// 登录失败统一返回，不区分账号不存在还是密码错误
var errWrongCredentials = apperr.Unauthenticated("wrong credentials")

type UserService struct {
	repo      *db.Repo
	tokens    *session.TokenService
	mail      mailer.Sender
	webOrigin string
	appName   string
}

func NewUserService(repo *db.Repo, tokens *session.TokenService, mail mailer.Sender, cfg *config.Config) *UserService {
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		mail:      mail,
		webOrigin: strings.TrimRight(cfg.WebOrigin, "/"),
		appName:   cfg.AppName,
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	NIP      string `json:"nip" validate:"omitempty,max=64"`
}

type LoginInput struct {
	// 任选其一：identifier / email / username / nip
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	NIP        string `json:"nip"`
	Password   string `json:"password" validate:"required"`
}

func (in LoginInput) id() string {
	for _, s := range []string{in.Identifier, in.Email, in.Username, in.NIP} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Profile 令牌中携带的用户信息
type Profile struct {
	UserID   string      `json:"userId"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	NIP      string      `json:"nip,omitempty"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   Profile   `json:"profile"`
}

type UpdateUserInput struct {
	Email    *string      `json:"email" validate:"omitempty,email,max=255"`
	Username *string      `json:"username" validate:"omitempty,min=3,max=64"`
	NIP      *string      `json:"nip" validate:"omitempty,max=64"`
	Password *string      `json:"password" validate:"omitempty,min=6,max=72"`
	Role     *models.Role `json:"role"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal("Failed to hash password", err)
	}
	return string(b), nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// 用户不存在时也做一次 bcrypt 比较，响应时间不泄露账号是否存在
func burnCompare(pw string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("campus-rent-dummy"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
}

// Register 公开注册，角色固定为 user
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.register(ctx, in, models.RoleUser)
}

func (s *UserService) RegisterTeacher(ctx context.Context, a Actor, in RegisterInput) (*models.User, error) {
	if err := policy.Authorize(policy.RegisterTeacher, a.Role); err != nil {
		return nil, err
	}
	u, err := s.register(ctx, in, models.RoleTeacher)
	if err == nil {
		audit(ctx, s.repo, a, models.ActionUserRegisterRole, "user", u.ID, string(u.Role))
	}
	return u, err
}

func (s *UserService) RegisterAdmin(ctx context.Context, a Actor, in RegisterInput) (*models.User, error) {
	if err := policy.Authorize(policy.RegisterAdmin, a.Role); err != nil {
		return nil, err
	}
	u, err := s.register(ctx, in, models.RoleAdmin)
	if err == nil {
		audit(ctx, s.repo, a, models.ActionUserRegisterRole, "user", u.ID, string(u.Role))
	}
	return u, err
}

func (s *UserService) register(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if taken, err := s.repo.EmailTaken(ctx, email, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Email already in use")
	}
	username := strings.TrimSpace(in.Username)
	if taken, err := s.repo.UsernameTaken(ctx, username, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Username already in use")
	}
	var nip *string
	if n := strings.TrimSpace(in.NIP); n != "" {
		if taken, err := s.repo.NIPTaken(ctx, n, ""); err != nil {
			return nil, err
		} else if taken {
			return nil, apperr.Conflict("NIP already in use")
		}
		nip = &n
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        email,
		Username:     username,
		NIP:          nip,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	ident := in.id()
	if ident == "" {
		return nil, apperr.ValidationFields(map[string]string{"identifier": "required"})
	}
	u, err := s.repo.FindUserForLogin(ctx, ident)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			burnCompare(in.Password)
			return nil, errWrongCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, errWrongCredentials
	}
	return s.IssueSession(ctx, u)
}

// IssueSession 密码登录与 Passkey 登录共用
func (s *UserService) IssueSession(ctx context.Context, u *models.User) (*LoginResult, error) {
	token, claims, err := s.tokens.Issue(ctx, u)
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	if err := s.repo.TouchUserLogin(ctx, u.ID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user", u.ID).Msg("touch login")
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Profile: Profile{
			UserID:   claims.UserID,
			Email:    claims.Email,
			Username: claims.Username,
			Role:     claims.Role,
			NIP:      claims.NIP,
		},
	}, nil
}

// Logout 只注销当前令牌
func (s *UserService) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return apperr.Internal("Failed to log out", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repo.FindUserByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, a Actor, q string, page, size int) (db.ListUsersResult, error) {
	if err := policy.Authorize(policy.ListAllUsers, a.Role); err != nil {
		return db.ListUsersResult{}, err
	}
	return s.repo.ListUsers(ctx, q, page, size, false)
}

// ListAll 含已软删除用户
func (s *UserService) ListAll(ctx context.Context, a Actor, q string, page, size int) (db.ListUsersResult, error) {
	if err := policy.Authorize(policy.ListAllUsers, a.Role); err != nil {
		return db.ListUsersResult{}, err
	}
	return s.repo.ListUsers(ctx, q, page, size, true)
}

// Update 本人或级别更高的管理员；修改角色仅管理员，授予 admin 与注册 admin 同权
func (s *UserService) Update(ctx context.Context, a Actor, id string, in UpdateUserInput) (*models.User, error) {
	if err := check(in); err != nil {
		return nil, err
	}
	self := a.ID == id
	if !self {
		if err := policy.Authorize(policy.UpdateOtherUser, a.Role); err != nil {
			return nil, err
		}
	}
	if in.Role != nil {
		if err := policy.Authorize(policy.ChangeRole, a.Role); err != nil {
			return nil, err
		}
		if !in.Role.Valid() {
			return nil, apperr.ValidationFields(map[string]string{"role": "oneof"})
		}
		switch *in.Role {
		case models.RoleSuperAdmin:
			if a.Role != models.RoleSuperAdmin {
				return nil, apperr.Forbidden("Only a super admin can grant super admin")
			}
		case models.RoleAdmin:
			if err := policy.Authorize(policy.RegisterAdmin, a.Role); err != nil {
				return nil, err
			}
		}
	}

	target, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !self {
		if err := policy.AuthorizeOver(policy.UpdateOtherUser, a.Role, target.Role); err != nil {
			return nil, err
		}
	}

	fields := map[string]any{}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != target.Email {
			if taken, err := s.repo.EmailTaken(ctx, email, id); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("Email already in use")
			}
			fields["email"] = email
		}
	}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name != target.Username {
			if taken, err := s.repo.UsernameTaken(ctx, name, id); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("Username already in use")
			}
			fields["username"] = name
		}
	}
	if in.NIP != nil {
		if n := strings.TrimSpace(*in.NIP); n == "" {
			fields["nip"] = nil
		} else {
			if taken, err := s.repo.NIPTaken(ctx, n, id); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("NIP already in use")
			}
			fields["nip"] = n
		}
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	if in.Role != nil {
		fields["role"] = *in.Role
	}
	if len(fields) == 0 {
		return target, nil
	}
	u, err := s.repo.UpdateUser(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	// 角色变更或他人重置密码后，旧令牌里的身份已失效
	_, roleChanged := fields["role"]
	_, pwChanged := fields["password_hash"]
	if roleChanged || (pwChanged && !self) {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return nil, apperr.Internal("User updated but sessions could not be revoked", err)
		}
	}
	if roleChanged {
		audit(ctx, s.repo, a, models.ActionUserRoleChange, "user", id, fmt.Sprintf("%s -> %s", target.Role, u.Role))
	}
	return u, nil
}

// Delete 软删除并注销该用户所有令牌
func (s *UserService) Delete(ctx context.Context, a Actor, id string) (*models.User, error) {
	if err := policy.Authorize(policy.DeleteUser, a.Role); err != nil {
		return nil, err
	}
	if a.ID == id {
		return nil, apperr.Forbidden("You cannot delete your own account")
	}
	target, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeOver(policy.DeleteUser, a.Role, target.Role); err != nil {
		return nil, err
	}
	u, err := s.repo.SoftDeleteUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return nil, apperr.Internal("User deleted but sessions could not be revoked", err)
	}
	audit(ctx, s.repo, a, models.ActionUserDelete, "user", id, u.Username)
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, a Actor, in ChangePasswordInput) error {
	if err := check(in); err != nil {
		return err
	}
	u, err := s.repo.FindUserByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.OldPassword)) != nil {
		return apperr.ValidationFields(map[string]string{"oldPassword": "mismatch"})
	}
	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return s.repo.SetUserPassword(ctx, u.ID, hash)
}

// ForgotPassword 邮箱不存在时同样返回成功
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return apperr.ValidationFields(map[string]string{"email": "email"})
	}
	u, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return apperr.Internal("Failed to create reset token", err)
	}
	token := hex.EncodeToString(buf)
	if _, err := s.repo.CreatePasswordReset(ctx, u.Email, token, time.Now().UTC().Add(resetTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.webOrigin, token)
	body := fmt.Sprintf("Hello %s,\n\nUse the link below to reset your %s password. It expires in %d minutes.\n\n%s\n",
		u.Username, s.appName, int(resetTTL.Minutes()), link)
	if err := s.mail.Send(ctx, u.Email, s.appName+" password reset", body); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("to", u.Email).Msg("send reset mail")
	}
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := check(in); err != nil {
		return err
	}
	invalid := apperr.Validation("Reset token is invalid or has expired")
	pr, err := s.repo.GetPasswordReset(ctx, in.Token)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return invalid
		}
		return err
	}
	if pr.UsedAt != nil || time.Now().After(pr.ExpiresAt) {
		return invalid
	}
	u, err := s.repo.FindUserByEmail(ctx, pr.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return invalid
		}
		return err
	}
	hash, err := hashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ConsumePasswordReset(ctx, in.Token, u.ID, hash); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user", u.ID).Msg("revoke after reset")
	}
	return nil
}

// BootstrapSuperAdmin 尚无 super_admin 时创建一个
func (s *UserService) BootstrapSuperAdmin(ctx context.Context, email, username, password string) (bool, error) {
	n, err := s.repo.CountUsersByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.register(ctx, RegisterInput{Email: email, Username: username, Password: password}, models.RoleSuperAdmin); err != nil {
		return false, err
	}
	return true, nil
}
