package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"Gin_postgres_redis_campus_rent/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims 随令牌下发的用户身份
type Claims struct {
	UserID   string      `json:"userId"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	NIP      string      `json:"nip,omitempty"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration, store RevocationStore) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue 签发 HS256 令牌，并记入该用户的已签发集合
func (s *TokenService) Issue(ctx context.Context, u *models.User) (string, *Claims, error) {
	now := s.now()
	c := &Claims{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if u.NIP != nil {
		c.NIP = *u.NIP
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.store.Track(ctx, u.ID, hashToken(token), s.ttl); err != nil {
		return "", nil, fmt.Errorf("track token: %w", err)
	}
	return token, c, nil
}

func (s *TokenService) parse(token string) (*Claims, error) {
	c := &Claims{}
	_, err := jwt.ParseWithClaims(token, c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return c, ErrTokenExpired
	default:
		return nil, ErrTokenInvalid
	}
}

// Verify 顺序：已注销 → 过期 → 签名/格式
func (s *TokenService) Verify(ctx context.Context, token string) (*Claims, error) {
	revoked, err := s.store.IsRevoked(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Revoke 注销单个令牌，TTL 为剩余有效期；已过期的令牌无需记录
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if errors.Is(err, ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	remaining := c.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.store.Revoke(ctx, hashToken(token), remaining)
}

// RevokeAllForUser 删除用户时调用
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.RevokeUser(ctx, userID, s.ttl)
}
