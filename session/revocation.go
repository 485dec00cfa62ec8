package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore 保存已注销令牌（按 sha256 哈希），以及每个用户签发过的令牌，
// 用于删除用户时一次性全部注销。
type RevocationStore interface {
	Revoke(ctx context.Context, hash string, ttl time.Duration) error
	IsRevoked(ctx context.Context, hash string) (bool, error)
	Track(ctx context.Context, userID, hash string, ttl time.Duration) error
	RevokeUser(ctx context.Context, userID string, ttl time.Duration) error
}

// Redis

type RedisRevocations struct{ rdb *redis.Client }

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations { return &RedisRevocations{rdb: rdb} }

func revokedKey(hash string) string    { return fmt.Sprintf("rr:revoked:%s", hash) }
func userTokensKey(uid string) string { return fmt.Sprintf("rr:user_tokens:%s", uid) }

func (s *RedisRevocations) Revoke(ctx context.Context, hash string, ttl time.Duration) error {
	return s.rdb.Set(ctx, revokedKey(hash), 1, ttl).Err()
}

func (s *RedisRevocations) IsRevoked(ctx context.Context, hash string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocations) Track(ctx context.Context, userID, hash string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, userTokensKey(userID), hash)
	pipe.Expire(ctx, userTokensKey(userID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeUser 注销该用户签发过的所有令牌
func (s *RedisRevocations) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	hashes, err := s.rdb.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, h := range hashes {
		pipe.Set(ctx, revokedKey(h), 1, ttl)
	}
	pipe.Del(ctx, userTokensKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}

// 进程内实现，没有 Redis 时使用

type entry struct{ expires time.Time }

type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]entry
	issued  map[string]map[string]entry
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		revoked: map[string]entry{},
		issued:  map[string]map[string]entry{},
		now:     time.Now,
	}
}

func (s *MemoryRevocations) Revoke(_ context.Context, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.revoked[hash] = entry{expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryRevocations) IsRevoked(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.revoked[hash]
	return ok && s.now().Before(e.expires), nil
}

func (s *MemoryRevocations) Track(_ context.Context, userID, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued[userID] == nil {
		s.issued[userID] = map[string]entry{}
	}
	s.issued[userID][hash] = entry{expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryRevocations) RevokeUser(_ context.Context, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.now().Add(ttl)
	for h := range s.issued[userID] {
		s.revoked[h] = entry{expires: exp}
	}
	delete(s.issued, userID)
	return nil
}

// sweep 清理过期条目，调用方持锁
func (s *MemoryRevocations) sweep() {
	now := s.now()
	for h, e := range s.revoked {
		if !now.Before(e.expires) {
			delete(s.revoked, h)
		}
	}
	for uid, m := range s.issued {
		for h, e := range m {
			if !now.Before(e.expires) {
				delete(m, h)
			}
		}
		if len(m) == 0 {
			delete(s.issued, uid)
		}
	}
}
