package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/session"

	"github.com/stretchr/testify/require"
)

type sentMail struct{ to, subject, body string }

// fakeMailer 记录发出的邮件
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *fakeMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type fixture struct {
	repo      *db.Repo
	tokens    *session.TokenService
	mail      *fakeMailer
	users     *UserService
	rooms     *RoomService
	inventory *InventoryService
	reports   *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		Env:         "test",
		DBDriver:    "sqlite",
		DatabaseURL: fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
		WebOrigin:   "http://campus.test/",
		AppName:     "Campus Rent",
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo := db.NewRepo(conn)
	tokens := session.NewTokenService("test-secret", time.Hour, session.NewMemoryRevocations())
	mail := &fakeMailer{}
	return &fixture{
		repo:      repo,
		tokens:    tokens,
		mail:      mail,
		users:     NewUserService(repo, tokens, mail, cfg),
		rooms:     NewRoomService(repo),
		inventory: NewInventoryService(repo),
		reports:   NewReportService(repo, cfg.AppName),
	}
}

// actor 直接写库创建一个指定角色的用户
func (f *fixture) actor(t *testing.T, username string, role models.Role) Actor {
	t.Helper()
	u, err := f.users.register(context.Background(), RegisterInput{
		Email:    username + "@campus.test",
		Username: username,
		Password: "secret123",
	}, role)
	require.NoError(t, err)
	return Actor{ID: u.ID, Username: u.Username, Role: u.Role}
}
