package db

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"Gin_postgres_redis_campus_rent/config"
	"Gin_postgres_redis_campus_rent/models"

	"github.com/stretchr/testify/require"
)

// newTestRepo 每个测试一个独立的内存 SQLite
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		Env:         "test",
		DBDriver:    "sqlite",
		DatabaseURL: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}
	conn, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepo(conn)
}

func mkUser(t *testing.T, r *Repo, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        username + "@campus.test",
		Username:     username,
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func mkRoom(t *testing.T, r *Repo, name string) *models.Room {
	t.Helper()
	room := &models.Room{Name: name, Capacity: 30}
	require.NoError(t, r.CreateRoom(context.Background(), room))
	return room
}

func mkItem(t *testing.T, r *Repo, name string, qty int) *models.InventoryItem {
	t.Helper()
	it := &models.InventoryItem{Name: name, ItemCode: strings.ToUpper(name), InitialQuantity: qty}
	require.NoError(t, r.CreateItem(context.Background(), it))
	return it
}
