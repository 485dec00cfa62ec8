package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RentalMeta 开始/结束租用时附带的信息
type RentalMeta struct {
	Capacity  int
	Condition string
	Notes     string
}

// Rooms

func (r *Repo) CreateRoom(ctx context.Context, room *models.Room) error {
	err := r.DB.WithContext(ctx).Create(room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("Room with this name already exists")
	}
	return err
}

// RoomNameTaken 在未删除房间中查重，exceptID 用于更新时排除自身
func (r *Repo) RoomNameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Room{}).Where("name = ?", strings.TrimSpace(name))
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) FindRoomByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.DB.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Room not found")
	}
	return &room, nil
}

// 含已删除，用于区分“不存在”和“已删除”
func (r *Repo) FindRoomByIDUnscoped(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := r.DB.WithContext(ctx).Unscoped().First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Room not found")
	}
	return &room, nil
}

type RoomFilter int

const (
	RoomsAll RoomFilter = iota
	RoomsAvailable
	RoomsRented
)

func (r *Repo) ListRooms(ctx context.Context, f RoomFilter) ([]models.Room, error) {
	q := r.DB.WithContext(ctx).Model(&models.Room{}).Order("name ASC")
	switch f {
	case RoomsAvailable:
		q = q.Where("is_rented = ?", false)
	case RoomsRented:
		q = q.Where("is_rented = ?", true)
	}
	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// RoomWithRental 房间 + 当前进行中的租用
type RoomWithRental struct {
	models.Room
	ActiveRental *models.RoomRental `json:"activeRental"`
}

func (r *Repo) ListRentedRoomsWithRental(ctx context.Context) ([]RoomWithRental, error) {
	rooms, err := r.ListRooms(ctx, RoomsRented)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	byRoom, err := r.activeRoomRentals(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RoomWithRental, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomWithRental{Room: room, ActiveRental: byRoom[room.ID]})
	}
	return out, nil
}

func (r *Repo) activeRoomRentals(ctx context.Context, roomIDs []string) (map[string]*models.RoomRental, error) {
	out := make(map[string]*models.RoomRental, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}
	var ls []models.RoomRental
	if err := r.DB.WithContext(ctx).
		Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Where("room_id IN ? AND end_time IS NULL", roomIDs).
		Find(&ls).Error; err != nil {
		return nil, err
	}
	for i := range ls {
		out[ls[i].RoomID] = &ls[i]
	}
	return out, nil
}

func (r *Repo) UpdateRoom(ctx context.Context, id string, fields map[string]any) (*models.Room, error) {
	res := r.DB.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Room with this name already exists")
		}
		return nil, res.Error
	}
	return r.FindRoomByID(ctx, id)
}

// SoftDeleteRoom：锁住房间，占用中的房间不允许删除
func (r *Repo) SoftDeleteRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", id).Error; err != nil {
			return notFound(err, "Room not found")
		}
		if room.IsRented {
			return apperr.Conflict("Room is currently rented")
		}
		return tx.Delete(&room).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindRoomByIDUnscoped(ctx, id)
}

// Room rentals

// StartRoomRental 原子操作 = 锁住 room → 校验 → 新建 rental → 占用 is_rented
func (r *Repo) StartRoomRental(ctx context.Context, roomID, userID string, meta RentalMeta) (*models.RoomRental, error) {
	var rental *models.RoomRental
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住该房间
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			return notFound(err, "Room not found or has been deleted")
		}
		if room.IsRented {
			return apperr.Conflict("Room has already been rented")
		}

		// 2) 目标用户（含已删除，以便区分 403）
		var u models.User
		if err := tx.Unscoped().First(&u, "id = ?", userID).Error; err != nil {
			return notFound(err, "User not found")
		}
		var open int64
		if err := tx.Model(&models.RoomRental{}).
			Where("user_id = ? AND end_time IS NULL", userID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return apperr.Conflict("User is already renting a room")
		}
		if u.DeletedAt.Valid {
			return apperr.Forbidden("Deleted users cannot rent rooms")
		}

		// 3) 新建 rental（部分唯一索引兜底并发）
		l := &models.RoomRental{
			RoomID:    room.ID,
			UserID:    u.ID,
			Capacity:  meta.Capacity,
			StartTime: time.Now().UTC(),
			Condition: meta.Condition,
			Notes:     meta.Notes,
		}
		if err := tx.Create(l).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("Room or user already has an active rental")
			}
			return err
		}

		// 4) 占位：UPDATE ... WHERE is_rented = false
		res := tx.Model(&models.Room{}).
			Where("id = ? AND is_rented = ?", room.ID, false).
			Updates(map[string]any{"is_rented": true, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Room has already been rented")
		}

		room.IsRented = true
		l.Room = &room
		l.User = &u
		rental = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rental, nil
}

// EndRoomRental 结束 (room, user) 最近一条进行中的租用并释放房间
func (r *Repo) EndRoomRental(ctx context.Context, roomID, userID string, meta RentalMeta) (*models.RoomRental, error) {
	var l models.RoomRental
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			return notFound(err, "Room not found")
		}

		if err := tx.Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
			Where("room_id = ? AND user_id = ? AND end_time IS NULL", roomID, userID).
			Order("start_time DESC").
			First(&l).Error; err != nil {
			return notFound(err, "Rent record not found")
		}

		now := time.Now().UTC()
		update := map[string]any{"end_time": now, "updated_at": now}
		if meta.Condition != "" {
			update["condition"] = meta.Condition
			l.Condition = meta.Condition
		}
		if meta.Notes != "" {
			update["notes"] = meta.Notes
			l.Notes = meta.Notes
		}
		if err := tx.Model(&models.RoomRental{}).Where("id = ?", l.ID).Updates(update).Error; err != nil {
			return err
		}
		l.EndTime = &now

		// 释放占用
		if err := tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			Updates(map[string]any{"is_rented": false, "updated_at": now}).Error; err != nil {
			return err
		}
		room.IsRented = false
		l.Room = &room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ActiveRoomRentalCount 用于一致性检查：房间的进行中租用数
func (r *Repo) ActiveRoomRentalCount(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.RoomRental{}).
		Where("room_id = ? AND end_time IS NULL", roomID).
		Count(&n).Error
	return n, err
}

func (r *Repo) ListRoomRentals(ctx context.Context, roomID, userID string, activeOnly bool) ([]models.RoomRental, error) {
	q := r.DB.WithContext(ctx).Model(&models.RoomRental{}).Order("start_time DESC")
	if roomID != "" {
		q = q.Where("room_id = ?", roomID)
	}
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if activeOnly {
		q = q.Where("end_time IS NULL")
	}
	var ls []models.RoomRental
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	return ls, nil
}
