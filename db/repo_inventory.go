package db

import (
	"context"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Items

func (r *Repo) CreateItem(ctx context.Context, it *models.InventoryItem) error {
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Inventory not found")
	}
	return &it, nil
}

func (r *Repo) FindItemByIDUnscoped(ctx context.Context, id string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := r.DB.WithContext(ctx).Unscoped().First(&it, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Inventory not found")
	}
	return &it, nil
}

type ItemFilter int

const (
	ItemsAll ItemFilter = iota
	// initial > 0 且 initial > rented
	ItemsAvailable
	ItemsRented
)

func (r *Repo) ListItems(ctx context.Context, f ItemFilter) ([]models.InventoryItem, error) {
	q := r.DB.WithContext(ctx).Model(&models.InventoryItem{}).Order("created_at DESC")
	switch f {
	case ItemsAvailable:
		q = q.Where("initial_quantity > 0 AND initial_quantity > rented_quantity")
	case ItemsRented:
		q = q.Where("rented_quantity > 0")
	}
	var items []models.InventoryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ItemWithRentals 物品 + 进行中的租用（含借用人）
type ItemWithRentals struct {
	models.InventoryItem
	ActiveRentals []models.InventoryRental `json:"inventoryRents"`
}

func (r *Repo) ListRentedItemsWithRentals(ctx context.Context) ([]ItemWithRentals, error) {
	items, err := r.ListItems(ctx, ItemsRented)
	if err != nil {
		return nil, err
	}
	ids := lo.Map(items, func(it models.InventoryItem, _ int) string { return it.ID })
	byItem := map[string][]models.InventoryRental{}
	if len(ids) > 0 {
		var ls []models.InventoryRental
		if err := r.DB.WithContext(ctx).
			Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
			Where("inventory_id IN ? AND end_time IS NULL", ids).
			Order("start_time ASC").
			Find(&ls).Error; err != nil {
			return nil, err
		}
		byItem = lo.GroupBy(ls, func(l models.InventoryRental) string { return l.InventoryID })
	}
	return lo.Map(items, func(it models.InventoryItem, _ int) ItemWithRentals {
		rs := byItem[it.ID]
		if rs == nil {
			rs = []models.InventoryRental{}
		}
		return ItemWithRentals{InventoryItem: it, ActiveRentals: rs}
	}), nil
}

// UpdateItem：锁住物品，initial_quantity 不能低于已借出数量
func (r *Repo) UpdateItem(ctx context.Context, id string, fields map[string]any) (*models.InventoryItem, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", id).Error; err != nil {
			return notFound(err, "Inventory not found")
		}
		if v, ok := fields["initial_quantity"]; ok {
			if q, _ := v.(int); q < it.RentedQuantity {
				return apperr.Conflict("Initial quantity cannot be lower than the rented quantity")
			}
		}
		return tx.Model(&models.InventoryItem{}).Where("id = ?", id).Updates(fields).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindItemByID(ctx, id)
}

func (r *Repo) SoftDeleteItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", id).Error; err != nil {
			return notFound(err, "Inventory not found")
		}
		if it.RentedQuantity > 0 {
			return apperr.Conflict("Inventory still has rented units")
		}
		return tx.Delete(&it).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindItemByIDUnscoped(ctx, id)
}

// Inventory rentals

// StartItemRental 原子操作 = 锁住物品 → 校验余量 → 新建 rental → 条件自增 rented_quantity
func (r *Repo) StartItemRental(ctx context.Context, itemID, userID string, quantity int, meta RentalMeta) (*models.InventoryRental, error) {
	var rental *models.InventoryRental
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", itemID).Error; err != nil {
			return notFound(err, "Inventory not found")
		}
		if it.InitialQuantity == 0 {
			return apperr.Forbidden("Inventory cannot be rented as initial quantity is zero")
		}
		if it.Available() < quantity {
			return apperr.Conflict("Not enough inventory available")
		}

		var u models.User
		if err := tx.Unscoped().First(&u, "id = ?", userID).Error; err != nil {
			return notFound(err, "User not found")
		}
		if u.DeletedAt.Valid {
			return apperr.Forbidden("Deleted users cannot rent inventory")
		}

		now := time.Now().UTC()
		l := &models.InventoryRental{
			InventoryID: it.ID,
			UserID:      u.ID,
			Quantity:    quantity,
			StartTime:   now,
			Condition:   meta.Condition,
			Notes:       meta.Notes,
		}
		if err := tx.Create(l).Error; err != nil {
			return err
		}

		// 条件自增：即使没有行锁（SQLite）也不会超卖
		res := tx.Model(&models.InventoryItem{}).
			Where("id = ? AND initial_quantity - rented_quantity >= ?", it.ID, quantity).
			Updates(map[string]any{
				"rented_quantity": gorm.Expr("rented_quantity + ?", quantity),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Not enough inventory available")
		}

		it.RentedQuantity += quantity
		l.Inventory = &it
		l.User = &u
		rental = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rental, nil
}

// ItemReturn 归还结果：更新后的物品 + 本次关闭的记录
type ItemReturn struct {
	Item   *models.InventoryItem    `json:"inventory"`
	Closed []models.InventoryRental `json:"rentals"`
}

// EndItemRental 只归还 quantity 个单位：按开始时间从旧到新整条关闭，
// 最后一条不够整条时拆分，剩余部分继续进行中。
func (r *Repo) EndItemRental(ctx context.Context, itemID, userID string, quantity int, meta RentalMeta) (*ItemReturn, error) {
	var out ItemReturn
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", itemID).Error; err != nil {
			return notFound(err, "Inventory not found")
		}

		var open []models.InventoryRental
		if err := tx.
			Where("inventory_id = ? AND user_id = ? AND end_time IS NULL", itemID, userID).
			Order("start_time ASC, created_at ASC").
			Find(&open).Error; err != nil {
			return err
		}
		if len(open) == 0 {
			return apperr.NotFound("Rent record not found")
		}
		total := lo.SumBy(open, func(l models.InventoryRental) int { return l.Quantity })
		if quantity > total {
			return apperr.Conflict("Returned quantity exceeds rented quantity")
		}

		now := time.Now().UTC()
		remaining := quantity
		closed := make([]models.InventoryRental, 0, len(open))
		for _, l := range open {
			if remaining == 0 {
				break
			}
			cond := lo.Ternary(meta.Condition != "", meta.Condition, l.Condition)
			notes := lo.Ternary(meta.Notes != "", meta.Notes, l.Notes)

			if l.Quantity <= remaining {
				if err := tx.Model(&models.InventoryRental{}).Where("id = ?", l.ID).
					Updates(map[string]any{
						"end_time":   now,
						"condition":  cond,
						"notes":      notes,
						"updated_at": now,
					}).Error; err != nil {
					return err
				}
				l.EndTime, l.Condition, l.Notes = &now, cond, notes
				remaining -= l.Quantity
				closed = append(closed, l)
				continue
			}

			// 拆分：原记录保留未归还部分
			if err := tx.Model(&models.InventoryRental{}).Where("id = ?", l.ID).
				Updates(map[string]any{
					"quantity":   l.Quantity - remaining,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
			part := models.InventoryRental{
				InventoryID: l.InventoryID,
				UserID:      l.UserID,
				Quantity:    remaining,
				StartTime:   l.StartTime,
				EndTime:     &now,
				Condition:   cond,
				Notes:       notes,
			}
			if err := tx.Create(&part).Error; err != nil {
				return err
			}
			closed = append(closed, part)
			remaining = 0
		}

		res := tx.Model(&models.InventoryItem{}).
			Where("id = ? AND rented_quantity >= ?", it.ID, quantity).
			Updates(map[string]any{
				"rented_quantity": gorm.Expr("rented_quantity - ?", quantity),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Returned quantity exceeds rented quantity")
		}
		it.RentedQuantity -= quantity

		out = ItemReturn{Item: &it, Closed: closed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) ListItemRentals(ctx context.Context, itemID, userID string, activeOnly bool) ([]models.InventoryRental, error) {
	q := r.DB.WithContext(ctx).Model(&models.InventoryRental{}).Order("start_time DESC")
	if itemID != "" {
		q = q.Where("inventory_id = ?", itemID)
	}
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if activeOnly {
		q = q.Where("end_time IS NULL")
	}
	var ls []models.InventoryRental
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	return ls, nil
}
