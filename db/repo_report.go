package db

import (
	"context"

	"Gin_postgres_redis_campus_rent/models"
)

type InventoryTotals struct {
	Items          int64 `json:"items"`
	TotalUnits     int64 `json:"totalUnits"`
	RentedUnits    int64 `json:"rentedUnits"`
	AvailableUnits int64 `json:"availableUnits"`
	ActiveRentals  int64 `json:"activeRentals"`
}

func (r *Repo) InventoryTotals(ctx context.Context) (InventoryTotals, error) {
	var t InventoryTotals
	if err := r.DB.WithContext(ctx).Model(&models.InventoryItem{}).
		Select(`COUNT(*) AS items,
			COALESCE(SUM(initial_quantity), 0) AS total_units,
			COALESCE(SUM(rented_quantity), 0) AS rented_units`).
		Scan(&t).Error; err != nil {
		return t, err
	}
	t.AvailableUnits = t.TotalUnits - t.RentedUnits
	if err := r.DB.WithContext(ctx).Model(&models.InventoryRental{}).
		Where("end_time IS NULL").
		Count(&t.ActiveRentals).Error; err != nil {
		return t, err
	}
	return t, nil
}

// ActiveRentalCountByItem inventory_id -> 进行中记录数
func (r *Repo) ActiveRentalCountByItem(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		InventoryID string
		N           int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.InventoryRental{}).
		Select("inventory_id, COUNT(*) AS n").
		Where("end_time IS NULL").
		Group("inventory_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.InventoryID] = row.N
	}
	return out, nil
}

type RoomTotals struct {
	Rooms  int64 `json:"rooms"`
	Rented int64 `json:"rented"`
	Free   int64 `json:"free"`
}

func (r *Repo) RoomTotals(ctx context.Context) (RoomTotals, error) {
	var t RoomTotals
	if err := r.DB.WithContext(ctx).Model(&models.Room{}).Count(&t.Rooms).Error; err != nil {
		return t, err
	}
	if err := r.DB.WithContext(ctx).Model(&models.Room{}).
		Where("is_rented = ?", true).
		Count(&t.Rented).Error; err != nil {
		return t, err
	}
	t.Free = t.Rooms - t.Rented
	return t, nil
}
