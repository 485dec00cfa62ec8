package services

import (
	"context"
	"io"
	"time"

	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/policy"
	"Gin_postgres_redis_campus_rent/report"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type ReportService struct {
	repo    *db.Repo
	appName string
}

func NewReportService(repo *db.Repo, appName string) *ReportService {
	return &ReportService{repo: repo, appName: appName}
}

type RoomReport struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Totals      db.RoomTotals       `json:"totals"`
	Rooms       []db.RoomWithRental `json:"rooms"`
}

func (s *ReportService) Inventory(ctx context.Context, a Actor) (*report.InventoryReport, error) {
	if err := policy.Authorize(policy.ViewReports, a.Role); err != nil {
		return nil, err
	}
	totals, err := s.repo.InventoryTotals(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, db.ItemsAll)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.ActiveRentalCountByItem(ctx)
	if err != nil {
		return nil, err
	}
	rows := lo.Map(items, func(it models.InventoryItem, _ int) report.InventoryRow {
		return report.InventoryRow{
			ID:            it.ID,
			ItemCode:      it.ItemCode,
			Name:          it.Name,
			Location:      it.Location,
			Category:      it.Category,
			Initial:       it.InitialQuantity,
			Rented:        it.RentedQuantity,
			Available:     it.Available(),
			ActiveRentals: active[it.ID],
			PurchasePrice: it.PurchasePrice,
		}
	})
	value := lo.Reduce(items, func(acc decimal.Decimal, it models.InventoryItem, _ int) decimal.Decimal {
		if !it.PurchasePrice.Valid {
			return acc
		}
		return acc.Add(it.PurchasePrice.Decimal.Mul(decimal.NewFromInt(int64(it.InitialQuantity))))
	}, decimal.Zero)

	return &report.InventoryReport{
		GeneratedAt: time.Now().UTC(),
		Totals:      totals,
		TotalValue:  value,
		Rows:        rows,
	}, nil
}

func (s *ReportService) InventoryPDF(ctx context.Context, a Actor, w io.Writer) error {
	rep, err := s.Inventory(ctx, a)
	if err != nil {
		return err
	}
	return report.WriteInventoryPDF(w, s.appName, rep)
}

func (s *ReportService) Rooms(ctx context.Context, a Actor) (*RoomReport, error) {
	if err := policy.Authorize(policy.ViewReports, a.Role); err != nil {
		return nil, err
	}
	totals, err := s.repo.RoomTotals(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.repo.ListRooms(ctx, db.RoomsAll)
	if err != nil {
		return nil, err
	}
	rented, err := s.repo.ListRentedRoomsWithRental(ctx)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(rented, func(r db.RoomWithRental) string { return r.ID })
	out := lo.Map(rooms, func(r models.Room, _ int) db.RoomWithRental {
		if rw, ok := byID[r.ID]; ok {
			return rw
		}
		return db.RoomWithRental{Room: r}
	})
	return &RoomReport{GeneratedAt: time.Now().UTC(), Totals: totals, Rooms: out}, nil
}

func (s *ReportService) Audit(ctx context.Context, a Actor, action string, page, size int) (db.ListAuditResult, error) {
	if err := policy.Authorize(policy.ViewReports, a.Role); err != nil {
		return db.ListAuditResult{}, err
	}
	return s.repo.ListAudit(ctx, action, page, size)
}
