package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/policy"

	"github.com/shopspring/decimal"
)

type InventoryService struct{ repo *db.Repo }

func NewInventoryService(repo *db.Repo) *InventoryService { return &InventoryService{repo: repo} }

type ItemInput struct {
	ItemCode        string              `json:"itemCode" validate:"max=120"`
	Name            string              `json:"name" validate:"required,max=200"`
	Location        string              `json:"location" validate:"max=200"`
	InitialQuantity int                 `json:"initialQuantity" validate:"gte=0"`
	Condition       string              `json:"condition" validate:"max=255"`
	Category        string              `json:"category" validate:"max=120"`
	Supplier        string              `json:"supplier" validate:"max=200"`
	PurchasePrice   decimal.NullDecimal `json:"purchasePrice" validate:"-"`
	PurchaseDate    *time.Time          `json:"purchaseDate"`
}

type ItemUpdateInput struct {
	ItemCode        *string              `json:"itemCode" validate:"omitempty,max=120"`
	Name            *string              `json:"name" validate:"omitempty,min=1,max=200"`
	Location        *string              `json:"location" validate:"omitempty,max=200"`
	InitialQuantity *int                 `json:"initialQuantity" validate:"omitempty,gte=0"`
	Condition       *string              `json:"condition" validate:"omitempty,max=255"`
	Category        *string              `json:"category" validate:"omitempty,max=120"`
	Supplier        *string              `json:"supplier" validate:"omitempty,max=200"`
	PurchasePrice   *decimal.NullDecimal `json:"purchasePrice" validate:"-"`
	PurchaseDate    *time.Time           `json:"purchaseDate"`
}

type RentItemInput struct {
	RentInput
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// 普通用户只能为自己借还
func forSelfOnly(a Actor, target string) error {
	if a.Role == models.RoleUser && target != a.ID {
		return apperr.Forbidden("You can only rent or return inventory for yourself")
	}
	return nil
}

func negativePrice(p decimal.NullDecimal) error {
	if p.Valid && p.Decimal.IsNegative() {
		return apperr.ValidationFields(map[string]string{"purchasePrice": "gte"})
	}
	return nil
}

func (s *InventoryService) Create(ctx context.Context, a Actor, in ItemInput) (*models.InventoryItem, error) {
	if err := policy.Authorize(policy.CreateItem, a.Role); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return nil, err
	}
	if err := negativePrice(in.PurchasePrice); err != nil {
		return nil, err
	}
	it := &models.InventoryItem{
		ItemCode:        strings.TrimSpace(in.ItemCode),
		Name:            in.Name,
		Location:        strings.TrimSpace(in.Location),
		InitialQuantity: in.InitialQuantity,
		Condition:       in.Condition,
		Category:        in.Category,
		Supplier:        in.Supplier,
		PurchasePrice:   in.PurchasePrice,
		PurchaseDate:    in.PurchaseDate,
	}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionItemCreate, "inventory", it.ID, fmt.Sprintf("%s qty=%d", it.Name, it.InitialQuantity))
	return it, nil
}

func (s *InventoryService) Update(ctx context.Context, a Actor, id string, in ItemUpdateInput) (*models.InventoryItem, error) {
	if err := policy.Authorize(policy.UpdateItem, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	it, err := s.repo.FindItemByIDUnscoped(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.DeletedAt.Valid {
		return nil, apperr.Forbidden("Inventory has been deleted")
	}

	fields := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	set("item_code", in.ItemCode)
	set("name", in.Name)
	set("location", in.Location)
	set("condition", in.Condition)
	set("category", in.Category)
	set("supplier", in.Supplier)
	if n, ok := fields["name"]; ok && n == "" {
		return nil, apperr.ValidationFields(map[string]string{"name": "required"})
	}
	if in.InitialQuantity != nil {
		fields["initial_quantity"] = *in.InitialQuantity
	}
	if in.PurchasePrice != nil {
		if err := negativePrice(*in.PurchasePrice); err != nil {
			return nil, err
		}
		fields["purchase_price"] = *in.PurchasePrice
	}
	if in.PurchaseDate != nil {
		fields["purchase_date"] = *in.PurchaseDate
	}
	if len(fields) == 0 {
		return it, nil
	}
	updated, err := s.repo.UpdateItem(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionItemUpdate, "inventory", id, updated.Name)
	return updated, nil
}

func (s *InventoryService) Delete(ctx context.Context, a Actor, id string) (*models.InventoryItem, error) {
	if err := policy.Authorize(policy.DeleteItem, a.Role); err != nil {
		return nil, err
	}
	it, err := s.repo.SoftDeleteItem(ctx, id)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionItemDelete, "inventory", id, it.Name)
	return it, nil
}

func (s *InventoryService) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	return s.repo.FindItemByID(ctx, id)
}

func (s *InventoryService) ListAvailable(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListItems(ctx, db.ItemsAvailable)
}

func (s *InventoryService) ListAll(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListItems(ctx, db.ItemsAll)
}

func (s *InventoryService) ListRented(ctx context.Context) ([]db.ItemWithRentals, error) {
	return s.repo.ListRentedItemsWithRentals(ctx)
}

func (s *InventoryService) StartRental(ctx context.Context, a Actor, itemID string, in RentItemInput) (*models.InventoryRental, error) {
	if err := policy.Authorize(policy.StartItemRental, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	if err := forSelfOnly(a, in.target(a)); err != nil {
		return nil, err
	}
	l, err := s.repo.StartItemRental(ctx, itemID, in.target(a), in.Quantity, in.meta())
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionItemRentStart, "inventory", itemID,
		fmt.Sprintf("user=%s qty=%d rental=%s", l.UserID, l.Quantity, l.ID))
	return l, nil
}

func (s *InventoryService) EndRental(ctx context.Context, a Actor, itemID string, in RentItemInput) (*db.ItemReturn, error) {
	if err := policy.Authorize(policy.EndItemRental, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	if err := forSelfOnly(a, in.target(a)); err != nil {
		return nil, err
	}
	res, err := s.repo.EndItemRental(ctx, itemID, in.target(a), in.Quantity, in.meta())
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionItemRentEnd, "inventory", itemID,
		fmt.Sprintf("user=%s qty=%d", in.target(a), in.Quantity))
	return res, nil
}
