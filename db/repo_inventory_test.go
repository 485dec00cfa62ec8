package db

import (
	"context"
	"sync"
	"testing"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/models"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rented_quantity 必须等于进行中记录数量之和，且不超过 initial
func assertItemConsistent(t *testing.T, r *Repo, itemID string) *models.InventoryItem {
	t.Helper()
	it, err := r.FindItemByIDUnscoped(context.Background(), itemID)
	require.NoError(t, err)
	open, err := r.ListItemRentals(context.Background(), itemID, "", true)
	require.NoError(t, err)
	sum := lo.SumBy(open, func(l models.InventoryRental) int { return l.Quantity })
	assert.Equal(t, it.RentedQuantity, sum)
	assert.GreaterOrEqual(t, it.RentedQuantity, 0)
	assert.LessOrEqual(t, it.RentedQuantity, it.InitialQuantity)
	return it
}

func TestItemRentFullStockThenReturn(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "projector", 10)
	u := mkUser(t, r, "borrower", models.RoleUser)

	l, err := r.StartItemRental(ctx, it.ID, u.ID, 10, RentalMeta{Condition: "good"})
	require.NoError(t, err)
	assert.Equal(t, 10, l.Quantity)
	assert.Equal(t, 10, l.Inventory.RentedQuantity)

	avail, err := r.ListItems(ctx, ItemsAvailable)
	require.NoError(t, err)
	assert.Empty(t, avail)

	_, err = r.StartItemRental(ctx, it.ID, u.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, 10, assertItemConsistent(t, r, it.ID).RentedQuantity)

	ret, err := r.EndItemRental(ctx, it.ID, u.ID, 10, RentalMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, ret.Item.RentedQuantity)
	require.Len(t, ret.Closed, 1)
	assert.NotNil(t, ret.Closed[0].EndTime)
	assert.Equal(t, "good", ret.Closed[0].Condition)
	assert.Equal(t, 0, assertItemConsistent(t, r, it.ID).RentedQuantity)
}

func TestItemRentInsufficientStock(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "cable", 3)
	u := mkUser(t, r, "u1", models.RoleUser)

	_, err := r.StartItemRental(ctx, it.ID, u.ID, 4, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got := assertItemConsistent(t, r, it.ID)
	assert.Equal(t, 0, got.RentedQuantity)
	ls, err := r.ListItemRentals(ctx, it.ID, "", false)
	require.NoError(t, err)
	assert.Empty(t, ls)
}

func TestItemRentRejections(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	empty := mkItem(t, r, "empty", 0)
	it := mkItem(t, r, "tripod", 2)
	u := mkUser(t, r, "u2", models.RoleUser)

	_, err := r.StartItemRental(ctx, empty.ID, u.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)

	_, err = r.StartItemRental(ctx, "00000000-0000-0000-0000-000000000000", u.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = r.StartItemRental(ctx, it.ID, "00000000-0000-0000-0000-000000000000", 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = r.SoftDeleteUser(ctx, u.ID)
	require.NoError(t, err)
	_, err = r.StartItemRental(ctx, it.ID, u.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "got %v", err)
	assert.Equal(t, 0, assertItemConsistent(t, r, it.ID).RentedQuantity)
}

func TestItemPartialReturnSplitsRecord(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "laptop", 10)
	u := mkUser(t, r, "u3", models.RoleTeacher)

	first, err := r.StartItemRental(ctx, it.ID, u.ID, 3, RentalMeta{})
	require.NoError(t, err)
	second, err := r.StartItemRental(ctx, it.ID, u.ID, 2, RentalMeta{})
	require.NoError(t, err)

	ret, err := r.EndItemRental(ctx, it.ID, u.ID, 4, RentalMeta{Notes: "one scratched"})
	require.NoError(t, err)
	assert.Equal(t, 1, ret.Item.RentedQuantity)
	require.Len(t, ret.Closed, 2)
	assert.Equal(t, first.ID, ret.Closed[0].ID)
	assert.Equal(t, 3, ret.Closed[0].Quantity)
	assert.NotEqual(t, second.ID, ret.Closed[1].ID)
	assert.Equal(t, 1, ret.Closed[1].Quantity)
	assert.Equal(t, "one scratched", ret.Closed[1].Notes)

	open, err := r.ListItemRentals(ctx, it.ID, u.ID, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
	assert.Equal(t, 1, open[0].Quantity)

	all, err := r.ListItemRentals(ctx, it.ID, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assertItemConsistent(t, r, it.ID)
}

func TestItemReturnErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "mic", 5)
	u := mkUser(t, r, "u4", models.RoleUser)
	other := mkUser(t, r, "u5", models.RoleUser)

	_, err := r.EndItemRental(ctx, it.ID, u.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = r.StartItemRental(ctx, it.ID, u.ID, 2, RentalMeta{})
	require.NoError(t, err)

	_, err = r.EndItemRental(ctx, it.ID, u.ID, 3, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// 别人的记录不能代还
	_, err = r.EndItemRental(ctx, it.ID, other.ID, 1, RentalMeta{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 2, assertItemConsistent(t, r, it.ID).RentedQuantity)
}

func TestConcurrentRentOfLastUnit(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "camera", 1)
	users := []*models.User{
		mkUser(t, r, "c1", models.RoleUser),
		mkUser(t, r, "c2", models.RoleUser),
	}

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = r.StartItemRental(ctx, it.ID, userID, 1, RentalMeta{})
		}(i, u.ID)
	}
	wg.Wait()

	ok := lo.CountBy(errs, func(err error) bool { return err == nil })
	conflicts := lo.CountBy(errs, func(err error) bool { return apperr.Is(err, apperr.KindConflict) })
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, assertItemConsistent(t, r, it.ID).RentedQuantity)
}

func TestUpdateAndDeleteItemRespectRented(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	it := mkItem(t, r, "speaker", 5)
	u := mkUser(t, r, "u6", models.RoleUser)
	_, err := r.StartItemRental(ctx, it.ID, u.ID, 3, RentalMeta{})
	require.NoError(t, err)

	_, err = r.UpdateItem(ctx, it.ID, map[string]any{"initial_quantity": 2})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := r.UpdateItem(ctx, it.ID, map[string]any{"initial_quantity": 3, "location": "B-201"})
	require.NoError(t, err)
	assert.Equal(t, 3, got.InitialQuantity)
	assert.Equal(t, "B-201", got.Location)
	assert.False(t, got.Rentable())

	_, err = r.SoftDeleteItem(ctx, it.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = r.EndItemRental(ctx, it.ID, u.ID, 3, RentalMeta{})
	require.NoError(t, err)
	deleted, err := r.SoftDeleteItem(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, deleted.DeletedAt.Valid)

	_, err = r.FindItemByID(ctx, it.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListRentedItemsWithRentals(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	a := mkItem(t, r, "a", 4)
	mkItem(t, r, "b", 4)
	u1 := mkUser(t, r, "u7", models.RoleUser)
	u2 := mkUser(t, r, "u8", models.RoleUser)

	_, err := r.StartItemRental(ctx, a.ID, u1.ID, 1, RentalMeta{})
	require.NoError(t, err)
	_, err = r.StartItemRental(ctx, a.ID, u2.ID, 2, RentalMeta{})
	require.NoError(t, err)

	rented, err := r.ListRentedItemsWithRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rented, 1)
	assert.Equal(t, a.ID, rented[0].ID)
	require.Len(t, rented[0].ActiveRentals, 2)
	names := lo.Map(rented[0].ActiveRentals, func(l models.InventoryRental, _ int) string { return l.User.Username })
	assert.ElementsMatch(t, []string{"u7", "u8"}, names)
}
