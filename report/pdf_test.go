package report

import (
	"bytes"
	"testing"
	"time"

	"Gin_postgres_redis_campus_rent/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteInventoryPDF(t *testing.T) {
	rows := make([]InventoryRow, 0, 80)
	for i := 0; i < 80; i++ {
		rows = append(rows, InventoryRow{
			ItemCode: "PRJ-001", Name: "Projector with an unusually long descriptive name", Location: "Lab 2",
			Initial: 10, Rented: 3, Available: 7, ActiveRentals: 2,
			PurchasePrice: decimal.NewNullDecimal(decimal.RequireFromString("1250000.50")),
		})
	}
	rep := &InventoryReport{
		GeneratedAt: time.Now(),
		Totals:      db.InventoryTotals{Items: 80, TotalUnits: 800, RentedUnits: 240, AvailableUnits: 560},
		Rows:        rows,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInventoryPDF(&buf, "Campus Rent", rep))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd.", truncate("abcdefgh", 5))
}
