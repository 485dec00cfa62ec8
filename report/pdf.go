// Package report renders the inventory report as a PDF document.
package report

import (
	"fmt"
	"io"
	"time"

	"Gin_postgres_redis_campus_rent/db"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type InventoryRow struct {
	ID            string              `json:"id"`
	ItemCode      string              `json:"itemCode"`
	Name          string              `json:"name"`
	Location      string              `json:"location"`
	Category      string              `json:"category"`
	Initial       int                 `json:"initialQuantity"`
	Rented        int                 `json:"rentedQuantity"`
	Available     int                 `json:"availableQuantity"`
	ActiveRentals int64               `json:"activeRentals"`
	PurchasePrice decimal.NullDecimal `json:"purchasePrice"`
}

type InventoryReport struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Totals      db.InventoryTotals `json:"totals"`
	// 有单价的物品按 initial * price 汇总
	TotalValue decimal.Decimal `json:"totalValue"`
	Rows       []InventoryRow  `json:"items"`
}

// WriteInventoryPDF A4 横向表格
func WriteInventoryPDF(w io.Writer, title string, r *InventoryReport) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, tr(title+" - Inventory report"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Generated "+r.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	t := r.Totals
	pdf.CellFormat(contentW, 5, fmt.Sprintf(
		"Items: %d   Units: %d   Rented: %d   Available: %d   Active rentals: %d   Value: %s",
		t.Items, t.TotalUnits, t.RentedUnits, t.AvailableUnits, t.ActiveRentals, r.TotalValue.StringFixed(2),
	), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	widths := []float64{30, 70, 45, 35, 20, 20, 20, 17, 20}
	headers := []string{"Code", "Name", "Location", "Category", "Initial", "Rented", "Avail.", "Active", "Price"}
	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range headers {
			align := "L"
			if i >= 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, h, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	header()

	_, pageH := pdf.GetPageSize()
	for _, row := range r.Rows {
		if pdf.GetY()+6 > pageH-12 {
			pdf.AddPage()
			header()
		}
		price := "-"
		if row.PurchasePrice.Valid {
			price = row.PurchasePrice.Decimal.StringFixed(2)
		}
		cells := []string{
			truncate(row.ItemCode, 18), truncate(row.Name, 45), truncate(row.Location, 28), truncate(row.Category, 22),
			fmt.Sprint(row.Initial), fmt.Sprint(row.Rented), fmt.Sprint(row.Available), fmt.Sprint(row.ActiveRentals), price,
		}
		for i, s := range cells {
			align := "L"
			if i >= 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(s), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
