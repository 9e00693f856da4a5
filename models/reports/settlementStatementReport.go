package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportSettlementStatementsExcel writes one row per settlement of the
// period into an xlsx workbook.
func ExportSettlementStatementsExcel(ctx context.Context, period string, w io.Writer) error {
	db := config.GetDB()

	settlements, err := models.GetSettlementsByPeriod(ctx, db, period)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Settlements"
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"SettlementId", "Period", "PayeeId", "Type", "Status",
		"TotalAmount", "Commission", "Tax", "NetAmount", "OrderCount", "Confirmed", "PaidAt"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	for i, s := range settlements {
		row := i + 2
		paidAt := ""
		if s.PaidAt != nil {
			paidAt = s.PaidAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			s.ID, s.Period, s.PayeeId, string(s.SettlementType), string(s.Status),
			s.TotalAmount.StringFixed(2), s.CommissionAmount.StringFixed(2),
			s.TaxAmount.StringFixed(2), s.NetAmount.StringFixed(2),
			s.OrderCount, s.IsConfirmed, paidAt,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	return f.Write(w)
}

// ExportAuditReportExcel writes the monthly audit report with its per-payee
// breakdown sheets.
func ExportAuditReportExcel(ctx context.Context, period string, w io.Writer) error {
	db := config.GetDB()

	report, err := models.GetAuditReportByPeriod(ctx, db, period)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "Summary"
	idx, err := f.NewSheet(summarySheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(summarySheet, "A1", "Period")
	f.SetCellValue(summarySheet, "B1", report.Period)
	f.SetCellValue(summarySheet, "A2", "TotalRevenue")
	f.SetCellValue(summarySheet, "B2", report.TotalRevenue.StringFixed(2))
	f.SetCellValue(summarySheet, "A3", "TotalCommission")
	f.SetCellValue(summarySheet, "B3", report.TotalCommission.StringFixed(2))
	f.SetCellValue(summarySheet, "A4", "TotalTax")
	f.SetCellValue(summarySheet, "B4", report.TotalTax.StringFixed(2))
	f.SetCellValue(summarySheet, "A5", "SettlementCount")
	f.SetCellValue(summarySheet, "B5", report.SettlementCount)
	f.SetCellValue(summarySheet, "A6", "Status")
	f.SetCellValue(summarySheet, "B6", string(report.Status))

	if err := writeBreakdownSheet(f, "Suppliers", report.SupplierBreakdown); err != nil {
		return err
	}
	if err := writeBreakdownSheet(f, "Moms", report.MomBreakdown); err != nil {
		return err
	}

	return f.Write(w)
}

func writeBreakdownSheet(f *excelize.File, sheetName string, breakdown models.JSONMap) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "PayeeId")
	f.SetCellValue(sheetName, "B1", "Amount")

	row := 2
	for payee, amount := range breakdown {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), payee)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), fmt.Sprint(amount))
		row++
	}
	return nil
}
