package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
	"gorm.io/gorm"
)

// GenerateAuditReport reconciles both half-month settlement periods of a
// month (period "YYYYMM") into one immutable report. Re-running for the same
// month returns the existing report unchanged.
func GenerateAuditReport(ctx context.Context, db *gorm.DB, logger *logrus.Logger, month string) (*models.AuditReport, error) {
	if len(month) != 6 {
		return nil, utils.NewValidationError("period", fmt.Sprintf("invalid month code %q", month))
	}
	monthTime, err := time.Parse("200601", month)
	if err != nil {
		return nil, utils.NewValidationError("period", fmt.Sprintf("invalid month code %q", month))
	}

	if existing, err := models.GetAuditReportByPeriod(ctx, db, month); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// The audit covers everything settled in the month, archived included.
	var settlements []models.Settlement
	periods := utils.PeriodsForMonth(monthTime.Year(), monthTime.Month())
	if err := db.WithContext(ctx).
		Where("period IN ?", periods).
		Order("id ASC").
		Find(&settlements).Error; err != nil {
		config.LogError(logger, "AuditReportWorkflow.go", "GenerateAuditReport", "LoadSettlements", month, err)
		return nil, err
	}

	totalRevenue := decimal.Zero
	totalCommission := decimal.Zero
	totalTax := decimal.Zero
	supplierBreakdown := models.JSONMap{}
	momBreakdown := models.JSONMap{}
	supplierSums := map[int]decimal.Decimal{}
	momSums := map[int]decimal.Decimal{}

	for _, s := range settlements {
		totalRevenue = totalRevenue.Add(s.TotalAmount)
		totalCommission = totalCommission.Add(s.CommissionAmount)
		totalTax = totalTax.Add(s.TaxAmount)

		switch s.SettlementType {
		case models.SettlementTypeSupplier:
			supplierSums[s.PayeeId] = supplierSums[s.PayeeId].Add(s.NetAmount)
		case models.SettlementTypeMom:
			momSums[s.PayeeId] = momSums[s.PayeeId].Add(s.NetAmount)
		}
	}
	for payeeId, amount := range supplierSums {
		supplierBreakdown[fmt.Sprint(payeeId)] = amount.StringFixed(2)
	}
	for payeeId, amount := range momSums {
		momBreakdown[fmt.Sprint(payeeId)] = amount.StringFixed(2)
	}

	report := models.AuditReport{
		Period:            month,
		TotalRevenue:      totalRevenue,
		TotalCommission:   totalCommission,
		TotalTax:          totalTax,
		SettlementCount:   len(settlements),
		SupplierBreakdown: supplierBreakdown,
		MomBreakdown:      momBreakdown,
		Status:            models.AuditReportStatusPending,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		return models.PublishEvent(ctx, tx, models.EventTypeAuditReportReady, models.ReferenceTypeAudit, report.ID, 0, month, map[string]interface{}{
			"report_id":        report.ID,
			"period":           month,
			"settlement_count": report.SettlementCount,
			"total_revenue":    report.TotalRevenue.StringFixed(2),
		})
	})
	if err != nil {
		// Lost a concurrent race; the other run's report stands.
		if isDuplicateKeyErr(err) {
			return models.GetAuditReportByPeriod(ctx, db, month)
		}
		config.LogError(logger, "AuditReportWorkflow.go", "GenerateAuditReport", "CreateReport", month, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"period":           month,
		"settlement_count": report.SettlementCount,
		"total_revenue":    report.TotalRevenue.StringFixed(2),
	}).Info("audit report generated")
	return &report, nil
}

// ReviewAuditReport transitions a report pending -> reviewed exactly once.
// A second review is a no-op returning false.
func ReviewAuditReport(ctx context.Context, db *gorm.DB, logger *logrus.Logger, reportId, adminId int, notes string) (bool, error) {
	now := time.Now().UTC()

	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}

	res := db.WithContext(ctx).Model(&models.AuditReport{}).
		Where("id = ? AND status = ?", reportId, models.AuditReportStatusPending).
		Updates(map[string]interface{}{
			"status":      models.AuditReportStatusReviewed,
			"reviewed_by": adminId,
			"reviewed_at": &now,
			"notes":       notesPtr,
		})
	if res.Error != nil {
		config.LogError(logger, "AuditReportWorkflow.go", "ReviewAuditReport", "MarkReviewed", reportId, res.Error)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
