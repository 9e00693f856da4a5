package workflow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/models"
	"gorm.io/gorm"
)

// ReconciliationFinding is one inconsistency found by the sweep.
type ReconciliationFinding struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

// RunReconciliationChecks cross-checks settlements against the order ledger
// for one period. It never mutates anything; findings are returned and
// logged for operator follow-up.
func RunReconciliationChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger, period string) ([]ReconciliationFinding, error) {
	var findings []ReconciliationFinding

	var settlements []models.Settlement
	if err := db.WithContext(ctx).Where("period = ?", period).Find(&settlements).Error; err != nil {
		return nil, err
	}

	for _, s := range settlements {
		// Detail lines must sum to the settlement's net amount.
		detailSum := s.OrderDetails.TotalAmount()
		if !detailSum.Equal(s.NetAmount) {
			findings = append(findings, ReconciliationFinding{
				Check: "settlement_detail_sum",
				Detail: fmt.Sprintf("settlement %d: order details sum %s != net amount %s",
					s.ID, detailSum.StringFixed(2), s.NetAmount.StringFixed(2)),
			})
		}

		if s.OrderCount != len(s.OrderDetails) {
			findings = append(findings, ReconciliationFinding{
				Check: "settlement_order_count",
				Detail: fmt.Sprintf("settlement %d: order_count %d != detail lines %d",
					s.ID, s.OrderCount, len(s.OrderDetails)),
			})
		}

		// Paid settlements must have stamped every covered order.
		if s.Status == models.SettlementStatusPaid {
			orderIds := s.OrderDetails.OrderIds()
			if len(orderIds) > 0 {
				var unstamped int64
				if err := db.WithContext(ctx).Model(&models.Order{}).
					Where("id IN ? AND settled_at IS NULL", orderIds).
					Count(&unstamped).Error; err != nil {
					return nil, err
				}
				if unstamped > 0 {
					findings = append(findings, ReconciliationFinding{
						Check: "paid_settlement_unstamped_orders",
						Detail: fmt.Sprintf("settlement %d: %d covered orders missing settled_at",
							s.ID, unstamped),
					})
				}
			}
		}
	}

	// Flagged orders must never appear inside a settlement.
	for _, s := range settlements {
		orderIds := s.OrderDetails.OrderIds()
		if len(orderIds) == 0 {
			continue
		}
		var unverified int64
		if err := db.WithContext(ctx).Model(&models.Order{}).
			Where("id IN ? AND calculation_verified = ?", orderIds, false).
			Count(&unverified).Error; err != nil {
			return nil, err
		}
		if unverified > 0 {
			findings = append(findings, ReconciliationFinding{
				Check: "settled_unverified_orders",
				Detail: fmt.Sprintf("settlement %d covers %d unverified orders",
					s.ID, unverified),
			})
		}
	}

	for _, f := range findings {
		logger.WithFields(logrus.Fields{
			"period": period,
			"check":  f.Check,
		}).Error("reconciliation finding: " + f.Detail)
	}
	if len(findings) == 0 {
		logger.WithFields(logrus.Fields{"period": period}).Info("reconciliation checks clean")
	}

	return findings, nil
}
