package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
	"gorm.io/gorm"
)

const (
	unsettledMaxRetentionDays = 60
	highValueAlertThreshold   = 5000
)

// TierChainResolver answers which distribution tiers of an order are
// qualified for profit. Membership-chain rules live behind this interface;
// the settlement engine only consumes the flags.
type TierChainResolver interface {
	ResolveTierQualification(ctx context.Context, order *models.Order) (utils.TierQualification, error)
}

// OrderChainResolver derives qualification from the payee ids recorded on
// the order itself: a tier is qualified when its payee is present.
type OrderChainResolver struct{}

func (OrderChainResolver) ResolveTierQualification(ctx context.Context, order *models.Order) (utils.TierQualification, error) {
	return utils.TierQualification{
		HasBigMom:    order.BigMomId > 0,
		HasMiddleMom: order.MiddleMomId > 0,
		HasSmallMom:  order.SmallMomId > 0,
		HasReferrer:  order.HasReferrer(),
	}, nil
}

// ApplyProfitBreakdown writes a computed breakdown onto the order wholesale.
// Returns true when the breakdown passed verification. On failure the order
// is flagged (calculation_verified=false + error log) but the write still
// happens so the failure is visible; it never panics.
//
// The order's own PlatformProfit column is the platform's TOTAL income on
// the order: waterfall residual plus both fees.
func ApplyProfitBreakdown(order *models.Order, breakdown utils.ProfitBreakdown) bool {
	now := time.Now().UTC()

	order.PlatformFee = breakdown.PlatformFee
	order.SupplierFee = breakdown.SupplierFee
	order.TaxAmount = breakdown.Tax
	order.ReferrerBonus = breakdown.ReferrerBonus
	order.SupplierAmount = breakdown.SupplierAmount
	order.BigMomProfit = breakdown.BigMomProfit
	order.MiddleMomProfit = breakdown.MiddleMomProfit
	order.SmallMomProfit = breakdown.SmallMomProfit
	order.PlatformProfit = breakdown.PlatformProfit.
		Add(breakdown.PlatformFee).
		Add(breakdown.SupplierFee)
	order.ProfitCalculatedAt = &now

	if raw, err := json.Marshal(breakdown); err == nil {
		order.ProfitBreakdown = raw
	}

	if err := breakdown.Verify(); err != nil {
		errLog := err.Error()
		order.CalculationVerified = false
		order.CalculationErrorLog = &errLog
		return false
	}

	order.CalculationVerified = true
	order.CalculationErrorLog = nil
	return true
}

// ProcessOrderProfitWorkflow computes and persists the money split for one
// order. Re-running it recomputes from scratch and replaces every split
// column; it never patches. Orders already settled are immutable and
// skipped.
func ProcessOrderProfitWorkflow(tx *gorm.DB, logger *logrus.Logger, orderId int, rates utils.ProfitRates, resolver TierChainResolver, platformCfg config.PlatformConfig) error {
	ctx := tx.Statement.Context

	var order models.Order
	if err := tx.First(&order, orderId).Error; err != nil {
		config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "GetOrder", orderId, err)
		return err
	}

	if order.IsSettled() {
		logger.WithFields(logrus.Fields{
			"order_id": order.ID,
		}).Info("order already settled, skipping profit recalculation")
		return nil
	}

	if resolver == nil {
		resolver = OrderChainResolver{}
	}
	tiers, err := resolver.ResolveTierQualification(ctx, &order)
	if err != nil {
		config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "ResolveTierQualification", order.ID, err)
		return err
	}

	breakdown, calcErr := utils.CalculateProfitBreakdown(order.SellingPrice, order.Cost, rates, tiers)
	if calcErr != nil {
		// Bad input or broken conservation: flag the order, keep going.
		errLog := calcErr.Error()
		order.CalculationVerified = false
		order.CalculationErrorLog = &errLog
		now := time.Now().UTC()
		order.ProfitCalculatedAt = &now

		if err := tx.Save(&order).Error; err != nil {
			config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "SaveFlaggedOrder", order.ID, err)
			return err
		}
		if err := models.PublishEvent(ctx, tx, models.EventTypeProfitFlagged, models.ReferenceTypeOrder, order.ID, 0, "", map[string]interface{}{
			"order_id": order.ID,
			"error":    errLog,
		}); err != nil {
			return err
		}
		config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "CalculateProfitBreakdown", order.ID, calcErr)
		return nil
	}

	verified := ApplyProfitBreakdown(&order, breakdown)
	if err := tx.Save(&order).Error; err != nil {
		config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "SaveOrder", order.ID, err)
		return err
	}

	if !verified {
		if err := models.PublishEvent(ctx, tx, models.EventTypeProfitFlagged, models.ReferenceTypeOrder, order.ID, 0, "", map[string]interface{}{
			"order_id": order.ID,
			"error":    order.CalculationErrorLog,
		}); err != nil {
			return err
		}
		return nil
	}

	if err := trackUnsettledOrder(tx, &order, platformCfg); err != nil {
		config.LogError(logger, "OrderProfitWorkflow.go", "ProcessOrderProfitWorkflow", "TrackUnsettledOrder", order.ID, err)
		return err
	}

	return nil
}

// trackUnsettledOrder upserts the reminder row that chases orders waiting
// for their settlement run.
func trackUnsettledOrder(tx *gorm.DB, order *models.Order, platformCfg config.PlatformConfig) error {
	now := time.Now().UTC()

	alertLevel := models.AlertLevelNormal
	if order.SellingPrice.GreaterThan(decimal.NewFromInt(highValueAlertThreshold)) {
		alertLevel = models.AlertLevelHigh
	}

	record := models.UnsettledOrder{
		OrderId:                order.ID,
		OrderAmount:            order.SellingPrice,
		ExpectedSettlementDate: nextSettlementDate(now, platformCfg.SettlementDays),
		MaxRetentionDate:       now.AddDate(0, 0, unsettledMaxRetentionDays),
		AlertLevel:             alertLevel,
	}

	err := tx.Create(&record).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKeyErr(err) {
		return err
	}
	return tx.Model(&models.UnsettledOrder{}).
		Where("order_id = ?", order.ID).
		Updates(map[string]interface{}{
			"order_amount":             order.SellingPrice,
			"expected_settlement_date": record.ExpectedSettlementDate,
			"alert_level":              alertLevel,
		}).Error
}

// nextSettlementDate returns the first configured settlement day strictly
// after t.
func nextSettlementDate(t time.Time, settlementDays []int) time.Time {
	if len(settlementDays) == 0 {
		settlementDays = []int{1, 16}
	}
	for add := 1; add <= 31; add++ {
		candidate := t.AddDate(0, 0, add)
		if utils.ContainsInt(settlementDays, candidate.Day()) {
			return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return t.AddDate(0, 0, 15)
}

// ResolveUnsettledOrders marks reminder rows resolved for orders that got
// settled.
func ResolveUnsettledOrders(tx *gorm.DB, orderIds []int) error {
	if len(orderIds) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return tx.Model(&models.UnsettledOrder{}).
		Where("order_id IN ? AND is_resolved = ?", orderIds, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": &now,
		}).Error
}

// OverdueUnsettledOrders lists unresolved reminder rows past their expected
// settlement date, high alerts first.
func OverdueUnsettledOrders(tx *gorm.DB, asOf time.Time) ([]models.UnsettledOrder, error) {
	var records []models.UnsettledOrder
	err := tx.
		Where("is_resolved = ? AND expected_settlement_date < ?", false, asOf).
		Order("CASE WHEN alert_level = 'high' THEN 0 ELSE 1 END, expected_settlement_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
