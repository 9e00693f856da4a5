package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
)

func testRates() utils.ProfitRates {
	return utils.ProfitRates{
		PlatformFeeRate:     decimal.NewFromFloat(0.02),
		SupplierFeeRate:     decimal.NewFromFloat(0.02),
		ReferrerBonusRate:   decimal.NewFromFloat(0.02),
		BigMomProfitRate:    decimal.NewFromFloat(0.15),
		MiddleMomProfitRate: decimal.NewFromFloat(0.28),
	}
}

func TestProcessOrderProfitWorkflow(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	order := &models.Order{
		OrderNo:      "ORD-CALC",
		Status:       models.OrderStatusCompleted,
		SellingPrice: decimal.RequireFromString("1000"),
		Cost:         decimal.RequireFromString("700"),
		SupplierId:   11,
		BigMomId:     21,
		MiddleMomId:  22,
		SmallMomId:   23,
	}
	require.NoError(t, db.Create(order).Error)

	err := ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig())
	require.NoError(t, err)

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.True(t, got.CalculationVerified)
	assert.Nil(t, got.CalculationErrorLog)
	require.NotNil(t, got.ProfitCalculatedAt)
	assert.True(t, got.SupplierAmount.Equal(decimal.RequireFromString("686.00")), "supplier amount %s", got.SupplierAmount)
	assert.True(t, got.BigMomProfit.Equal(decimal.RequireFromString("35.55")), "big %s", got.BigMomProfit)
	assert.True(t, got.MiddleMomProfit.Equal(decimal.RequireFromString("56.41")), "middle %s", got.MiddleMomProfit)
	assert.True(t, got.SmallMomProfit.Equal(decimal.RequireFromString("145.08")), "small %s", got.SmallMomProfit)
	// No referrer: the reserved bonus reverts to the platform alongside both fees.
	assert.True(t, got.ReferrerBonus.IsZero())
	assert.True(t, got.PlatformProfit.Equal(decimal.RequireFromString("48.00")), "platform %s", got.PlatformProfit)
	assert.NotEmpty(t, got.ProfitBreakdown)

	// An unsettled-order reminder row was created.
	var reminder models.UnsettledOrder
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&reminder).Error)
	assert.False(t, reminder.IsResolved)
	assert.Equal(t, models.AlertLevelNormal, reminder.AlertLevel)
}

func TestProcessOrderProfitWorkflowRecomputesWholesale(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	order := &models.Order{
		OrderNo:      "ORD-RECALC",
		Status:       models.OrderStatusCompleted,
		SellingPrice: decimal.RequireFromString("1000"),
		Cost:         decimal.RequireFromString("700"),
		SupplierId:   11,
		BigMomId:     21,
		MiddleMomId:  22,
		SmallMomId:   23,
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	// The chain changes: middle mom drops out. Recalculation must replace
	// every split column, not patch some.
	require.NoError(t, db.Model(order).Updates(map[string]interface{}{
		"middle_mom_id": 0,
	}).Error)
	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.True(t, got.MiddleMomProfit.IsZero(), "middle %s", got.MiddleMomProfit)
	assert.True(t, got.BigMomProfit.Equal(decimal.RequireFromString("101.92")), "big %s", got.BigMomProfit)
	assert.True(t, got.SmallMomProfit.Equal(decimal.RequireFromString("135.12")), "small %s", got.SmallMomProfit)
	assert.True(t, got.CalculationVerified)
}

func TestProcessOrderProfitWorkflowSkipsSettledOrders(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	// The stored split is deliberately stale; a recompute would change it.
	settled := time.Now().UTC()
	order := seedOrder(t, db, "ORD-DONE", periodDate(t, "2026-02-03"), func(o *models.Order) {
		o.SettledAt = &settled
		o.BigMomProfit = decimal.RequireFromString("999.99")
	})

	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.True(t, got.BigMomProfit.Equal(decimal.RequireFromString("999.99")), "settled order must not be touched")
}

func TestProcessOrderProfitWorkflowFlagsBadInput(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	// Cost above selling price cannot split cleanly.
	order := &models.Order{
		OrderNo:      "ORD-BAD",
		Status:       models.OrderStatusCompleted,
		SellingPrice: decimal.RequireFromString("100"),
		Cost:         decimal.RequireFromString("200"),
		SupplierId:   11,
		SmallMomId:   23,
	}
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.False(t, got.CalculationVerified)
	require.NotNil(t, got.CalculationErrorLog)
	require.NotNil(t, got.ProfitCalculatedAt)

	var events int64
	require.NoError(t, db.Model(&models.EventRecord{}).
		Where("event_type = ?", models.EventTypeProfitFlagged).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestProcessOrderProfitWorkflowFlagsNegativeDistributable(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	// Margin too thin: fees and tax push the distributable pool below zero.
	order := &models.Order{
		OrderNo:      "ORD-THIN",
		Status:       models.OrderStatusCompleted,
		SellingPrice: decimal.RequireFromString("100"),
		Cost:         decimal.RequireFromString("99"),
		SupplierId:   11,
		BigMomId:     21,
		MiddleMomId:  22,
		SmallMomId:   23,
	}
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.False(t, got.CalculationVerified)
	require.NotNil(t, got.CalculationErrorLog)
	assert.Contains(t, *got.CalculationErrorLog, "negative")
	// No split may be persisted for an unallocatable order.
	assert.True(t, got.BigMomProfit.IsZero())
	assert.True(t, got.PlatformProfit.IsZero())

	var events int64
	require.NoError(t, db.Model(&models.EventRecord{}).
		Where("event_type = ?", models.EventTypeProfitFlagged).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	// Flagged orders never enter a settlement batch.
	result, err := GenerateSettlementBatch(context.Background(), db, logger,
		utils.SettlementPeriodFor(time.Now().UTC()), testPlatformConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, result.SettlementsCreated)
}

func TestApplyProfitBreakdownVerificationFailure(t *testing.T) {
	breakdown, err := utils.CalculateProfitBreakdown(
		decimal.RequireFromString("1000"), decimal.RequireFromString("700"),
		testRates(), utils.TierQualification{HasBigMom: true, HasMiddleMom: true, HasSmallMom: true})
	require.NoError(t, err)

	// Corrupt the breakdown; the writer must flag, not panic.
	breakdown.Tax = breakdown.Tax.Add(decimal.RequireFromString("0.01"))

	var order models.Order
	ok := ApplyProfitBreakdown(&order, breakdown)
	assert.False(t, ok)
	assert.False(t, order.CalculationVerified)
	require.NotNil(t, order.CalculationErrorLog)
	assert.NotNil(t, order.ProfitCalculatedAt)
}

func TestTrackUnsettledOrderHighValueAlert(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()

	order := &models.Order{
		OrderNo:      "ORD-BIG",
		Status:       models.OrderStatusCompleted,
		SellingPrice: decimal.RequireFromString("8000"),
		Cost:         decimal.RequireFromString("5000"),
		SupplierId:   11,
		SmallMomId:   23,
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, ProcessOrderProfitWorkflow(db, logger, order.ID, testRates(), nil, testPlatformConfig()))

	var reminder models.UnsettledOrder
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&reminder).Error)
	assert.Equal(t, models.AlertLevelHigh, reminder.AlertLevel)
	assert.True(t, reminder.MaxRetentionDate.After(reminder.ExpectedSettlementDate))
}
