package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taomama/groupbuy_backend/models"
	"gorm.io/gorm"
)

func seedSettlementWithStatement(t *testing.T, db *gorm.DB, payeeId int, deadline time.Time, orderIds ...int) (*models.Settlement, *models.SettlementStatement) {
	t.Helper()

	details := models.OrderDetailList{}
	for _, id := range orderIds {
		details = append(details, models.OrderDetail{OrderId: id, Amount: decimal.RequireFromString("100.00")})
	}

	settlement := &models.Settlement{
		Period:         "202602a",
		PayeeId:        payeeId,
		SettlementType: models.SettlementTypeMom,
		TotalAmount:    details.TotalAmount(),
		NetAmount:      details.TotalAmount(),
		OrderCount:     len(details),
		OrderDetails:   details,
		Status:         models.SettlementStatusPending,
	}
	require.NoError(t, db.Create(settlement).Error)

	statement := &models.SettlementStatement{
		SettlementId:    settlement.ID,
		Period:          settlement.Period,
		PayeeId:         payeeId,
		TotalAmount:     settlement.TotalAmount,
		NetAmount:       settlement.NetAmount,
		DisputeDeadline: deadline,
	}
	require.NoError(t, db.Create(statement).Error)
	return settlement, statement
}

func TestConfirmStatement(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	settlement, statement := seedSettlementWithStatement(t, db, 21, future)

	ok, err := ConfirmStatement(ctx, db, logger, statement.ID, 21)
	require.NoError(t, err)
	assert.True(t, ok)

	var gotStatement models.SettlementStatement
	require.NoError(t, db.First(&gotStatement, statement.ID).Error)
	assert.True(t, gotStatement.IsFinalized)
	require.NotNil(t, gotStatement.FinalizedAt)

	var gotSettlement models.Settlement
	require.NoError(t, db.First(&gotSettlement, settlement.ID).Error)
	assert.Equal(t, models.SettlementStatusConfirmed, gotSettlement.Status)
	assert.True(t, gotSettlement.IsConfirmed)

	// A retried confirm is a clean no-op returning false, never an error.
	ok, err = ConfirmStatement(ctx, db, logger, statement.ID, 21)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.First(&gotSettlement, settlement.ID).Error)
	assert.Equal(t, models.SettlementStatusConfirmed, gotSettlement.Status)
}

func TestDisputeWindowBoundary(t *testing.T) {
	deadline := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	// Exactly at the deadline is still in time; one second later is not.
	assert.True(t, withinDisputeWindow(deadline, deadline))
	assert.True(t, withinDisputeWindow(deadline.Add(-time.Second), deadline))
	assert.False(t, withinDisputeWindow(deadline.Add(time.Second), deadline))
}

func TestConfirmStatementRejections(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()

	t.Run("wrong payee", func(t *testing.T) {
		_, statement := seedSettlementWithStatement(t, db, 31, time.Now().UTC().Add(time.Hour))
		ok, err := ConfirmStatement(ctx, db, logger, statement.ID, 99)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("past deadline", func(t *testing.T) {
		settlement, statement := seedSettlementWithStatement(t, db, 32, time.Now().UTC().Add(-time.Second))
		ok, err := ConfirmStatement(ctx, db, logger, statement.ID, 32)
		require.NoError(t, err)
		assert.False(t, ok)

		var got models.Settlement
		require.NoError(t, db.First(&got, settlement.ID).Error)
		assert.Equal(t, models.SettlementStatusPending, got.Status)
	})

	t.Run("missing statement", func(t *testing.T) {
		ok, err := ConfirmStatement(ctx, db, logger, 999999, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDisputeStatement(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()

	_, statement := seedSettlementWithStatement(t, db, 41, time.Now().UTC().Add(time.Hour))

	ok, err := DisputeStatement(ctx, db, logger, statement.ID, 41, "missing order 123 refund")
	require.NoError(t, err)
	assert.True(t, ok)

	var got models.SettlementStatement
	require.NoError(t, db.First(&got, statement.ID).Error)
	assert.True(t, got.IsDisputed)
	assert.Equal(t, "missing order 123 refund", got.DisputeDetails["content"])

	var events int64
	require.NoError(t, db.Model(&models.EventRecord{}).
		Where("event_type = ?", models.EventTypeStatementDisputed).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	// A dispute does not block confirmation or payment.
	ok, err = ConfirmStatement(ctx, db, logger, statement.ID, 41)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisputeStatementAfterFinalizeFails(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()

	_, statement := seedSettlementWithStatement(t, db, 42, time.Now().UTC().Add(time.Hour))

	ok, err := ConfirmStatement(ctx, db, logger, statement.ID, 42)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = DisputeStatement(ctx, db, logger, statement.ID, 42, "too late")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcessPayment(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()

	order := seedOrder(t, db, "ORD-PAY", periodDate(t, "2026-02-03"), nil)
	settlement, statement := seedSettlementWithStatement(t, db, 21, time.Now().UTC().Add(time.Hour), order.ID)

	// Not payable before confirmation.
	ok, err := ProcessPayment(ctx, db, logger, settlement.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ConfirmStatement(ctx, db, logger, statement.ID, 21)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ProcessPayment(ctx, db, logger, settlement.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var gotSettlement models.Settlement
	require.NoError(t, db.First(&gotSettlement, settlement.ID).Error)
	assert.Equal(t, models.SettlementStatusPaid, gotSettlement.Status)
	require.NotNil(t, gotSettlement.PaidAt)

	// The covered order is stamped immutable.
	var gotOrder models.Order
	require.NoError(t, db.First(&gotOrder, order.ID).Error)
	require.NotNil(t, gotOrder.SettledAt)

	var events int64
	require.NoError(t, db.Model(&models.EventRecord{}).
		Where("event_type = ?", models.EventTypePaymentProcessed).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	// Paying again is a no-op returning true, without a second event.
	ok, err = ProcessPayment(ctx, db, logger, settlement.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, db.Model(&models.EventRecord{}).
		Where("event_type = ?", models.EventTypePaymentProcessed).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestExpireSettlements(t *testing.T) {
	db := newTestDB(t)
	logger := newTestLogger()
	ctx := context.Background()
	cfg := testPlatformConfig()

	stale, _ := seedSettlementWithStatement(t, db, 51, time.Now().UTC().Add(time.Hour))
	fresh, _ := seedSettlementWithStatement(t, db, 52, time.Now().UTC().Add(time.Hour))
	old, _ := seedSettlementWithStatement(t, db, 53, time.Now().UTC().Add(time.Hour))

	// Age the stale pending settlement past the expiry window and the paid
	// one past the archive window.
	require.NoError(t, db.Model(stale).Update("created_at", time.Now().UTC().AddDate(0, 0, -31)).Error)
	require.NoError(t, db.Model(old).Updates(map[string]interface{}{
		"status":       models.SettlementStatusPaid,
		"is_confirmed": true,
	}).Error)
	require.NoError(t, db.Model(old).Update("updated_at", time.Now().UTC().AddDate(0, 0, -91)).Error)

	rejected, archived, err := ExpireSettlements(ctx, db, logger, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rejected)
	assert.EqualValues(t, 1, archived)

	var gotStale models.Settlement
	require.NoError(t, db.First(&gotStale, stale.ID).Error)
	assert.Equal(t, models.SettlementStatusRejected, gotStale.Status)
	require.NotNil(t, gotStale.RejectReason)

	var gotOld models.Settlement
	require.NoError(t, db.First(&gotOld, old.ID).Error)
	assert.True(t, gotOld.IsArchived)

	var gotFresh models.Settlement
	require.NoError(t, db.First(&gotFresh, fresh.ID).Error)
	assert.Equal(t, models.SettlementStatusPending, gotFresh.Status)
	assert.False(t, gotFresh.IsArchived)
}
