package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"gorm.io/gorm"
)

const autoRejectReason = "auto-rejected: unconfirmed past expiry window"

// withinDisputeWindow reports whether a statement action at now is still in
// time. The boundary is inclusive: exactly at the deadline is in time, one
// second later is not.
func withinDisputeWindow(now, deadline time.Time) bool {
	return !now.After(deadline)
}

// ConfirmStatement finalizes a statement on behalf of its payee and confirms
// the owning settlement. Returns false (clean no-op) when the caller is not
// the payee, the deadline has passed, or the statement is already finalized;
// a retried confirm is therefore a false, never an error. The deadline
// boundary is inclusive: confirmation exactly at the deadline succeeds.
func ConfirmStatement(ctx context.Context, db *gorm.DB, logger *logrus.Logger, statementId, payeeId int) (bool, error) {
	statement, err := models.GetStatementById(ctx, db, statementId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if statement.PayeeId != payeeId {
		return false, nil
	}
	if statement.IsFinalized {
		return false, nil
	}

	now := time.Now().UTC()
	if !withinDisputeWindow(now, statement.DisputeDeadline) {
		logger.WithFields(logrus.Fields{
			"statement_id": statementId,
			"deadline":     statement.DisputeDeadline,
		}).Warn("statement confirmation past deadline")
		return false, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SettlementStatement{}).
			Where("id = ? AND is_finalized = ?", statementId, false).
			Updates(map[string]interface{}{
				"is_finalized": true,
				"finalized_at": &now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Settlement{}).
			Where("id = ? AND status = ?", statement.SettlementId, models.SettlementStatusPending).
			Updates(map[string]interface{}{
				"status":       models.SettlementStatusConfirmed,
				"is_confirmed": true,
				"confirmed_at": &now,
			}).Error
	})
	if err != nil {
		config.LogError(logger, "SettlementLifecycleWorkflow.go", "ConfirmStatement", "Finalize", statementId, err)
		return false, err
	}
	return true, nil
}

// DisputeStatement records a payee dispute on a not-yet-finalized statement
// before the deadline. The dispute is advisory: it flags the statement and
// notifies, but does not block payment.
func DisputeStatement(ctx context.Context, db *gorm.DB, logger *logrus.Logger, statementId, payeeId int, content string) (bool, error) {
	statement, err := models.GetStatementById(ctx, db, statementId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if statement.PayeeId != payeeId || statement.IsFinalized {
		return false, nil
	}

	now := time.Now().UTC()
	if !withinDisputeWindow(now, statement.DisputeDeadline) {
		return false, nil
	}

	details := models.JSONMap{
		"content":     content,
		"disputed_at": now.Format(time.RFC3339),
		"payee_id":    payeeId,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SettlementStatement{}).
			Where("id = ?", statementId).
			Updates(map[string]interface{}{
				"is_disputed":     true,
				"dispute_details": details,
			}).Error; err != nil {
			return err
		}
		return models.PublishEvent(ctx, tx, models.EventTypeStatementDisputed, models.ReferenceTypeStatement, statementId, payeeId, statement.Period, map[string]interface{}{
			"statement_id":  statementId,
			"settlement_id": statement.SettlementId,
			"content":       content,
		})
	})
	if err != nil {
		config.LogError(logger, "SettlementLifecycleWorkflow.go", "DisputeStatement", "RecordDispute", statementId, err)
		return false, err
	}
	return true, nil
}

// ProcessPayment marks a confirmed settlement paid and stamps settled_at on
// every order it covers, all in one transaction. After this the covered
// order splits are immutable. Paying an already-paid settlement is a no-op
// returning true.
func ProcessPayment(ctx context.Context, db *gorm.DB, logger *logrus.Logger, settlementId int) (bool, error) {
	var settlement models.Settlement
	if err := db.WithContext(ctx).First(&settlement, settlementId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if settlement.Status == models.SettlementStatusPaid {
		return true, nil
	}
	if !settlement.IsConfirmed || settlement.Status != models.SettlementStatusConfirmed {
		return false, nil
	}

	now := time.Now().UTC()
	orderIds := settlement.OrderDetails.OrderIds()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Settlement{}).
			Where("id = ? AND status = ?", settlementId, models.SettlementStatusConfirmed).
			Updates(map[string]interface{}{
				"status":  models.SettlementStatusPaid,
				"paid_at": &now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another admin paid it between our read and this update.
			return nil
		}

		if len(orderIds) > 0 {
			if err := tx.Model(&models.Order{}).
				Where("id IN ? AND settled_at IS NULL", orderIds).
				Update("settled_at", &now).Error; err != nil {
				return err
			}
			if err := ResolveUnsettledOrders(tx, orderIds); err != nil {
				return err
			}
		}

		return models.PublishEvent(ctx, tx, models.EventTypePaymentProcessed, models.ReferenceTypeSettlement, settlementId, settlement.PayeeId, settlement.Period, map[string]interface{}{
			"settlement_id": settlementId,
			"payee_id":      settlement.PayeeId,
			"net_amount":    settlement.NetAmount.StringFixed(2),
			"paid_at":       now.Format(time.RFC3339),
		})
	})
	if err != nil {
		config.LogError(logger, "SettlementLifecycleWorkflow.go", "ProcessPayment", "MarkPaid", settlementId, err)
		return false, err
	}

	logger.WithFields(logrus.Fields{
		"settlement_id": settlementId,
		"payee_id":      settlement.PayeeId,
		"order_count":   len(orderIds),
	}).Info("settlement paid")
	return true, nil
}

// ExpireSettlements runs the retention sweep: pending settlements past the
// expiry window are auto-rejected, and terminal settlements past the archive
// window are flagged archived (retained, excluded from active queries).
func ExpireSettlements(ctx context.Context, db *gorm.DB, logger *logrus.Logger, platformCfg config.PlatformConfig) (rejected int64, archived int64, err error) {
	now := time.Now().UTC()
	rejectBefore := now.AddDate(0, 0, -platformCfg.PendingExpiryDays)
	archiveBefore := now.AddDate(0, 0, -platformCfg.ArchiveAfterDays)

	reason := autoRejectReason
	res := db.WithContext(ctx).Model(&models.Settlement{}).
		Where("status = ? AND is_archived = ? AND created_at < ?", models.SettlementStatusPending, false, rejectBefore).
		Updates(map[string]interface{}{
			"status":        models.SettlementStatusRejected,
			"reject_reason": &reason,
		})
	if res.Error != nil {
		config.LogError(logger, "SettlementLifecycleWorkflow.go", "ExpireSettlements", "AutoReject", rejectBefore, res.Error)
		return 0, 0, res.Error
	}
	rejected = res.RowsAffected

	res = db.WithContext(ctx).Model(&models.Settlement{}).
		Where("status IN ? AND is_archived = ? AND updated_at < ?",
			[]models.SettlementStatus{models.SettlementStatusConfirmed, models.SettlementStatusPaid, models.SettlementStatusRejected},
			false, archiveBefore).
		Update("is_archived", true)
	if res.Error != nil {
		config.LogError(logger, "SettlementLifecycleWorkflow.go", "ExpireSettlements", "Archive", archiveBefore, res.Error)
		return rejected, 0, res.Error
	}
	archived = res.RowsAffected

	if rejected > 0 || archived > 0 {
		logger.WithFields(logrus.Fields{
			"rejected": rejected,
			"archived": archived,
		}).Info("settlement expiry sweep completed")
	}
	return rejected, archived, nil
}
