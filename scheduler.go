package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
	"github.com/taomama/groupbuy_backend/workflow"
	"gorm.io/gorm"
)

const schedulerTickInterval = time.Hour

// RunScheduler drives the calendar jobs: settlement batches on the
// configured days of month, the monthly audit report, and the hourly expiry
// sweep. A Redis lock keeps one instance at a time on the tick as a
// best-effort optimization; correctness comes from the DB idempotency keys,
// so losing Redis only costs duplicate attempts, never duplicate effects.
func RunScheduler(ctx context.Context, db *gorm.DB, logger *logrus.Logger, platformCfg config.PlatformConfig) {
	ticker := time.NewTicker(schedulerTickInterval)
	defer ticker.Stop()

	runSchedulerTick(ctx, db, logger, platformCfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSchedulerTick(ctx, db, logger, platformCfg)
		}
	}
}

func runSchedulerTick(ctx context.Context, db *gorm.DB, logger *logrus.Logger, platformCfg config.PlatformConfig) {
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "scheduler:tick", 10*time.Minute, nil)
		if err != nil {
			if err != redislock.ErrNotObtained {
				config.LogError(logger, "scheduler.go", "runSchedulerTick", "ObtainLock", nil, err)
			}
			return
		}
		defer lock.Release(ctx)
	}

	now := time.Now().UTC()

	if utils.ContainsInt(platformCfg.SettlementDays, now.Day()) {
		runSettlementBatchJob(ctx, db, logger, now, platformCfg)
	}
	if now.Day() == platformCfg.AuditReportDay {
		runAuditReportJob(ctx, db, logger, now)
	}

	if _, _, err := workflow.ExpireSettlements(ctx, db, logger, platformCfg); err != nil {
		config.LogError(logger, "scheduler.go", "runSchedulerTick", "ExpireSettlements", nil, err)
	}

	reportOverdueUnsettledOrders(db, logger, now)
}

// runSettlementBatchJob settles the period that just closed: the prior
// month's second half on day 1, the current month's first half on day 16.
// The DB idempotency key pins the job to one run per calendar day.
func runSettlementBatchJob(ctx context.Context, db *gorm.DB, logger *logrus.Logger, now time.Time, platformCfg config.PlatformConfig) {
	period := utils.PreviousSettlementPeriod(now)
	jobKey := fmt.Sprintf("%s:%s", period, now.Format("2006-01-02"))

	skip, err := workflow.BeginIdempotency(db, "scheduler.settlement-batch", jobKey)
	if err != nil || skip {
		return
	}

	result, err := workflow.GenerateSettlementBatch(ctx, db, logger, period, platformCfg)
	if err != nil {
		_ = workflow.MarkIdempotencyFailed(db, "scheduler.settlement-batch", jobKey, err)
		config.LogError(logger, "scheduler.go", "runSettlementBatchJob", "GenerateSettlementBatch", period, err)
		return
	}
	_ = workflow.MarkIdempotencySucceeded(db, "scheduler.settlement-batch", jobKey)

	logger.WithFields(logrus.Fields{
		"period":              period,
		"settlements_created": result.SettlementsCreated,
	}).Info("scheduled settlement batch completed")
}

// runAuditReportJob reconciles the previous month once both its settlement
// periods exist.
func runAuditReportJob(ctx context.Context, db *gorm.DB, logger *logrus.Logger, now time.Time) {
	prevMonth := now.AddDate(0, 0, -now.Day())
	month := prevMonth.Format("200601")
	jobKey := fmt.Sprintf("%s:%s", month, now.Format("2006-01-02"))

	skip, err := workflow.BeginIdempotency(db, "scheduler.audit-report", jobKey)
	if err != nil || skip {
		return
	}

	report, err := workflow.GenerateAuditReport(ctx, db, logger, month)
	if err != nil {
		_ = workflow.MarkIdempotencyFailed(db, "scheduler.audit-report", jobKey, err)
		config.LogError(logger, "scheduler.go", "runAuditReportJob", "GenerateAuditReport", month, err)
		return
	}
	_ = workflow.MarkIdempotencySucceeded(db, "scheduler.audit-report", jobKey)

	if _, err := workflow.RunReconciliationChecks(ctx, db, logger, month+"a"); err != nil {
		config.LogError(logger, "scheduler.go", "runAuditReportJob", "RunReconciliationChecks", month+"a", err)
	}
	if _, err := workflow.RunReconciliationChecks(ctx, db, logger, month+"b"); err != nil {
		config.LogError(logger, "scheduler.go", "runAuditReportJob", "RunReconciliationChecks", month+"b", err)
	}

	logger.WithFields(logrus.Fields{
		"period":    month,
		"report_id": report.ID,
	}).Info("scheduled audit report completed")
}

func reportOverdueUnsettledOrders(db *gorm.DB, logger *logrus.Logger, now time.Time) {
	overdue, err := workflow.OverdueUnsettledOrders(db, now)
	if err != nil {
		config.LogError(logger, "scheduler.go", "reportOverdueUnsettledOrders", "OverdueUnsettledOrders", nil, err)
		return
	}
	for _, rec := range overdue {
		entry := logger.WithFields(logrus.Fields{
			"order_id":           rec.OrderId,
			"order_amount":       rec.OrderAmount.StringFixed(2),
			"expected_date":      rec.ExpectedSettlementDate.Format("2006-01-02"),
			"max_retention_date": rec.MaxRetentionDate.Format("2006-01-02"),
		})
		if rec.AlertLevel == models.AlertLevelHigh || now.After(rec.MaxRetentionDate) {
			entry.Warn("unsettled order overdue")
		} else {
			entry.Info("unsettled order pending past expected date")
		}
	}
}
