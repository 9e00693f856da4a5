package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"github.com/taomama/groupbuy_backend/utils"
	"gorm.io/gorm"
)

const batchWorkerCount = 4

type groupKey struct {
	PayeeId        int
	SettlementType models.SettlementType
}

// settlementGroup accumulates one payee's payable for the period.
type settlementGroup struct {
	PayeeId        int
	SettlementType models.SettlementType
	TotalAmount    decimal.Decimal
	Commission     decimal.Decimal
	TaxAmount      decimal.Decimal
	OrderDetails   models.OrderDetailList
}

func (g *settlementGroup) NetAmount() decimal.Decimal {
	return g.TotalAmount.Sub(g.Commission).Sub(g.TaxAmount)
}

// OrderError is a per-order failure collected during batch generation. The
// batch never aborts wholesale over a single bad order.
type OrderError struct {
	OrderId int    `json:"order_id"`
	Reason  string `json:"reason"`
}

type BatchResult struct {
	Period             string       `json:"period"`
	SettlementsCreated int          `json:"settlements_created"`
	SettlementsSkipped int          `json:"settlements_skipped"`
	OrdersIncluded     int          `json:"orders_included"`
	OrderErrors        []OrderError `json:"order_errors"`
}

// GenerateSettlementBatch builds all settlements for one half-month period.
//
// Eligible orders are partitioned across a bounded worker pool; each worker
// aggregates its own disjoint slice into private group maps that the caller
// merges, so there is no shared mutable state. Each (payee, type) group is
// then posted in its own transaction. The unique index on (period, payee_id,
// settlement_type) makes re-runs and concurrent runs idempotent: an existing
// group is skipped, a lost race surfaces as a duplicate-key conflict and is
// counted as skipped.
func GenerateSettlementBatch(ctx context.Context, db *gorm.DB, logger *logrus.Logger, period string, platformCfg config.PlatformConfig) (*BatchResult, error) {
	if err := utils.ValidateSettlementPeriod(period); err != nil {
		return nil, err
	}
	periodStart, periodEnd, err := utils.ParseSettlementPeriod(period, time.UTC)
	if err != nil {
		return nil, err
	}

	orders, err := models.GetSettleableOrders(ctx, db, periodStart, periodEnd)
	if err != nil {
		config.LogError(logger, "SettlementBatchWorkflow.go", "GenerateSettlementBatch", "GetSettleableOrders", period, err)
		return nil, err
	}

	result := &BatchResult{Period: period}
	if len(orders) == 0 {
		logger.WithFields(logrus.Fields{"period": period}).Info("no settleable orders for period")
		return result, nil
	}

	groups, orderErrors := aggregateSettlementGroups(orders)
	result.OrderErrors = orderErrors

	// Deterministic posting order.
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PayeeId != keys[j].PayeeId {
			return keys[i].PayeeId < keys[j].PayeeId
		}
		return keys[i].SettlementType < keys[j].SettlementType
	})

	for _, k := range keys {
		group := groups[k]
		created, err := postSettlementGroup(ctx, db, logger, period, group, platformCfg)
		if err != nil {
			config.LogError(logger, "SettlementBatchWorkflow.go", "GenerateSettlementBatch", "postSettlementGroup", fmt.Sprintf("period=%s payee=%d type=%s", period, k.PayeeId, k.SettlementType), err)
			for _, d := range group.OrderDetails {
				result.OrderErrors = append(result.OrderErrors, OrderError{OrderId: d.OrderId, Reason: err.Error()})
			}
			continue
		}
		if created {
			result.SettlementsCreated++
			result.OrdersIncluded += len(group.OrderDetails)
		} else {
			result.SettlementsSkipped++
		}
	}

	logger.WithFields(logrus.Fields{
		"period":              period,
		"settlements_created": result.SettlementsCreated,
		"settlements_skipped": result.SettlementsSkipped,
		"orders_included":     result.OrdersIncluded,
		"order_errors":        len(result.OrderErrors),
	}).Info("settlement batch generated")

	return result, nil
}

// aggregateSettlementGroups fans the orders out over the worker pool and
// merges the partial group maps.
func aggregateSettlementGroups(orders []models.Order) (map[groupKey]*settlementGroup, []OrderError) {
	workers := batchWorkerCount
	if len(orders) < workers {
		workers = len(orders)
	}

	type partial struct {
		groups map[groupKey]*settlementGroup
		errs   []OrderError
	}
	partials := make([]partial, workers)

	var wg sync.WaitGroup
	chunk := (len(orders) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(orders) {
			end = len(orders)
		}
		wg.Add(1)
		go func(idx int, slice []models.Order) {
			defer wg.Done()
			p := partial{groups: make(map[groupKey]*settlementGroup)}
			for i := range slice {
				if err := accumulateOrder(p.groups, &slice[i]); err != nil {
					p.errs = append(p.errs, OrderError{OrderId: slice[i].ID, Reason: err.Error()})
				}
			}
			partials[idx] = p
		}(w, orders[start:end])
	}
	wg.Wait()

	merged := make(map[groupKey]*settlementGroup)
	var errs []OrderError
	for _, p := range partials {
		errs = append(errs, p.errs...)
		for k, g := range p.groups {
			existing, ok := merged[k]
			if !ok {
				merged[k] = g
				continue
			}
			existing.TotalAmount = existing.TotalAmount.Add(g.TotalAmount)
			existing.Commission = existing.Commission.Add(g.Commission)
			existing.TaxAmount = existing.TaxAmount.Add(g.TaxAmount)
			existing.OrderDetails = append(existing.OrderDetails, g.OrderDetails...)
		}
	}
	for _, g := range merged {
		sort.Slice(g.OrderDetails, func(i, j int) bool {
			return g.OrderDetails[i].OrderId < g.OrderDetails[j].OrderId
		})
	}
	return merged, errs
}

// accumulateOrder adds one order's shares into the group map: the supplier
// payable and each present mom tier's amount.
func accumulateOrder(groups map[groupKey]*settlementGroup, order *models.Order) error {
	if order.SupplierId <= 0 {
		return fmt.Errorf("order %d has no supplier", order.ID)
	}
	if !order.CalculationVerified {
		return fmt.Errorf("order %d calculation not verified", order.ID)
	}
	if order.SupplierAmount.IsNegative() {
		return fmt.Errorf("order %d has negative supplier amount", order.ID)
	}

	addShare(groups, order.SupplierId, models.SettlementTypeSupplier, order.ID,
		order.Cost, order.SupplierFee)

	momShares := []struct {
		payeeId int
		amount  decimal.Decimal
	}{
		{order.BigMomId, order.BigMomProfit},
		{order.MiddleMomId, order.MiddleMomProfit},
		{order.SmallMomId, order.SmallMomProfit},
	}
	for _, share := range momShares {
		if share.payeeId <= 0 || !share.amount.IsPositive() {
			continue
		}
		addShare(groups, share.payeeId, models.SettlementTypeMom, order.ID, share.amount, decimal.Zero)
	}
	return nil
}

func addShare(groups map[groupKey]*settlementGroup, payeeId int, settlementType models.SettlementType, orderId int, total, commission decimal.Decimal) {
	k := groupKey{PayeeId: payeeId, SettlementType: settlementType}
	g, ok := groups[k]
	if !ok {
		g = &settlementGroup{
			PayeeId:        payeeId,
			SettlementType: settlementType,
			TotalAmount:    decimal.Zero,
			Commission:     decimal.Zero,
			TaxAmount:      decimal.Zero,
		}
		groups[k] = g
	}
	g.TotalAmount = g.TotalAmount.Add(total)
	g.Commission = g.Commission.Add(commission)
	g.OrderDetails = append(g.OrderDetails, models.OrderDetail{
		OrderId: orderId,
		Amount:  total.Sub(commission),
	})
}

// postSettlementGroup writes one settlement with its statement in a single
// transaction. Returns created=false when the settlement already exists.
func postSettlementGroup(ctx context.Context, db *gorm.DB, logger *logrus.Logger, period string, group *settlementGroup, platformCfg config.PlatformConfig) (created bool, err error) {
	if err := AcquireSettlementPostingLock(db, period, group.PayeeId); err != nil {
		return false, err
	}
	defer ReleaseSettlementPostingLock(db, period, group.PayeeId)

	var existingCount int64
	if err := db.WithContext(ctx).Model(&models.Settlement{}).
		Where("period = ? AND payee_id = ? AND settlement_type = ?", period, group.PayeeId, group.SettlementType).
		Count(&existingCount).Error; err != nil {
		return false, err
	}
	if existingCount > 0 {
		return false, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settlement := models.Settlement{
			Period:           period,
			PayeeId:          group.PayeeId,
			SettlementType:   group.SettlementType,
			TotalAmount:      group.TotalAmount,
			CommissionAmount: group.Commission,
			TaxAmount:        group.TaxAmount,
			NetAmount:        group.NetAmount(),
			OrderCount:       len(group.OrderDetails),
			OrderDetails:     group.OrderDetails,
			Status:           models.SettlementStatusPending,
		}
		if err := tx.Create(&settlement).Error; err != nil {
			return err
		}

		statement := models.SettlementStatement{
			SettlementId: settlement.ID,
			Period:       period,
			PayeeId:      group.PayeeId,
			TotalAmount:  group.TotalAmount,
			NetAmount:    group.NetAmount(),
			DeductionDetails: models.JSONMap{
				"commission": group.Commission.StringFixed(2),
				"tax":        group.TaxAmount.StringFixed(2),
				"shipping":   "0.00",
				"returns":    "0.00",
			},
			DisputeDeadline: time.Now().UTC().AddDate(0, 0, platformCfg.SignoffDeadlineDays),
		}
		if err := tx.Create(&statement).Error; err != nil {
			return err
		}

		return models.PublishEvent(ctx, tx, models.EventTypeSettlementReady, models.ReferenceTypeSettlement, settlement.ID, group.PayeeId, period, map[string]interface{}{
			"settlement_id": settlement.ID,
			"payee_id":      group.PayeeId,
			"type":          group.SettlementType,
			"net_amount":    settlement.NetAmount.StringFixed(2),
			"order_count":   settlement.OrderCount,
		})
	})
	if err != nil {
		// Lost a concurrent race: the other run's settlement stands.
		if isDuplicateKeyErr(err) {
			logger.WithFields(logrus.Fields{
				"period":   period,
				"payee_id": group.PayeeId,
				"type":     group.SettlementType,
			}).Warn("settlement already created concurrently, skipping")
			return false, nil
		}
		return false, err
	}
	return true, nil
}
