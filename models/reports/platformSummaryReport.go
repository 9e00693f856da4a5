package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
)

type PlatformSummaryResponse struct {
	OrderCount         int             `json:"order_count"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	TotalPlatformFee   decimal.Decimal `json:"total_platform_fee"`
	TotalSupplierFee   decimal.Decimal `json:"total_supplier_fee"`
	TotalTax           decimal.Decimal `json:"total_tax"`
	TotalReferrerBonus decimal.Decimal `json:"total_referrer_bonus"`
	TotalMomProfit     decimal.Decimal `json:"total_mom_profit"`
	TotalPlatformProfit decimal.Decimal `json:"total_platform_profit"`
}

// GetPlatformSummaryReport aggregates platform income over completed orders
// with verified calculations in [fromDate, toDate).
func GetPlatformSummaryReport(ctx context.Context, fromDate, toDate time.Time) (*PlatformSummaryResponse, error) {
	db := config.GetDB()

	query := `
        SELECT
            COUNT(id) AS order_count,
            COALESCE(SUM(selling_price), 0) AS total_revenue,
            COALESCE(SUM(cost), 0) AS total_cost,
            COALESCE(SUM(platform_fee), 0) AS total_platform_fee,
            COALESCE(SUM(supplier_fee), 0) AS total_supplier_fee,
            COALESCE(SUM(tax_amount), 0) AS total_tax,
            COALESCE(SUM(referrer_bonus), 0) AS total_referrer_bonus,
            COALESCE(SUM(big_mom_profit + middle_mom_profit + small_mom_profit), 0) AS total_mom_profit,
            COALESCE(SUM(platform_profit), 0) AS total_platform_profit
        FROM
            orders
        WHERE
            status = ?
            AND calculation_verified = ?
            AND created_at >= ? AND created_at < ?
`

	var summary PlatformSummaryResponse
	if err := db.WithContext(ctx).
		Raw(query, models.OrderStatusCompleted, true, fromDate, toDate).
		Scan(&summary).Error; err != nil {
		return nil, err
	}

	return &summary, nil
}
