package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is a group-buy order together with its calculated money split. The
// split columns are written wholesale by the profit workflow; they are never
// patched field by field.
type Order struct {
	ID         int         `gorm:"primary_key" json:"id"`
	OrderNo    string      `gorm:"size:64;not null;uniqueIndex" json:"order_no"`
	CustomerId int         `gorm:"index" json:"customer_id"`
	Status     OrderStatus `gorm:"size:20;not null;default:'pending';index:idx_orders_status_created,priority:1" json:"status"`

	SellingPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"selling_price"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"cost"`

	SupplierId int `gorm:"not null;index" json:"supplier_id"`

	// Distribution chain. A zero payee id means the tier is absent.
	BigMomId    int `gorm:"index:idx_orders_mom_chain,priority:1" json:"big_mom_id"`
	MiddleMomId int `gorm:"index:idx_orders_mom_chain,priority:2" json:"middle_mom_id"`
	SmallMomId  int `gorm:"index:idx_orders_mom_chain,priority:3" json:"small_mom_id"`

	ReferrerId        int  `gorm:"index" json:"referrer_id"`
	ReferrerQualified bool `gorm:"not null;default:false" json:"referrer_qualified"`

	// Calculated split. SupplierAmount is the supplier payable (cost minus
	// supplier fee); PlatformProfit is the platform's total income on the
	// order (residual + platform fee + supplier fee).
	PlatformFee     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"platform_fee"`
	SupplierFee     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"supplier_fee"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	ReferrerBonus   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"referrer_bonus"`
	SupplierAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"supplier_amount"`
	BigMomProfit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"big_mom_profit"`
	MiddleMomProfit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"middle_mom_profit"`
	SmallMomProfit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"small_mom_profit"`
	PlatformProfit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"platform_profit"`

	CalculationVerified bool    `gorm:"not null;default:false;index" json:"calculation_verified"`
	CalculationErrorLog *string `gorm:"type:text" json:"calculation_error_log"`
	ProfitBreakdown     []byte  `gorm:"type:blob" json:"profit_breakdown"`

	ProfitCalculatedAt *time.Time `gorm:"index" json:"profit_calculated_at"`
	SettledAt          *time.Time `gorm:"index" json:"settled_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_orders_status_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o *Order) IsSettled() bool {
	return o.SettledAt != nil
}

// HasReferrer reports whether the order carries a bonus-eligible referrer.
func (o *Order) HasReferrer() bool {
	return o.ReferrerId > 0 && o.ReferrerQualified
}

// GetSettleableOrders returns orders eligible for settlement batch
// generation: completed, never settled, with a verified profit calculation
// inside the period window.
func GetSettleableOrders(ctx context.Context, db *gorm.DB, periodStart, periodEnd time.Time) ([]Order, error) {
	var orders []Order
	err := db.WithContext(ctx).
		Where("status = ?", OrderStatusCompleted).
		Where("settled_at IS NULL").
		Where("calculation_verified = ?", true).
		Where("created_at >= ? AND created_at < ?", periodStart, periodEnd).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetFlaggedOrders returns orders whose calculation failed verification.
// These are excluded from settlement until recomputed.
func GetFlaggedOrders(ctx context.Context, db *gorm.DB, limit int) ([]Order, error) {
	var orders []Order
	dbCtx := db.WithContext(ctx).
		Where("calculation_verified = ? AND profit_calculated_at IS NOT NULL", false).
		Order("id ASC")
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
