package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuditReport is the immutable monthly reconciliation of both half-month
// settlement periods. Period is YYYYMM.
type AuditReport struct {
	ID     int    `gorm:"primary_key" json:"id"`
	Period string `gorm:"size:6;not null;uniqueIndex" json:"period"`

	TotalRevenue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_revenue"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_commission"`
	TotalTax        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_tax"`

	SettlementCount   int     `gorm:"not null;default:0" json:"settlement_count"`
	SupplierBreakdown JSONMap `gorm:"type:json" json:"supplier_breakdown"`
	MomBreakdown      JSONMap `gorm:"type:json" json:"mom_breakdown"`

	Status     AuditReportStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ReviewedBy *int              `json:"reviewed_by"`
	ReviewedAt *time.Time        `json:"reviewed_at"`
	Notes      *string           `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetAuditReportByPeriod(ctx context.Context, db *gorm.DB, period string) (*AuditReport, error) {
	var report AuditReport
	err := db.WithContext(ctx).Where("period = ?", period).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}
