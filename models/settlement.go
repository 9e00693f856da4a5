package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement is one payee's payable for one half-month period. The unique
// index on (period, payee_id, settlement_type) is what makes batch
// generation idempotent and race-safe.
type Settlement struct {
	ID             int            `gorm:"primary_key" json:"id"`
	Period         string         `gorm:"size:8;not null;index:uniq_settlement,unique" json:"period"`
	PayeeId        int            `gorm:"not null;index:uniq_settlement,unique" json:"payee_id"`
	SettlementType SettlementType `gorm:"size:20;not null;index:uniq_settlement,unique" json:"settlement_type"`

	TotalAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_amount"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	NetAmount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_amount"`

	OrderCount   int             `gorm:"not null;default:0" json:"order_count"`
	OrderDetails OrderDetailList `gorm:"type:json" json:"order_details"`

	Status      SettlementStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	IsConfirmed bool             `gorm:"not null;default:false" json:"is_confirmed"`
	ConfirmedAt *time.Time       `json:"confirmed_at"`
	PaidAt      *time.Time       `json:"paid_at"`

	RejectReason *string `gorm:"size:255" json:"reject_reason"`
	IsArchived   bool    `gorm:"not null;default:false;index" json:"is_archived"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SettlementStatement is the payee-facing statement owned by one settlement.
// Confirmation and dispute act on the statement; the settlement carries the
// money state.
type SettlementStatement struct {
	ID           int    `gorm:"primary_key" json:"id"`
	SettlementId int    `gorm:"not null;uniqueIndex" json:"settlement_id"`
	Period       string `gorm:"size:8;not null;index" json:"period"`
	PayeeId      int    `gorm:"not null;index" json:"payee_id"`

	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_amount"`

	// Per-category deduction detail shown on the statement (commission, tax,
	// shipping, returns).
	DeductionDetails JSONMap `gorm:"type:json" json:"deduction_details"`

	DisputeDeadline time.Time `gorm:"not null;index" json:"dispute_deadline"`
	IsDisputed      bool      `gorm:"not null;default:false" json:"is_disputed"`
	DisputeDetails  JSONMap   `gorm:"type:json" json:"dispute_details"`
	IsFinalized     bool      `gorm:"not null;default:false" json:"is_finalized"`
	FinalizedAt     *time.Time `json:"finalized_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UnsettledOrder tracks a paid order awaiting settlement so reminder jobs can
// chase it. Orders above the alert threshold get a high alert level.
type UnsettledOrder struct {
	ID      int `gorm:"primary_key" json:"id"`
	OrderId int `gorm:"not null;uniqueIndex" json:"order_id"`

	OrderAmount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"order_amount"`
	ExpectedSettlementDate time.Time       `gorm:"not null;index" json:"expected_settlement_date"`
	MaxRetentionDate       time.Time       `gorm:"not null;index" json:"max_retention_date"`
	AlertLevel             AlertLevel      `gorm:"size:10;not null;default:'normal'" json:"alert_level"`

	IsResolved bool       `gorm:"not null;default:false;index" json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSettlementsByPeriod(ctx context.Context, db *gorm.DB, period string) ([]Settlement, error) {
	var settlements []Settlement
	err := db.WithContext(ctx).
		Where("period = ? AND is_archived = ?", period, false).
		Order("id ASC").
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

func GetStatementById(ctx context.Context, db *gorm.DB, statementId int) (*SettlementStatement, error) {
	var statement SettlementStatement
	err := db.WithContext(ctx).First(&statement, statementId).Error
	if err != nil {
		return nil, err
	}
	return &statement, nil
}

func GetStatementBySettlementId(ctx context.Context, db *gorm.DB, settlementId int) (*SettlementStatement, error) {
	var statement SettlementStatement
	err := db.WithContext(ctx).Where("settlement_id = ?", settlementId).First(&statement).Error
	if err != nil {
		return nil, err
	}
	return &statement, nil
}
