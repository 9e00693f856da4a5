package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/taomama/groupbuy_backend/utils"
)

// PlatformConfig is the fee/schedule surface consumed by the settlement
// engine. It is resolved once from the environment and then passed
// explicitly into the calculators; nothing below the workflow layer reads
// the environment.
type PlatformConfig struct {
	PlatformFeeRate     decimal.Decimal
	SupplierFeeRate     decimal.Decimal
	ReferrerBonusRate   decimal.Decimal
	BigMomProfitRate    decimal.Decimal
	MiddleMomProfitRate decimal.Decimal

	// SettlementDays are the calendar days of month on which the batch
	// generator runs (statement generation happens on the same days).
	SettlementDays []int
	// AuditReportDay is the day of month the previous month's audit report
	// is generated.
	AuditReportDay int
	// SignoffDeadlineDays is the statement dispute window.
	SignoffDeadlineDays int
	// PendingExpiryDays / ArchiveAfterDays drive the settlement expiry sweep.
	PendingExpiryDays int
	ArchiveAfterDays  int
}

// ProfitRates projects the fee schedule into the shape the profit
// calculator takes.
func (c PlatformConfig) ProfitRates() utils.ProfitRates {
	return utils.ProfitRates{
		PlatformFeeRate:     c.PlatformFeeRate,
		SupplierFeeRate:     c.SupplierFeeRate,
		ReferrerBonusRate:   c.ReferrerBonusRate,
		BigMomProfitRate:    c.BigMomProfitRate,
		MiddleMomProfitRate: c.MiddleMomProfitRate,
	}
}

func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		PlatformFeeRate:     decimal.NewFromFloat(0.02),
		SupplierFeeRate:     decimal.NewFromFloat(0.02),
		ReferrerBonusRate:   decimal.NewFromFloat(0.02),
		BigMomProfitRate:    decimal.NewFromFloat(0.15),
		MiddleMomProfitRate: decimal.NewFromFloat(0.28),
		SettlementDays:      []int{1, 16},
		AuditReportDay:      5,
		SignoffDeadlineDays: 3,
		PendingExpiryDays:   30,
		ArchiveAfterDays:    90,
	}
}

// LoadPlatformConfig reads env overrides on top of the defaults.
func LoadPlatformConfig() PlatformConfig {
	cfg := DefaultPlatformConfig()

	cfg.PlatformFeeRate = decimalFromEnv("PLATFORM_FEE_RATE", cfg.PlatformFeeRate)
	cfg.SupplierFeeRate = decimalFromEnv("SUPPLIER_FEE_RATE", cfg.SupplierFeeRate)
	cfg.ReferrerBonusRate = decimalFromEnv("REFERRER_BONUS_RATE", cfg.ReferrerBonusRate)
	cfg.BigMomProfitRate = decimalFromEnv("BIG_MOM_PROFIT_RATE", cfg.BigMomProfitRate)
	cfg.MiddleMomProfitRate = decimalFromEnv("MIDDLE_MOM_PROFIT_RATE", cfg.MiddleMomProfitRate)

	cfg.SettlementDays = intListFromEnv("SETTLEMENT_DAYS", cfg.SettlementDays)
	cfg.AuditReportDay = intFromEnv("AUDIT_REPORT_DAY", cfg.AuditReportDay)
	cfg.SignoffDeadlineDays = intFromEnv("SIGNOFF_DEADLINE_DAYS", cfg.SignoffDeadlineDays)
	cfg.PendingExpiryDays = intFromEnv("SETTLEMENT_PENDING_EXPIRY_DAYS", cfg.PendingExpiryDays)
	cfg.ArchiveAfterDays = intFromEnv("SETTLEMENT_ARCHIVE_AFTER_DAYS", cfg.ArchiveAfterDays)

	return cfg
}

func decimalFromEnv(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}

func intListFromEnv(key string, def []int) []int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return def
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return def
	}
	return out
}
