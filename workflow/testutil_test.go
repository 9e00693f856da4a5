package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/taomama/groupbuy_backend/config"
	"github.com/taomama/groupbuy_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory SQLite database with the full
// schema. A single connection keeps the in-memory database alive and
// serializes access.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Order{},
		&models.Settlement{}, &models.SettlementStatement{}, &models.UnsettledOrder{},
		&models.AuditReport{},
		&models.EventRecord{},
		&models.IdempotencyKey{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testPlatformConfig() config.PlatformConfig {
	return config.DefaultPlatformConfig()
}

// seedOrder inserts a completed, verified order with the standard 1000/700
// split already applied.
func seedOrder(t *testing.T, db *gorm.DB, orderNo string, createdAt time.Time, mutate func(*models.Order)) *models.Order {
	t.Helper()

	now := createdAt.Add(time.Minute)
	order := &models.Order{
		OrderNo:             orderNo,
		CustomerId:          101,
		Status:              models.OrderStatusCompleted,
		SellingPrice:        decimal.RequireFromString("1000"),
		Cost:                decimal.RequireFromString("700"),
		SupplierId:          11,
		BigMomId:            21,
		MiddleMomId:         22,
		SmallMomId:          23,
		PlatformFee:         decimal.RequireFromString("20.00"),
		SupplierFee:         decimal.RequireFromString("14.00"),
		TaxAmount:           decimal.RequireFromString("14.96"),
		ReferrerBonus:       decimal.Zero,
		SupplierAmount:      decimal.RequireFromString("686.00"),
		BigMomProfit:        decimal.RequireFromString("35.55"),
		MiddleMomProfit:     decimal.RequireFromString("56.41"),
		SmallMomProfit:      decimal.RequireFromString("145.08"),
		PlatformProfit:      decimal.RequireFromString("48.00"),
		CalculationVerified: true,
		ProfitCalculatedAt:  &now,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order %s: %v", orderNo, err)
	}
	// CreatedAt is set by gorm; pin it to the requested period window.
	if err := db.Model(order).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("pin created_at: %v", err)
	}
	order.CreatedAt = createdAt
	return order
}
