package models

import (
	"log"

	"github.com/taomama/groupbuy_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Order{},
		&Settlement{}, &SettlementStatement{}, &UnsettledOrder{},
		&AuditReport{},
		&EventRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
