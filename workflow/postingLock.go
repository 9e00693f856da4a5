package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireSettlementPostingLock serializes settlement posting per
// (period, payee) across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the posting transaction. On non-MySQL dialects
// (SQLite tests) it is a no-op; the unique index on settlements still
// guarantees correctness there.
func AcquireSettlementPostingLock(tx *gorm.DB, period string, payeeId int) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	lockName := fmt.Sprintf("settlement:%s:%d", period, payeeId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire settlement lock for period=%s payee_id=%d", period, payeeId)
	}
	return nil
}

func ReleaseSettlementPostingLock(tx *gorm.DB, period string, payeeId int) {
	if tx.Dialector.Name() != "mysql" {
		return
	}
	lockName := fmt.Sprintf("settlement:%s:%d", period, payeeId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
