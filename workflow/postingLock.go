package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireJobLock serializes jobs on one document across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same *gorm.DB that runs the job transaction.
func AcquireJobLock(tx *gorm.DB, referenceType string, referenceId int) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", jobLockName(referenceType, referenceId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire job lock for %s %d", referenceType, referenceId)
	}
	return nil
}

func ReleaseJobLock(tx *gorm.DB, referenceType string, referenceId int) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", jobLockName(referenceType, referenceId)).Scan(&_ok).Error
}

func jobLockName(referenceType string, referenceId int) string {
	return fmt.Sprintf("job:%s:%d", referenceType, referenceId)
}
