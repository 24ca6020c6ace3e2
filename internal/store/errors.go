package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrDeviceStateChanged is returned by conditional device updates when the
	// row no longer has the expected status (0 rows updated). Callers treat it
	// as a lost race, not a failure.
	ErrDeviceStateChanged = errors.New("device state changed concurrently")
)

// translate maps GORM sentinels onto the store's own.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
