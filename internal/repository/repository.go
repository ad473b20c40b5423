package repository

import (
	"errors"
	"fmt"
)

// ErrStorage marks transport or integrity failures from the persistence
// layer. Absence of a requested row is reported with the per-entity
// not-found sentinels instead.
var ErrStorage = errors.New("storage failure")

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
