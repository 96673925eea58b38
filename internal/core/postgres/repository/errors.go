package repository

import (
	"errors"
	"fmt"

	"flowtrack/internal/domain"

	"gorm.io/gorm"
)

// translate maps gorm errors onto the domain sentinels. Relies on
// gorm.Config{TranslateError: true} to surface duplicate-key violations
// as gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w", domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w", domain.ErrConflict)
	default:
		return err
	}
}
