package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

// translateError converts driver errors into apperr kinds. Anything that
// is not a missing record means the database is unusable for us.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("record not found", err)
	default:
		return apperr.Dependency("postgres unavailable", err)
	}
}
