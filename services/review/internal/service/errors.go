package service

import (
	"errors"
	"fmt"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// storeError wraps a repository failure. Application errors pass through
// unchanged and transient store failures become ErrServiceUnavail so the
// handler answers 503 without leaking driver details.
func storeError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if database.IsTransient(err) {
		return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
