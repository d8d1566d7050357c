// store/errors.go
package store

import (
	"fmt"

	"assettrack/apperr"
)

func apperrNotFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
}

func apperrDuplicate(tag string) error {
	return fmt.Errorf("%s: %w", tag, apperr.ErrDuplicateAssetTag)
}

func apperrUnavailable(what string) error {
	return fmt.Errorf("%s: %w", what, apperr.ErrUnavailable)
}
