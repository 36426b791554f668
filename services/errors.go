package services

import (
	"errors"

	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
)

// storeError converts a store failure into the service taxonomy. Errors that already
// carry a category (raised inside an Update callback) pass through unchanged.
func storeError(serviceName, operation string, err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if serviceErr := shared.AsServiceError(err); serviceErr != nil {
		return serviceErr
	}
	if errors.Is(err, store.ErrNotFound) && notFoundMessage != "" {
		return shared.NewNotFoundError(notFoundMessage).WithOperation(serviceName, operation)
	}

	internal := shared.NewInternalError(serviceName, operation, err)
	internal.LogError()
	return internal
}
