package project

import (
	"fmt"

	"github.com/buildledger/api/pkg/domain/shared"
)

// NotFoundError builds a not-found error for a project ID.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
}
