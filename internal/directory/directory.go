// Package directory provides read access to the external user
// directory devices are assigned against. The directory itself is
// owned elsewhere; this service only looks principals up.
package directory

import (
	"context"

	"github.com/netgrid-tools/devicehub/internal/model"
)

// Directory resolves assignable users. GetUser returns (nil, nil) when
// the user does not exist.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}
