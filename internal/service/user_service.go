package service

import (
	"context"

	"github.com/netgrid-tools/devicehub/internal/directory"
	"github.com/netgrid-tools/devicehub/internal/model"
)

// UserService lists assignable users from the external directory for
// assignment pickers.
type UserService struct {
	users directory.Directory
}

// NewUserService creates a new user service.
func NewUserService(users directory.Directory) *UserService {
	return &UserService{users: users}
}

// List returns the directory's users. Gated on an authenticated active
// principal.
func (s *UserService) List(ctx context.Context, principal *model.Principal) ([]*model.User, error) {
	if err := requireActivePrincipal(principal); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}
