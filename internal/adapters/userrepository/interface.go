package userrepository

import (
	"context"

	"github.com/Amund211/serverstats/internal/domain"
)

type UserRepository interface {
	// Returns domain.ErrUserNotFound
	GetUser(ctx context.Context, userID int) (domain.User, error)
	StoreUser(ctx context.Context, user domain.User) error
}
