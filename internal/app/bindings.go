package app

import (
	"context"
	"fmt"

	"github.com/Amund211/serverstats/internal/adapters/cache"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
)

type GetServerBinding func(ctx context.Context, serverID int) (domain.ServerBinding, error)

type bindingRepository interface {
	// Returns domain.ErrServerNotFound or domain.ErrBindingNotFound
	GetBinding(ctx context.Context, serverID int) (domain.ServerBinding, error)
}

func bindingCacheKey(serverID int) string {
	return fmt.Sprintf("server:%d", serverID)
}

func BuildGetServerBinding(bindingCache cache.Cache[domain.ServerBinding], repo bindingRepository) GetServerBinding {
	return func(ctx context.Context, serverID int) (domain.ServerBinding, error) {
		binding, err := cache.GetOrCreate(ctx, bindingCache, bindingCacheKey(serverID), func() (domain.ServerBinding, error) {
			return repo.GetBinding(ctx, serverID)
		})
		if err != nil {
			// NOTE: GetOrCreate only returns an error if create() fails.
			// bindingRepository implementations handle their own error reporting
			return domain.ServerBinding{}, fmt.Errorf("could not get binding for server %d: %w", serverID, err)
		}

		return binding, nil
	}
}

// BindingForDriver resolves the binding of a server, requiring it to be bound to driverName
func BindingForDriver(getBinding GetServerBinding) drivers.GetBinding {
	return func(ctx context.Context, driverName string, serverID int) (domain.ServerBinding, error) {
		binding, err := getBinding(ctx, serverID)
		if err != nil {
			return domain.ServerBinding{}, err
		}

		if binding.DriverName != driverName {
			return domain.ServerBinding{}, fmt.Errorf("%w: server %d is bound to %s, not %s", domain.ErrBindingNotFound, serverID, binding.DriverName, driverName)
		}

		return binding, nil
	}
}
