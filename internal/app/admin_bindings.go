package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Amund211/serverstats/internal/adapters/cache"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
)

type StoreBinding func(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error)

type UpdateBinding func(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error)

type DeleteBinding func(ctx context.Context, serverID int) error

type bindingStore interface {
	// Returns domain.ErrServerNotFound
	GetServer(ctx context.Context, serverID int) (domain.Server, error)
	// Returns domain.ErrServerNotFound
	StoreBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error)
	// Returns domain.ErrBindingNotFound
	UpdateBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error)
	// Returns domain.ErrBindingNotFound
	DeleteBinding(ctx context.Context, serverID int) error
}

type driverFactory interface {
	New(name string, extraConfig string) (drivers.Driver, error)
}

type databaseRefs interface {
	Has(ref string) bool
}

// validateBinding checks the driver exists, accepts the extra config and
// supports the server's mod, and that the database is configured
func validateBinding(ctx context.Context, store bindingStore, registry driverFactory, databases databaseRefs, binding domain.ServerBinding) error {
	server, err := store.GetServer(ctx, binding.Server.ID)
	if err != nil {
		return fmt.Errorf("could not get server %d: %w", binding.Server.ID, err)
	}

	driver, err := registry.New(binding.DriverName, binding.ExtraConfig)
	if err != nil {
		return err
	}

	if !slices.Contains(driver.SupportedMods(), server.Mod) {
		return fmt.Errorf("%w: %s does not support mod %d", domain.ErrUnsupportedMod, driver.Name(), server.Mod)
	}

	if !databases.Has(binding.DatabaseRef) {
		return fmt.Errorf("%w: %q", domain.ErrDatabaseNotConfigured, binding.DatabaseRef)
	}

	return nil
}

func normalizeExtraConfig(binding domain.ServerBinding) domain.ServerBinding {
	if binding.ExtraConfig == "" {
		binding.ExtraConfig = "{}"
	}
	return binding
}

func BuildStoreBinding(store bindingStore, registry driverFactory, databases databaseRefs, bindingCache cache.Cache[domain.ServerBinding]) StoreBinding {
	return func(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
		binding = normalizeExtraConfig(binding)
		if err := validateBinding(ctx, store, registry, databases, binding); err != nil {
			return domain.ServerBinding{}, err
		}

		stored, err := store.StoreBinding(ctx, binding)
		if err != nil {
			return domain.ServerBinding{}, fmt.Errorf("could not store binding: %w", err)
		}

		cache.Invalidate(bindingCache, bindingCacheKey(binding.Server.ID))
		logging.FromContext(ctx).InfoContext(ctx, "Stored binding", slog.Int("serverID", stored.Server.ID), slog.String("driver", stored.DriverName))

		return stored, nil
	}
}

func BuildUpdateBinding(store bindingStore, registry driverFactory, databases databaseRefs, bindingCache cache.Cache[domain.ServerBinding]) UpdateBinding {
	return func(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
		binding = normalizeExtraConfig(binding)
		if err := validateBinding(ctx, store, registry, databases, binding); err != nil {
			return domain.ServerBinding{}, err
		}

		updated, err := store.UpdateBinding(ctx, binding)
		if err != nil {
			return domain.ServerBinding{}, fmt.Errorf("could not update binding: %w", err)
		}

		cache.Invalidate(bindingCache, bindingCacheKey(binding.Server.ID))
		logging.FromContext(ctx).InfoContext(ctx, "Updated binding", slog.Int("serverID", updated.Server.ID), slog.String("driver", updated.DriverName))

		return updated, nil
	}
}

func BuildDeleteBinding(store bindingStore, bindingCache cache.Cache[domain.ServerBinding]) DeleteBinding {
	return func(ctx context.Context, serverID int) error {
		if err := store.DeleteBinding(ctx, serverID); err != nil {
			return fmt.Errorf("could not delete binding: %w", err)
		}

		cache.Invalidate(bindingCache, bindingCacheKey(serverID))
		logging.FromContext(ctx).InfoContext(ctx, "Deleted binding", slog.Int("serverID", serverID))

		return nil
	}
}
