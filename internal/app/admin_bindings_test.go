package app_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/serverstats/internal/adapters/cache"
	"github.com/Amund211/serverstats/internal/app"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
)

func TestAdminBindings(t *testing.T) {
	t.Parallel()

	newStore := func(t *testing.T) *fakeBindings {
		store := newFakeBindings(t)
		store.servers[1] = domain.Server{ID: 1, Name: "Public", Mod: domain.ModCS2}
		store.servers[2] = domain.Server{ID: 2, Name: "Other game", Mod: 240}
		return store
	}

	registry := drivers.NewDefaultRegistry()
	databases := fakeDatabases{"stats": true}

	request := func(serverID int, driverName string, extraConfig string) domain.ServerBinding {
		return domain.ServerBinding{
			DriverName:  driverName,
			DatabaseRef: "stats",
			ExtraConfig: extraConfig,
			Server:      domain.Server{ID: serverID},
		}
	}

	t.Run("store", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		storeBinding := app.BuildStoreBinding(store, registry, databases, cache.NewBasicCache[domain.ServerBinding]())

		stored, err := storeBinding(t.Context(), request(1, drivers.ZenithName, ""))
		require.NoError(t, err)
		require.Equal(t, domain.ServerBinding{
			ID:          1,
			DriverName:  drivers.ZenithName,
			DatabaseRef: "stats",
			ExtraConfig: "{}",
			Server:      domain.Server{ID: 1, Name: "Public", Mod: domain.ModCS2},
		}, stored)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		storeBinding := app.BuildStoreBinding(store, registry, databases, cache.NewBasicCache[domain.ServerBinding]())
		updateBinding := app.BuildUpdateBinding(store, registry, databases, cache.NewBasicCache[domain.ServerBinding]())

		missingDatabase := request(1, drivers.ZenithName, "")
		missingDatabase.DatabaseRef = "other"

		cases := []struct {
			name    string
			binding domain.ServerBinding
			err     error
		}{
			{name: "unknown server", binding: request(9, drivers.ZenithName, ""), err: domain.ErrServerNotFound},
			{name: "unknown driver", binding: request(1, "RankMe", ""), err: domain.ErrUnknownDriver},
			{name: "invalid config", binding: request(1, drivers.ZenithName, `{"table": ""}`), err: domain.ErrInvalidDriverConfig},
			{name: "unsupported mod", binding: request(2, drivers.FirePlayerStatsName, ""), err: domain.ErrUnsupportedMod},
			{name: "unknown database", binding: missingDatabase, err: domain.ErrDatabaseNotConfigured},
		}
		for _, c := range cases {
			_, err := storeBinding(t.Context(), c.binding)
			require.ErrorIs(t, err, c.err, c.name)

			_, err = updateBinding(t.Context(), c.binding)
			require.ErrorIs(t, err, c.err, c.name)
		}
		require.Empty(t, store.stored)
	})

	t.Run("changes invalidate the cached binding", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		bindingCache := cache.NewBasicCache[domain.ServerBinding]()
		getBinding := app.BuildGetServerBinding(bindingCache, store)
		storeBinding := app.BuildStoreBinding(store, registry, databases, bindingCache)
		updateBinding := app.BuildUpdateBinding(store, registry, databases, bindingCache)
		deleteBinding := app.BuildDeleteBinding(store, bindingCache)

		_, err := storeBinding(t.Context(), request(1, drivers.ZenithName, ""))
		require.NoError(t, err)

		binding, err := getBinding(t.Context(), 1)
		require.NoError(t, err)
		require.Equal(t, drivers.ZenithName, binding.DriverName)

		_, err = updateBinding(t.Context(), request(1, drivers.FirePlayerStatsName, `{"server_id": 2}`))
		require.NoError(t, err)

		binding, err = getBinding(t.Context(), 1)
		require.NoError(t, err)
		require.Equal(t, drivers.FirePlayerStatsName, binding.DriverName)
		require.Equal(t, `{"server_id": 2}`, binding.ExtraConfig)

		require.NoError(t, deleteBinding(t.Context(), 1))
		_, err = getBinding(t.Context(), 1)
		require.ErrorIs(t, err, domain.ErrBindingNotFound)

		require.ErrorIs(t, deleteBinding(t.Context(), 1), domain.ErrBindingNotFound)
	})

	t.Run("update of unbound server", func(t *testing.T) {
		t.Parallel()

		updateBinding := app.BuildUpdateBinding(newStore(t), registry, databases, cache.NewBasicCache[domain.ServerBinding]())
		_, err := updateBinding(t.Context(), request(1, drivers.ZenithName, ""))
		require.ErrorIs(t, err, domain.ErrBindingNotFound)
	})

	t.Run("validation does not keep driver instances", func(t *testing.T) {
		t.Parallel()

		fakes := newFakeRegistry(&fakeDriver{name: "custom", mods: []int{domain.ModCS2}})
		storeBinding := app.BuildStoreBinding(newStore(t), fakes, databases, cache.NewBasicCache[domain.ServerBinding]())

		_, err := storeBinding(t.Context(), request(1, "custom", `{"server_id": 1}`))
		require.NoError(t, err)
		_, err = storeBinding(t.Context(), request(1, "custom", "broken"))
		require.ErrorIs(t, err, domain.ErrInvalidDriverConfig)
		require.Equal(t, 2, fakes.newCalls)
	})
}
