package drivers

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amund211/serverstats/internal/domain"
)

type namedDriver struct {
	Driver
	name string
	mods []int
}

func (d namedDriver) Name() string {
	return d.name
}

func (d namedDriver) SupportedMods() []int {
	return d.mods
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("default drivers", func(t *testing.T) {
		t.Parallel()

		registry := NewDefaultRegistry()
		require.Equal(t, []string{FirePlayerStatsName, ZenithName}, registry.Names())

		defaults, err := registry.Defaults()
		require.NoError(t, err)
		require.Len(t, defaults, 2)
		require.Equal(t, FirePlayerStatsName, defaults[0].Name())
		require.Equal(t, ZenithName, defaults[1].Name())

		names, err := registry.ForMod(domain.ModCS2)
		require.NoError(t, err)
		require.Equal(t, []string{FirePlayerStatsName, ZenithName}, names)

		names, err = registry.ForMod(240)
		require.NoError(t, err)
		require.Empty(t, names)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()

		_, err := NewDefaultRegistry().Driver("RankMe", "")
		require.ErrorIs(t, err, domain.ErrUnknownDriver)
		require.True(t, domain.IsConfigurationError(err))
	})

	t.Run("invalid extra config", func(t *testing.T) {
		t.Parallel()

		_, err := NewDefaultRegistry().ForBinding(domain.ServerBinding{DriverName: ZenithName, ExtraConfig: `{"table": ""}`})
		require.ErrorIs(t, err, domain.ErrInvalidDriverConfig)
	})

	t.Run("instances are shared per config", func(t *testing.T) {
		t.Parallel()

		calls := 0
		registry := NewRegistry()
		registry.MustRegister("custom", func(extraConfig string) (Driver, error) {
			calls++
			return namedDriver{name: "custom", mods: []int{1}}, nil
		})

		first, err := registry.Driver("custom", "")
		require.NoError(t, err)
		second, err := registry.Driver("custom", "")
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, 1, calls)

		_, err = registry.Driver("custom", `{"a": 1}`)
		require.NoError(t, err)
		require.Equal(t, 2, calls)
	})

	t.Run("new does not keep instances", func(t *testing.T) {
		t.Parallel()

		calls := 0
		registry := NewRegistry()
		registry.MustRegister("custom", func(extraConfig string) (Driver, error) {
			calls++
			return namedDriver{name: "custom", mods: []int{1}}, nil
		})

		for i := range 5 {
			_, err := registry.New("custom", fmt.Sprintf(`{"server_id": %d}`, i))
			require.NoError(t, err)
		}
		require.Equal(t, 5, calls)
		require.Empty(t, registry.instances)

		_, err := registry.New("RankMe", "")
		require.ErrorIs(t, err, domain.ErrUnknownDriver)

		_, err = registry.Driver("custom", "")
		require.NoError(t, err)
		require.Len(t, registry.instances, 1)
	})

	t.Run("concurrent use", func(t *testing.T) {
		t.Parallel()

		registry := NewDefaultRegistry()
		wg := sync.WaitGroup{}
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := registry.ForBinding(domain.ServerBinding{DriverName: FirePlayerStatsName, ExtraConfig: `{"server_id": 2}`})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})

	t.Run("duplicate registration", func(t *testing.T) {
		t.Parallel()

		registry := NewDefaultRegistry()
		require.Error(t, registry.Register(ZenithName, NewZenith))
		require.Panics(t, func() {
			registry.MustRegister(ZenithName, NewZenith)
		})
	})

	t.Run("mismatched name", func(t *testing.T) {
		t.Parallel()

		registry := NewRegistry()
		registry.MustRegister("alias", NewZenith)
		_, err := registry.Driver("alias", "")
		require.Error(t, err)
	})
}
