package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

type GetLeaderboardPage func(ctx context.Context, serverID int, query domain.TableQuery) (domain.PageResult, error)

type GetServerColumns func(ctx context.Context, serverID int) (domain.SchemaDescriptor, error)

type driverRegistry interface {
	ForBinding(binding domain.ServerBinding) (drivers.Driver, error)
}

// driverForServer returns the binding of the server and the driver it is bound to.
// All errors are configuration errors.
func driverForServer(ctx context.Context, getBinding GetServerBinding, registry driverRegistry, serverID int) (domain.ServerBinding, drivers.Driver, error) {
	binding, err := getBinding(ctx, serverID)
	if err != nil {
		return domain.ServerBinding{}, nil, err
	}

	driver, err := registry.ForBinding(binding)
	if err != nil {
		return domain.ServerBinding{}, nil, fmt.Errorf("could not get driver for server %d: %w", serverID, err)
	}

	if !slices.Contains(driver.SupportedMods(), binding.Server.Mod) {
		return domain.ServerBinding{}, nil, fmt.Errorf("%w: %s does not support mod %d of server %d", domain.ErrUnsupportedMod, driver.Name(), binding.Server.Mod, serverID)
	}

	return binding, driver, nil
}

// BuildGetLeaderboardPage raises configuration errors. Storage errors are
// reported and masked as an empty page unless deps.Debug is set.
func BuildGetLeaderboardPage(getBinding GetServerBinding, registry driverRegistry, deps drivers.Deps) GetLeaderboardPage {
	return func(ctx context.Context, serverID int, query domain.TableQuery) (domain.PageResult, error) {
		ctx = logging.AddMetaToContext(ctx, slog.Int("serverID", serverID))

		if err := query.Validate(); err != nil {
			return domain.PageResult{}, err
		}

		binding, driver, err := driverForServer(ctx, getBinding, registry, serverID)
		if err != nil {
			return domain.PageResult{}, err
		}

		ctx = reporting.SetServerInContext(ctx, serverID, driver.Name())
		attributes := metric.WithAttributes(attribute.String("driver", driver.Name()))

		page, err := driver.FetchPage(ctx, deps, binding, query)
		if err != nil {
			if domain.IsConfigurationError(err) || deps.Debug {
				return domain.PageResult{}, fmt.Errorf("could not fetch page for server %d: %w", serverID, err)
			}

			reporting.Report(ctx, fmt.Errorf("could not fetch page: %w", err), map[string]string{
				"databaseRef": binding.DatabaseRef,
			})
			metrics.maskedErrorCount.Add(ctx, 1, attributes)
			return domain.EmptyPage(query.DrawToken), nil
		}

		metrics.pageCount.Add(ctx, 1, attributes)

		return page, nil
	}
}

func BuildGetServerColumns(getBinding GetServerBinding, registry driverRegistry) GetServerColumns {
	return func(ctx context.Context, serverID int) (domain.SchemaDescriptor, error) {
		_, driver, err := driverForServer(ctx, getBinding, registry, serverID)
		if err != nil {
			return domain.SchemaDescriptor{}, err
		}
		return driver.Columns(), nil
	}
}
