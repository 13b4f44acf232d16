package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

// GetUserStats returns nil when there is no info for the user on the server
type GetUserStats func(ctx context.Context, serverID int, userID int) (*domain.UserStatsSummary, error)

// GetProfileStats returns the summaries of every bound server that has info for the user
type GetProfileStats func(ctx context.Context, userID int) ([]domain.UserStatsSummary, error)

type userRepository interface {
	// Returns domain.ErrUserNotFound
	GetUser(ctx context.Context, userID int) (domain.User, error)
}

type bindingLister interface {
	ListBindings(ctx context.Context) ([]domain.ServerBinding, error)
}

func BuildGetUserStats(getBinding GetServerBinding, registry driverRegistry, users userRepository, deps drivers.Deps) GetUserStats {
	return func(ctx context.Context, serverID int, userID int) (*domain.UserStatsSummary, error) {
		ctx = logging.AddMetaToContext(ctx, slog.Int("serverID", serverID), slog.Int("userID", userID))

		user, err := users.GetUser(ctx, userID)
		if err != nil {
			// NOTE: userRepository implementations handle their own error reporting
			return nil, fmt.Errorf("could not get user %d: %w", userID, err)
		}

		_, driver, err := driverForServer(ctx, getBinding, registry, serverID)
		if err != nil {
			if deps.Debug {
				return nil, err
			}
			logging.FromContext(ctx).WarnContext(ctx, "No driver for user stats", slog.String("error", err.Error()))
			return nil, nil
		}

		ctx = reporting.SetServerInContext(ctx, serverID, driver.Name())
		return driver.FetchUserStats(ctx, deps, serverID, user)
	}
}

func BuildGetProfileStats(bindings bindingLister, registry driverRegistry, users userRepository, deps drivers.Deps) GetProfileStats {
	return func(ctx context.Context, userID int) ([]domain.UserStatsSummary, error) {
		ctx = logging.AddMetaToContext(ctx, slog.Int("userID", userID))
		logger := logging.FromContext(ctx)

		user, err := users.GetUser(ctx, userID)
		if err != nil {
			// NOTE: userRepository implementations handle their own error reporting
			return nil, fmt.Errorf("could not get user %d: %w", userID, err)
		}

		if _, ok := user.LinkedIdentity(domain.SocialNetworkSteam); !ok {
			return []domain.UserStatsSummary{}, nil
		}

		all, err := bindings.ListBindings(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not list bindings: %w", err)
		}

		summaries := []domain.UserStatsSummary{}
		for _, binding := range all {
			driver, err := registry.ForBinding(binding)
			if err != nil {
				if deps.Debug {
					return nil, fmt.Errorf("could not get driver for server %d: %w", binding.Server.ID, err)
				}
				logger.WarnContext(ctx, "Skipping server with broken binding", slog.Int("serverID", binding.Server.ID), slog.String("error", err.Error()))
				continue
			}

			summary, err := driver.FetchUserStats(ctx, deps, binding.Server.ID, user)
			if err != nil {
				return nil, fmt.Errorf("could not get stats for server %d: %w", binding.Server.ID, err)
			}
			if summary == nil {
				continue
			}
			summaries = append(summaries, *summary)
		}

		return summaries, nil
	}
}
