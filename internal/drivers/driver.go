package drivers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
	"github.com/Amund211/serverstats/internal/strutils"
	"github.com/Amund211/serverstats/internal/tablequery"
)

const DefaultDateFormat = "02.01.2006 15:04"

// Driver translates one stats plugin's storage schema into normalized rows and summaries
type Driver interface {
	Name() string
	SupportedMods() []int
	Blocks() []domain.BlockDefinition
	Columns() domain.SchemaDescriptor

	// FetchPage never fails for an empty result
	FetchPage(ctx context.Context, deps Deps, binding domain.ServerBinding, query domain.TableQuery) (domain.PageResult, error)

	// FetchUserStats returns nil when there is no info for the user on the server.
	// Storage and binding failures are only returned when deps.Debug is set.
	FetchUserStats(ctx context.Context, deps Deps, serverID int, user domain.User) (*domain.UserStatsSummary, error)
}

type DatabaseProvider interface {
	Database(ctx context.Context, ref string) (*sqlx.DB, tablequery.Dialect, error)
}

type GetBinding func(ctx context.Context, driverName string, serverID int) (domain.ServerBinding, error)

// ResolveIdentities returns the identities it could resolve, keyed by SteamID64.
// Missing keys are unresolved.
type ResolveIdentities func(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error)

type Links interface {
	RankAsset(ranksSet string, rank int) string
	Profile(steamID string) string
}

// Deps are the collaborators a driver uses during one call
type Deps struct {
	Databases  DatabaseProvider
	GetBinding GetBinding
	Identities ResolveIdentities
	Links      Links

	DateFormat string
	Debug      bool
}

func (d Deps) dateFormat() string {
	if d.DateFormat == "" {
		return DefaultDateFormat
	}
	return d.DateFormat
}

type userStatsFetcher func(ctx context.Context, db *sqlx.DB, dialect tablequery.Dialect, steamID string) (map[string]any, error)

// fetchUserStats runs the lookup shared by all drivers around the driver
// specific fetch. fetch returns nil metrics when the user has no rows.
func fetchUserStats(ctx context.Context, driver Driver, deps Deps, serverID int, user domain.User, fetch userStatsFetcher) (*domain.UserStatsSummary, error) {
	ctx = logging.AddMetaToContext(ctx,
		slog.String("driver", driver.Name()),
		slog.Int("serverID", serverID),
		slog.Int("userID", user.ID),
	)
	logger := logging.FromContext(ctx)

	linked, ok := user.LinkedIdentity(domain.SocialNetworkSteam)
	if !ok {
		return nil, nil
	}

	steamID, err := strutils.NormalizeSteamID(linked)
	if err != nil {
		logger.WarnContext(ctx, "User has an invalid linked steam id", "steamID", linked, "error", err.Error())
		return nil, nil
	}

	binding, err := deps.GetBinding(ctx, driver.Name(), serverID)
	if err != nil {
		if deps.Debug {
			return nil, fmt.Errorf("failed to get binding: %w", err)
		}
		logger.WarnContext(ctx, "Failed to get binding for user stats", "error", err.Error())
		return nil, nil
	}

	db, dialect, err := deps.Databases.Database(ctx, binding.DatabaseRef)
	if err != nil {
		if deps.Debug {
			return nil, fmt.Errorf("failed to get database: %w", err)
		}
		logger.WarnContext(ctx, "Failed to get database for user stats", "databaseRef", binding.DatabaseRef, "error", err.Error())
		return nil, nil
	}

	metrics, err := fetch(ctx, db, dialect, steamID)
	if err != nil {
		if deps.Debug {
			return nil, fmt.Errorf("failed to fetch user stats: %w", err)
		}
		reporting.Report(ctx, err, map[string]string{
			"databaseRef": binding.DatabaseRef,
		})
		return nil, nil
	}
	if metrics == nil {
		return nil, nil
	}

	return &domain.UserStatsSummary{
		Server:     binding.Server,
		DriverName: driver.Name(),
		Blocks:     driver.Blocks(),
		Metrics:    metrics,
	}, nil
}

// countAndSelect runs the count and page queries of b
func countAndSelect[T any](ctx context.Context, db *sqlx.DB, b *tablequery.Builder) ([]T, int, error) {
	countQuery, countArgs := b.CountSQL()
	var count int
	if err := db.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count rows: %w", err)
	}

	rows := []T{}
	if count == 0 {
		return rows, 0, nil
	}

	query, args := b.SQL()
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to select rows: %w", err)
	}

	return rows, count, nil
}

func openDatabase(ctx context.Context, deps Deps, binding domain.ServerBinding) (*sqlx.DB, tablequery.Dialect, error) {
	db, dialect, err := deps.Databases.Database(ctx, binding.DatabaseRef)
	if err != nil {
		return nil, tablequery.Dialect{}, fmt.Errorf("failed to get database %s: %w", binding.DatabaseRef, err)
	}
	return db, dialect, nil
}
