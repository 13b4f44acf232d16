package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/serverstats/internal/adapters/bindingrepository"
	"github.com/Amund211/serverstats/internal/adapters/cache"
	"github.com/Amund211/serverstats/internal/adapters/database"
	"github.com/Amund211/serverstats/internal/adapters/identitycache"
	"github.com/Amund211/serverstats/internal/adapters/identityprovider"
	"github.com/Amund211/serverstats/internal/adapters/sitelinks"
	"github.com/Amund211/serverstats/internal/adapters/statsdb"
	"github.com/Amund211/serverstats/internal/adapters/userrepository"
	"github.com/Amund211/serverstats/internal/app"
	"github.com/Amund211/serverstats/internal/config"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
)

func main() {
	serverID := flag.Int("server", 0, "server id")
	userID := flag.Int("user", 0, "print the stats of this user instead of the leaderboard")
	page := flag.Int("page", 1, "leaderboard page")
	pageSize := flag.Int("size", domain.DefaultPageSize, "leaderboard page size")
	search := flag.String("search", "", "leaderboard search")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx := logging.AddToContext(context.Background(), logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	if *serverID <= 0 {
		fail("No server id provided")
	}

	conf, err := config.Load()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	db, err := database.NewAdminDatabase(ctx, conf)
	if err != nil {
		fail("Failed to connect to admin database", "error", err.Error())
	}
	defer db.Close()

	schema := database.GetSchemaName(!conf.IsProduction())
	bindingRepo := bindingrepository.NewPostgres(db, schema)
	userRepo := userrepository.NewPostgres(db, schema)

	statsDatabases := statsdb.NewRegistry(conf.Databases())
	defer statsDatabases.Close()

	identityProvider, err := identityprovider.NewSteamOrMock(conf, &http.Client{Timeout: 10 * time.Second}, time.Now, time.After)
	if err != nil {
		fail("Failed to initialize Steam API", "error", err.Error())
	}

	registry := drivers.NewDefaultRegistry()
	getServerBinding := app.BuildGetServerBinding(cache.NewBasicCache[domain.ServerBinding](), bindingRepo)
	deps := drivers.Deps{
		Databases:  statsDatabases,
		GetBinding: app.BindingForDriver(getServerBinding),
		Identities: app.BuildResolveIdentitiesWithCache(identitycache.NewTTLIdentityCache(time.Minute), identityProvider),
		Links:      sitelinks.FromConfig(conf),
		DateFormat: conf.DateFormat(),
		// Show storage errors instead of empty results
		Debug: true,
	}

	var result any
	if *userID > 0 {
		result, err = app.BuildGetUserStats(getServerBinding, registry, userRepo, deps)(ctx, *serverID, *userID)
	} else {
		query := domain.TableQuery{
			Page:         *page,
			PageSize:     *pageSize,
			DrawToken:    "1",
			GlobalSearch: *search,
		}.Normalize()
		result, err = app.BuildGetLeaderboardPage(getServerBinding, registry, deps)(ctx, *serverID, query)
	}
	if err != nil {
		fail("Failed to get stats", "error", err.Error())
	}

	marshalled, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fail("Failed to marshal result", "error", err.Error())
	}
	fmt.Println(string(marshalled))
}
