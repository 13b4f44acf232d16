package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"

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
	"github.com/Amund211/serverstats/internal/ports"
	"github.com/Amund211/serverstats/internal/reporting"
	"github.com/Amund211/serverstats/internal/telemetry"
)

const PROD_DOMAIN_SUFFIX = "serverstats.example.com"
const STAGING_DOMAIN_SUFFIX = "serverstats-preview.pages.dev"

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)
	ctx = logging.AddToContext(ctx, logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.Load()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	if !conf.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "serverstats", 1.0/100.0)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	identityProvider, err := identityprovider.NewSteamOrMock(conf, httpClient, time.Now, time.After)
	if err != nil {
		fail("Failed to initialize Steam API", "error", err.Error())
	}
	logger.Info("Initialized Steam API")

	var identityCache identitycache.IdentityCache
	if conf.RedisURL() != "" {
		redisClient, err := identitycache.NewRedisClient(conf.RedisURL())
		if err != nil {
			fail("Failed to initialize redis", "error", err.Error())
		}
		defer redisClient.Close()
		identityCache = identitycache.NewRedisIdentityCache(redisClient, 6*time.Hour)
		logger.Info("Using redis identity cache")
	} else {
		identityCache = identitycache.NewTTLIdentityCache(1 * time.Hour)
		logger.Info("Using in-process identity cache")
	}

	logger.Info("Initializing database connection")
	db, err := database.NewAdminDatabase(ctx, conf)
	if err != nil {
		fail("Failed to initialize admin database", "error", err.Error())
	}
	defer db.Close()
	logger.Info("Initialized database connection")

	repositorySchemaName := database.GetSchemaName(!conf.IsProduction())

	err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, repositorySchemaName)
	if err != nil {
		fail("Failed to migrate database", "error", err.Error())
	}

	bindingRepo := bindingrepository.NewPostgres(db, repositorySchemaName)
	userRepo := userrepository.NewPostgres(db, repositorySchemaName)

	statsDatabases := statsdb.NewRegistry(conf.Databases())
	defer func() {
		if err := statsDatabases.Close(); err != nil {
			logger.Error("Failed to close stats databases", "error", err.Error())
		}
	}()

	driverRegistry := drivers.NewDefaultRegistry()

	bindingCache := cache.NewTTLCache[domain.ServerBinding](1 * time.Minute)
	getServerBinding := app.BuildGetServerBinding(bindingCache, bindingRepo)

	deps := drivers.Deps{
		Databases:  statsDatabases,
		GetBinding: app.BindingForDriver(getServerBinding),
		Identities: app.BuildResolveIdentitiesWithCache(identityCache, identityProvider),
		Links:      sitelinks.FromConfig(conf),
		DateFormat: conf.DateFormat(),
		Debug:      conf.Debug(),
	}

	getLeaderboardPage := app.BuildGetLeaderboardPage(getServerBinding, driverRegistry, deps)
	getServerColumns := app.BuildGetServerColumns(getServerBinding, driverRegistry)
	getUserStats := app.BuildGetUserStats(getServerBinding, driverRegistry, userRepo, deps)
	getProfileStats := app.BuildGetProfileStats(bindingRepo, driverRegistry, userRepo, deps)

	originPolicy, err := ports.NewOriginPolicy([]string{PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX}, conf.AllowedOrigins())
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	router := ports.NewRouter(ports.Handlers{
		Leaderboard:  ports.MakeGetLeaderboardHandler(getLeaderboardPage, logger.With("port", "leaderboard"), sentryMiddleware),
		Columns:      ports.MakeGetColumnsHandler(getServerColumns, logger.With("port", "columns"), sentryMiddleware),
		UserStats:    ports.MakeGetUserStatsHandler(getUserStats, logger.With("port", "userstats"), sentryMiddleware),
		ProfileStats: ports.MakeGetProfileStatsHandler(getProfileStats, logger.With("port", "profilestats"), sentryMiddleware),
		Drivers:      ports.MakeGetDriversHandler(driverRegistry, logger.With("port", "drivers"), sentryMiddleware),
	}, originPolicy)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Port()),
		Handler:           otelhttp.NewHandler(router, "serverstats"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Init complete", "port", conf.Port())
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
