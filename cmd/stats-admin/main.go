package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/Amund211/serverstats/internal/adapters/bindingrepository"
	"github.com/Amund211/serverstats/internal/adapters/cache"
	"github.com/Amund211/serverstats/internal/adapters/database"
	"github.com/Amund211/serverstats/internal/adapters/statsdb"
	"github.com/Amund211/serverstats/internal/adapters/userrepository"
	"github.com/Amund211/serverstats/internal/app"
	"github.com/Amund211/serverstats/internal/config"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
)

const usage = `Usage: stats-admin <command> [flags]

Commands:
  server  -id N -name NAME [-address HOST:PORT] [-mod APPID]   add or update a server
  user    -id N -name NAME [-steam STEAMID]                    add or update a user
  bind    -server N -driver NAME -database REF [-config JSON]  bind a stats driver to a server
  update  -server N -driver NAME -database REF [-config JSON]  change the binding of a server
  unbind  -server N                                            remove the binding of a server
  list                                                         list all bindings
  drivers [-mod APPID]                                         list drivers
  version                                                      show the applied schema migration
`

type schemaVersioner interface {
	Version(ctx context.Context, schemaName string) (uint, bool, error)
}

type admin struct {
	db       *sqlx.DB
	bindings *bindingrepository.Postgres
	users    *userrepository.Postgres

	storeBinding  app.StoreBinding
	updateBinding app.UpdateBinding
	deleteBinding app.DeleteBinding

	registry *drivers.Registry

	schema   string
	migrator schemaVersioner
}

func newAdmin(ctx context.Context, conf config.Config, logger *slog.Logger) (*admin, error) {
	db, err := database.NewAdminDatabase(ctx, conf)
	if err != nil {
		return nil, err
	}

	schema := database.GetSchemaName(!conf.IsProduction())
	migrator := database.NewDatabaseMigrator(db, logger.With("component", "migrator"))
	if err := migrator.Migrate(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	bindings := bindingrepository.NewPostgres(db, schema)
	registry := drivers.NewDefaultRegistry()
	databases := statsdb.NewRegistry(conf.Databases())
	// Nothing reads bindings through the cache here
	bindingCache := cache.NewBasicCache[domain.ServerBinding]()

	return &admin{
		db:            db,
		bindings:      bindings,
		users:         userrepository.NewPostgres(db, schema),
		storeBinding:  app.BuildStoreBinding(bindings, registry, databases, bindingCache),
		updateBinding: app.BuildUpdateBinding(bindings, registry, databases, bindingCache),
		deleteBinding: app.BuildDeleteBinding(bindings, bindingCache),
		registry:      registry,
		schema:        schema,
		migrator:      migrator,
	}, nil
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func bindingFlags(fs *flag.FlagSet) func() domain.ServerBinding {
	serverID := fs.Int("server", 0, "server id")
	driverName := fs.String("driver", "", "stats driver name")
	databaseRef := fs.String("database", "", "stats database ref")
	extraConfig := fs.String("config", "", "driver config as JSON")

	return func() domain.ServerBinding {
		return domain.ServerBinding{
			DriverName:  *driverName,
			DatabaseRef: *databaseRef,
			ExtraConfig: *extraConfig,
			Server:      domain.Server{ID: *serverID},
		}
	}
}

func (a *admin) run(ctx context.Context, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)

	switch command {
	case "server":
		id := fs.Int("id", 0, "server id")
		name := fs.String("name", "", "server name")
		address := fs.String("address", "", "server address")
		mod := fs.Int("mod", domain.ModCS2, "steam app id of the game")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id <= 0 || *name == "" {
			return fmt.Errorf("-id and -name are required")
		}
		return a.bindings.StoreServer(ctx, domain.Server{ID: *id, Name: *name, Address: *address, Mod: *mod})

	case "user":
		id := fs.Int("id", 0, "user id")
		name := fs.String("name", "", "user name")
		steamID := fs.String("steam", "", "linked steam id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id <= 0 {
			return fmt.Errorf("-id is required")
		}
		user := domain.User{ID: *id, Name: *name}
		if *steamID != "" {
			user.SocialNetworks = []domain.SocialNetwork{{Key: domain.SocialNetworkSteam, Value: *steamID}}
		}
		return a.users.StoreUser(ctx, user)

	case "bind", "update":
		binding := bindingFlags(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		store := a.storeBinding
		if command == "update" {
			store = app.StoreBinding(a.updateBinding)
		}
		stored, err := store(ctx, binding())
		if err != nil {
			return err
		}
		return printJSON(stored)

	case "unbind":
		serverID := fs.Int("server", 0, "server id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return a.deleteBinding(ctx, *serverID)

	case "list":
		if err := fs.Parse(args); err != nil {
			return err
		}
		bindings, err := a.bindings.ListBindings(ctx)
		if err != nil {
			return err
		}
		return printJSON(bindings)

	case "drivers":
		mod := fs.Int("mod", 0, "only drivers supporting this steam app id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *mod == 0 {
			return printJSON(a.registry.Names())
		}
		names, err := a.registry.ForMod(*mod)
		if err != nil {
			return err
		}
		return printJSON(names)

	case "version":
		if err := fs.Parse(args); err != nil {
			return err
		}
		version, dirty, err := a.migrator.Version(ctx, a.schema)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"schema": a.schema, "version": version, "dirty": dirty})
	}

	return fmt.Errorf("unknown command %q", command)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx := logging.AddToContext(context.Background(), logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	conf, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err.Error())
		os.Exit(1)
	}

	a, err := newAdmin(ctx, conf, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err.Error())
		os.Exit(1)
	}
	defer a.db.Close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err.Error())
		fmt.Fprint(os.Stderr, usage)
		a.db.Close()
		os.Exit(1)
	}
}
