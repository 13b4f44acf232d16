package statsdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	// Stats database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Amund211/serverstats/internal/config"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/tablequery"
)

type openDatabase struct {
	db      *sqlx.DB
	dialect tablequery.Dialect
}

// Registry lazily opens one connection pool per configured stats database
type Registry struct {
	databases map[string]config.Database

	mutex sync.Mutex
	open  map[string]openDatabase

	tracer trace.Tracer
}

func NewRegistry(databases map[string]config.Database) *Registry {
	return &Registry{
		databases: databases,
		open:      make(map[string]openDatabase),
		tracer:    otel.Tracer("serverstats/adapters/statsdb"),
	}
}

// Has reports whether ref is configured or registered
func (r *Registry) Has(ref string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.open[ref]; ok {
		return true
	}
	_, ok := r.databases[ref]
	return ok
}

// Register adds an already opened database under ref
func (r *Registry) Register(ref string, db *sqlx.DB) error {
	dialect, err := tablequery.DialectFor(db.DriverName())
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ref, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.open[ref] = openDatabase{db: db, dialect: dialect}
	return nil
}

func (r *Registry) Database(ctx context.Context, ref string) (*sqlx.DB, tablequery.Dialect, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.open[ref]; ok {
		return existing.db, existing.dialect, nil
	}

	ctx, span := r.tracer.Start(ctx, "StatsDB.Open", trace.WithAttributes(attribute.String("ref", ref)))
	defer span.End()

	database, ok := r.databases[ref]
	if !ok {
		return nil, tablequery.Dialect{}, fmt.Errorf("%w: %s", domain.ErrDatabaseNotConfigured, ref)
	}

	dialect, err := tablequery.DialectFor(database.Driver)
	if err != nil {
		return nil, tablequery.Dialect{}, fmt.Errorf("%w: %s: %w", domain.ErrDatabaseNotConfigured, ref, err)
	}

	db, err := sqlx.Open(database.Driver, database.DSN)
	if err != nil {
		return nil, tablequery.Dialect{}, fmt.Errorf("%w: failed to open %s: %w", domain.ErrDatabaseNotConfigured, ref, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logging.FromContext(ctx).InfoContext(ctx, "Opened stats database", slog.String("ref", ref), slog.String("driver", database.Driver))

	r.open[ref] = openDatabase{db: db, dialect: dialect}
	return db, dialect, nil
}

func (r *Registry) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var err error
	for ref, database := range r.open {
		if closeErr := database.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", ref, closeErr))
		}
		delete(r.open, ref)
	}
	return err
}
