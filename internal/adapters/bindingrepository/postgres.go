package bindingrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/reporting"
)

// Postgres stores servers and their stats bindings in the admin database
type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("serverstats/bindingrepository/postgres")
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: tracer,
	}
}

type dbServer struct {
	ID      int    `db:"id"`
	Name    string `db:"name"`
	Address string `db:"address"`
	Mod     int    `db:"mod"`
}

type dbBinding struct {
	ID          int    `db:"binding_id"`
	DriverName  string `db:"driver_name"`
	DatabaseRef string `db:"database_ref"`
	ExtraConfig string `db:"extra_config"`

	dbServer
}

func (s dbServer) toDomain() domain.Server {
	return domain.Server{
		ID:      s.ID,
		Name:    s.Name,
		Address: s.Address,
		Mod:     s.Mod,
	}
}

func (b dbBinding) toDomain() domain.ServerBinding {
	return domain.ServerBinding{
		ID:          b.ID,
		DriverName:  b.DriverName,
		DatabaseRef: b.DatabaseRef,
		ExtraConfig: b.ExtraConfig,
		Server:      b.dbServer.toDomain(),
	}
}

func (p *Postgres) table(name string) string {
	return fmt.Sprintf("%s.%s", pq.QuoteIdentifier(p.schema), name)
}

func (p *Postgres) selectBindings() string {
	return fmt.Sprintf(`SELECT
		b.id AS binding_id, b.driver_name, b.database_ref, b.extra_config,
		s.id, s.name, s.address, s.mod
		FROM %s b
		JOIN %s s ON s.id = b.server_id`,
		p.table("stats_bindings"), p.table("servers"),
	)
}

func (p *Postgres) GetBinding(ctx context.Context, serverID int) (domain.ServerBinding, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetBinding", trace.WithAttributes(attribute.Int("serverID", serverID)))
	defer span.End()

	var binding dbBinding
	err := p.db.GetContext(ctx, &binding, p.selectBindings()+" WHERE b.server_id = $1", serverID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ServerBinding{}, fmt.Errorf("%w: server %d", domain.ErrBindingNotFound, serverID)
	}
	if err != nil {
		err := fmt.Errorf("failed to get binding: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(serverID),
		})
		return domain.ServerBinding{}, err
	}

	return binding.toDomain(), nil
}

func (p *Postgres) ListBindings(ctx context.Context) ([]domain.ServerBinding, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.ListBindings")
	defer span.End()

	var rows []dbBinding
	err := p.db.SelectContext(ctx, &rows, p.selectBindings()+" ORDER BY s.id ASC")
	if err != nil {
		err := fmt.Errorf("failed to list bindings: %w", err)
		reporting.Report(ctx, err)
		return nil, err
	}

	bindings := make([]domain.ServerBinding, 0, len(rows))
	for _, row := range rows {
		bindings = append(bindings, row.toDomain())
	}
	return bindings, nil
}

func (p *Postgres) GetServer(ctx context.Context, serverID int) (domain.Server, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetServer", trace.WithAttributes(attribute.Int("serverID", serverID)))
	defer span.End()

	var server dbServer
	err := p.db.GetContext(
		ctx,
		&server,
		fmt.Sprintf("SELECT id, name, address, mod FROM %s WHERE id = $1", p.table("servers")),
		serverID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Server{}, fmt.Errorf("%w: %d", domain.ErrServerNotFound, serverID)
	}
	if err != nil {
		err := fmt.Errorf("failed to get server: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(serverID),
		})
		return domain.Server{}, err
	}

	return server.toDomain(), nil
}

// StoreServer inserts the server or updates the existing one with the same id
func (p *Postgres) StoreServer(ctx context.Context, server domain.Server) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreServer", trace.WithAttributes(attribute.Int("serverID", server.ID)))
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (id, name, address, mod)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			mod = EXCLUDED.mod`,
			p.table("servers")),
		server.ID,
		server.Name,
		server.Address,
		server.Mod,
	)
	if err != nil {
		err := fmt.Errorf("failed to store server: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(server.ID),
		})
		return err
	}
	return nil
}

func (p *Postgres) StoreBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreBinding", trace.WithAttributes(attribute.Int("serverID", binding.Server.ID)))
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (server_id, driver_name, database_ref, extra_config)
		VALUES ($1, $2, $3, $4)`,
			p.table("stats_bindings")),
		binding.Server.ID,
		binding.DriverName,
		binding.DatabaseRef,
		binding.ExtraConfig,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
		return domain.ServerBinding{}, fmt.Errorf("%w: %d", domain.ErrServerNotFound, binding.Server.ID)
	}
	if err != nil {
		err := fmt.Errorf("failed to store binding: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(binding.Server.ID),
			"driver":   binding.DriverName,
		})
		return domain.ServerBinding{}, err
	}

	return p.GetBinding(ctx, binding.Server.ID)
}

func (p *Postgres) UpdateBinding(ctx context.Context, binding domain.ServerBinding) (domain.ServerBinding, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.UpdateBinding", trace.WithAttributes(attribute.Int("serverID", binding.Server.ID)))
	defer span.End()

	result, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`UPDATE %s SET
			driver_name = $2,
			database_ref = $3,
			extra_config = $4,
			updated_at = NOW()
		WHERE server_id = $1`,
			p.table("stats_bindings")),
		binding.Server.ID,
		binding.DriverName,
		binding.DatabaseRef,
		binding.ExtraConfig,
	)
	if err == nil {
		err = requireAffected(result, domain.ErrBindingNotFound, binding.Server.ID)
		if errors.Is(err, domain.ErrBindingNotFound) {
			return domain.ServerBinding{}, err
		}
	}
	if err != nil {
		err := fmt.Errorf("failed to update binding: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(binding.Server.ID),
			"driver":   binding.DriverName,
		})
		return domain.ServerBinding{}, err
	}

	return p.GetBinding(ctx, binding.Server.ID)
}

func (p *Postgres) DeleteBinding(ctx context.Context, serverID int) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.DeleteBinding", trace.WithAttributes(attribute.Int("serverID", serverID)))
	defer span.End()

	result, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM %s WHERE server_id = $1", p.table("stats_bindings")),
		serverID,
	)
	if err == nil {
		err = requireAffected(result, domain.ErrBindingNotFound, serverID)
		if errors.Is(err, domain.ErrBindingNotFound) {
			return err
		}
	}
	if err != nil {
		err := fmt.Errorf("failed to delete binding: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"serverID": strconv.Itoa(serverID),
		})
		return err
	}
	return nil
}

func requireAffected(result sql.Result, notFound error, serverID int) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: server %d", notFound, serverID)
	}
	return nil
}
