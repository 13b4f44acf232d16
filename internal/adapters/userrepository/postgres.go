package userrepository

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

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("serverstats/userrepository/postgres")
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: tracer,
	}
}

type dbUser struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

type dbSocialNetwork struct {
	Network string `db:"network"`
	Value   string `db:"value"`
}

func (p *Postgres) table(name string) string {
	return fmt.Sprintf("%s.%s", pq.QuoteIdentifier(p.schema), name)
}

func (p *Postgres) GetUser(ctx context.Context, userID int) (domain.User, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetUser", trace.WithAttributes(attribute.Int("userID", userID)))
	defer span.End()

	extra := map[string]string{"userID": strconv.Itoa(userID)}

	var user dbUser
	err := p.db.GetContext(ctx, &user, fmt.Sprintf("SELECT id, name FROM %s WHERE id = $1", p.table("users")), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%w: %d", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		err := fmt.Errorf("failed to get user: %w", err)
		reporting.Report(ctx, err, extra)
		return domain.User{}, err
	}

	var socials []dbSocialNetwork
	err = p.db.SelectContext(
		ctx,
		&socials,
		fmt.Sprintf("SELECT network, value FROM %s WHERE user_id = $1 ORDER BY network ASC", p.table("user_social_networks")),
		userID,
	)
	if err != nil {
		err := fmt.Errorf("failed to get social networks: %w", err)
		reporting.Report(ctx, err, extra)
		return domain.User{}, err
	}

	networks := make([]domain.SocialNetwork, 0, len(socials))
	for _, social := range socials {
		networks = append(networks, domain.SocialNetwork{Key: social.Network, Value: social.Value})
	}

	return domain.User{
		ID:             user.ID,
		Name:           user.Name,
		SocialNetworks: networks,
	}, nil
}

// StoreUser upserts the user and replaces its linked social networks
func (p *Postgres) StoreUser(ctx context.Context, user domain.User) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreUser", trace.WithAttributes(attribute.Int("userID", user.ID)))
	defer span.End()

	extra := map[string]string{"userID": strconv.Itoa(user.ID)}

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err, extra)
		return err
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name`,
			p.table("users")),
		user.ID,
		user.Name,
	)
	if err != nil {
		err := fmt.Errorf("failed to store user: %w", err)
		reporting.Report(ctx, err, extra)
		return err
	}

	_, err = txx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", p.table("user_social_networks")), user.ID)
	if err != nil {
		err := fmt.Errorf("failed to clear social networks: %w", err)
		reporting.Report(ctx, err, extra)
		return err
	}

	for _, social := range user.SocialNetworks {
		_, err = txx.ExecContext(
			ctx,
			fmt.Sprintf(`INSERT INTO %s (user_id, network, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, network)
			DO UPDATE SET value = EXCLUDED.value`,
				p.table("user_social_networks")),
			user.ID,
			social.Key,
			social.Value,
		)
		if err != nil {
			err := fmt.Errorf("failed to store social network: %w", err)
			reporting.Report(ctx, err, extra)
			return err
		}
	}

	if err := txx.Commit(); err != nil {
		err := fmt.Errorf("failed to commit user: %w", err)
		reporting.Report(ctx, err, extra)
		return err
	}
	return nil
}
