package drivers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/strutils"
	"github.com/Amund211/serverstats/internal/tablequery"
)

const FirePlayerStatsName = "FirePlayerStats"

// Stored by the plugin for banned players
const bannedLastConnect = -1

type firePlayerStatsOptions struct {
	Ranks       string  `json:"ranks"`
	ServerID    flexInt `json:"server_id"`
	TablePrefix string  `json:"table_prefix"`
}

// firePlayerStats reads the FirePlayersStats plugin schema: players joined to
// per server stats and per weapon stats on account_id
type firePlayerStats struct {
	options firePlayerStatsOptions
	tracer  trace.Tracer
}

func NewFirePlayerStats(extraConfig string) (Driver, error) {
	options := firePlayerStatsOptions{
		Ranks:    "default",
		ServerID: 1,
	}
	if err := decodeOptions(extraConfig, &options); err != nil {
		return nil, err
	}
	if options.Ranks == "" {
		options.Ranks = "default"
	}

	return &firePlayerStats{
		options: options,
		tracer:  otel.Tracer("serverstats/drivers/fireplayerstats"),
	}, nil
}

func (d *firePlayerStats) Name() string {
	return FirePlayerStatsName
}

func (d *firePlayerStats) SupportedMods() []int {
	return []int{domain.ModCS2}
}

func (d *firePlayerStats) Blocks() []domain.BlockDefinition {
	return []domain.BlockDefinition{
		{Key: "points", LabelRef: "stats.profile.value", IconRef: "ph-number-circle-five"},
		{Key: "kills", LabelRef: "stats.profile.kills", IconRef: "ph-smiley-x-eyes"},
		{Key: "deaths", LabelRef: "stats.profile.deaths", IconRef: "ph-skull"},
		{Key: "shoots", LabelRef: "stats.profile.shoots", IconRef: "ph-fire"},
		{Key: "hits", LabelRef: "stats.profile.hits", IconRef: "ph-target"},
		{Key: "headshots", LabelRef: "stats.profile.headshots", IconRef: "ph-baby"},
		{Key: "assists", LabelRef: "stats.profile.assists", IconRef: "ph-handshake"},
		{Key: "round_win", LabelRef: "stats.profile.round_win", IconRef: "ph-trophy"},
		{Key: "round_lose", LabelRef: "stats.profile.round_lose", IconRef: "ph-thumbs-down"},
	}
}

func (d *firePlayerStats) Columns() domain.SchemaDescriptor {
	return domain.SchemaDescriptor{
		Columns: []domain.Column{
			{Name: "user_url", Type: domain.DisplayHidden},
			{Name: "avatar", Type: domain.DisplayHidden},
			{Name: "nickname", Label: "def.user", Field: "p.nickname", Type: domain.DisplayHidden, Searchable: true},
			{Name: "", Label: "def.user", Type: domain.DisplayCombined, Visible: true, Combine: []string{"avatar", "nickname"}, Link: "user_url"},
			{Name: "rank", Label: "stats.rank", Field: "s.rank", Type: domain.DisplayImage, Visible: true, Orderable: true, DefaultOrder: true, DefaultDirection: domain.SortAscending},
			{Name: "points", Label: "stats.score", Field: "s.points", Type: domain.DisplayText, Visible: true, Orderable: true},
			{Name: "kills", Label: "stats.kills", Field: "s.kills", Type: domain.DisplayText, Visible: true, Orderable: true},
			{Name: "deaths", Label: "stats.deaths", Field: "s.deaths", Type: domain.DisplayText, Visible: true, Orderable: true},
		},
	}
}

func (d *firePlayerStats) table(dialect tablequery.Dialect, name string) string {
	return dialect.QuoteRaw(d.options.TablePrefix + name)
}

type firePlayerRow struct {
	SteamID  sql.NullString `db:"steam_id"`
	Nickname sql.NullString `db:"nickname"`
	Rank     sql.NullInt64  `db:"rank"`
	Points   sql.NullInt64  `db:"points"`
	Kills    sql.NullInt64  `db:"kills"`
	Deaths   sql.NullInt64  `db:"deaths"`
}

// values defaults NULL cells, a NULL rank is left without an asset
func (r firePlayerRow) values(ctx context.Context) map[string]any {
	nulls := []string{}
	text := func(name string, v sql.NullString) string {
		if !v.Valid {
			nulls = append(nulls, name)
		}
		return v.String
	}
	number := func(name string, v sql.NullInt64) int64 {
		if !v.Valid {
			nulls = append(nulls, name)
		}
		return v.Int64
	}

	values := map[string]any{
		"steam_id": text("steam_id", r.SteamID),
		"nickname": text("nickname", r.Nickname),
		"points":   number("points", r.Points),
		"kills":    number("kills", r.Kills),
		"deaths":   number("deaths", r.Deaths),
	}
	if r.Rank.Valid {
		values["rank"] = r.Rank.Int64
	} else {
		nulls = append(nulls, "rank")
		values["rank"] = ""
	}

	if len(nulls) > 0 {
		logging.FromContext(ctx).WarnContext(ctx, "Defaulting NULL player stats",
			slog.String("steamID", r.SteamID.String),
			slog.Any("columns", nulls),
		)
	}
	return values
}

func (d *firePlayerStats) pageBuilder(dialect tablequery.Dialect, query domain.TableQuery) *tablequery.Builder {
	q := dialect.Quote
	column := func(field, alias string) string {
		return fmt.Sprintf("%s AS %s", q(field), dialect.QuoteRaw(alias))
	}

	b := tablequery.NewBuilder(dialect, d.table(dialect, "players")+" p").
		Select(
			column("p.steam_id", "steam_id"),
			column("p.nickname", "nickname"),
			column("s.rank", "rank"),
			column("s.points", "points"),
			column("s.kills", "kills"),
			column("s.deaths", "deaths"),
		).
		Join(fmt.Sprintf("INNER JOIN %s s ON %s = %s", d.table(dialect, "servers_stats"), q("s.account_id"), q("p.account_id"))).
		Where(tablequery.Equals(q("s.server_id"), int64(d.options.ServerID))).
		Where(tablequery.Condition{Expr: q("s.lastconnect") + " <> ?", Args: []any{bannedLastConnect}})

	globalSearch := func(value string) tablequery.Condition {
		return tablequery.Contains(q("p.nickname"), value)
	}

	return tablequery.Apply(b, d.Columns(), query, globalSearch, q("p.account_id"))
}

func (d *firePlayerStats) FetchPage(ctx context.Context, deps Deps, binding domain.ServerBinding, query domain.TableQuery) (domain.PageResult, error) {
	ctx, span := d.tracer.Start(ctx, "FirePlayerStats.FetchPage", trace.WithAttributes(attribute.Int("serverID", binding.Server.ID)))
	defer span.End()

	db, dialect, err := openDatabase(ctx, deps, binding)
	if err != nil {
		return domain.PageResult{}, err
	}

	rows, count, err := countAndSelect[firePlayerRow](ctx, db, d.pageBuilder(dialect, query))
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("failed to fetch page: %w", err)
	}

	logger := logging.FromContext(ctx)
	steamIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if !strutils.IsSteamID64(row.SteamID.String) {
			logger.WarnContext(ctx, "Skipping invalid steam id in identity batch", slog.String("steamID", row.SteamID.String))
			continue
		}
		steamIDs = append(steamIDs, row.SteamID.String)
	}

	e := enricher{
		links:      deps.Links,
		ranksSet:   d.options.Ranks,
		identities: resolveBatch(ctx, deps.Identities, steamIDs),
		idField:    "steam_id",
	}

	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		values[i] = row.values(ctx)

		steamID := ""
		if strutils.IsSteamID64(row.SteamID.String) {
			steamID = row.SteamID.String
		}
		e.enrich(values[i], steamID)
	}

	return domain.PageResult{
		DrawToken:     query.DrawToken,
		TotalCount:    count,
		FilteredCount: count,
		Rows:          normalizeRows(d.Columns(), values),
	}, nil
}

type fireUserStatsRow struct {
	AccountID int64 `db:"account_id"`
	Points    int64 `db:"points"`
	Kills     int64 `db:"kills"`
	Deaths    int64 `db:"deaths"`
	Assists   int64 `db:"assists"`
	RoundWin  int64 `db:"round_win"`
	RoundLose int64 `db:"round_lose"`

	Shoots       int64 `db:"shoots"`
	Headshots    int64 `db:"headshots"`
	HitsHead     int64 `db:"hits_head"`
	HitsNeck     int64 `db:"hits_neck"`
	HitsChest    int64 `db:"hits_chest"`
	HitsStomach  int64 `db:"hits_stomach"`
	HitsLeftArm  int64 `db:"hits_left_arm"`
	HitsRightArm int64 `db:"hits_right_arm"`
	HitsLeftLeg  int64 `db:"hits_left_leg"`
	HitsRightLeg int64 `db:"hits_right_leg"`
}

func (r fireUserStatsRow) hits() int64 {
	return r.HitsHead + r.HitsNeck + r.HitsChest + r.HitsStomach +
		r.HitsLeftArm + r.HitsRightArm + r.HitsLeftLeg + r.HitsRightLeg
}

var fireWeaponCounters = []string{
	"shoots", "headshots",
	"hits_head", "hits_neck", "hits_chest", "hits_stomach",
	"hits_left_arm", "hits_right_arm", "hits_left_leg", "hits_right_leg",
}

// aggregateFireUserStats folds the weapon fan-out of one account. Account
// scalars are repeated on every row and read from the first one, weapon
// counters are summed.
func aggregateFireUserStats(rows []fireUserStatsRow) map[string]any {
	if len(rows) == 0 {
		return nil
	}

	first := rows[0]
	var shoots, headshots, hits int64
	for _, row := range rows {
		if row.AccountID != first.AccountID {
			continue
		}
		shoots += row.Shoots
		headshots += row.Headshots
		hits += row.hits()
	}

	return map[string]any{
		"points":     first.Points,
		"kills":      first.Kills,
		"deaths":     first.Deaths,
		"shoots":     shoots,
		"hits":       hits,
		"headshots":  headshots,
		"assists":    first.Assists,
		"round_win":  first.RoundWin,
		"round_lose": first.RoundLose,
	}
}

func (d *firePlayerStats) userStatsBuilder(dialect tablequery.Dialect, steamID string) *tablequery.Builder {
	q := dialect.Quote

	columns := []string{
		fmt.Sprintf("%s AS %s", q("p.account_id"), dialect.QuoteRaw("account_id")),
	}
	for _, name := range []string{"points", "kills", "deaths", "assists", "round_win", "round_lose"} {
		columns = append(columns, fmt.Sprintf("COALESCE(%s, 0) AS %s", q("s."+name), dialect.QuoteRaw(name)))
	}
	for _, name := range fireWeaponCounters {
		columns = append(columns, fmt.Sprintf("COALESCE(%s, 0) AS %s", q("w."+name), dialect.QuoteRaw(name)))
	}

	serverID := int64(d.options.ServerID)

	return tablequery.NewBuilder(dialect, d.table(dialect, "players")+" p").
		Select(columns...).
		Join(fmt.Sprintf("INNER JOIN %s s ON %s = %s", d.table(dialect, "servers_stats"), q("s.account_id"), q("p.account_id"))).
		Join(
			fmt.Sprintf("LEFT JOIN %s w ON %s = %s AND %s = ?", d.table(dialect, "weapons_stats"), q("w.account_id"), q("p.account_id"), q("w.server_id")),
			serverID,
		).
		Where(tablequery.Equals(q("p.steam_id"), steamID)).
		Where(tablequery.Equals(q("s.server_id"), serverID)).
		OrderBy(q("p.account_id"), domain.SortAscending).
		OrderBy(q("w.weapon"), domain.SortAscending)
}

func (d *firePlayerStats) fetchUserStats(ctx context.Context, db *sqlx.DB, dialect tablequery.Dialect, steamID string) (map[string]any, error) {
	ctx, span := d.tracer.Start(ctx, "FirePlayerStats.FetchUserStats")
	defer span.End()

	query, args := d.userStatsBuilder(dialect, steamID).SQL()

	rows := []fireUserStatsRow{}
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select user stats: %w", err)
	}

	return aggregateFireUserStats(rows), nil
}

func (d *firePlayerStats) FetchUserStats(ctx context.Context, deps Deps, serverID int, user domain.User) (*domain.UserStatsSummary, error) {
	return fetchUserStats(ctx, d, deps, serverID, user, d.fetchUserStats)
}

var _ Driver = (*firePlayerStats)(nil)
