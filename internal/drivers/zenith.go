package drivers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/strutils"
	"github.com/Amund211/serverstats/internal/tablequery"
)

const ZenithName = "Zenith"

const unranked = "Unranked"

const (
	zenithRanksColumn     = "K4-Zenith-Ranks.storage"
	zenithTimeStatsColumn = "K4-Zenith-TimeStats.storage"
	zenithStatsColumn     = "K4-Zenith-Stats.storage"
)

// The plugin stores ids in several forms sharing the SteamID64 digits from here on
const zenithLookupSuffixStart = 10

// Limit on rows sharing a lookup suffix
const zenithMaxCandidates = 50

var lastOnlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type zenithOptions struct {
	Ranks string `json:"ranks"`
	Table string `json:"table"`
}

// zenith reads the K4-Zenith player_storage table, where each module keeps
// its data as a JSON blob in its own column
type zenith struct {
	options zenithOptions
	tracer  trace.Tracer
}

func NewZenith(extraConfig string) (Driver, error) {
	options := zenithOptions{
		Ranks: "default",
		Table: "player_storage",
	}
	if err := decodeOptions(extraConfig, &options); err != nil {
		return nil, err
	}
	if options.Ranks == "" {
		options.Ranks = "default"
	}
	if options.Table == "" {
		return nil, fmt.Errorf("%w: table must not be empty", domain.ErrInvalidDriverConfig)
	}

	return &zenith{
		options: options,
		tracer:  otel.Tracer("serverstats/drivers/zenith"),
	}, nil
}

func (d *zenith) Name() string {
	return ZenithName
}

func (d *zenith) SupportedMods() []int {
	return []int{domain.ModCS2}
}

func (d *zenith) Blocks() []domain.BlockDefinition {
	return []domain.BlockDefinition{
		{Key: "points", LabelRef: "stats.score", IconRef: "ph-number-circle-five"},
		{Key: "rank", LabelRef: "stats.rank", IconRef: "ph-medal"},
		{Key: "kills", LabelRef: "stats.profile.kills", IconRef: "ph-smiley-x-eyes"},
		{Key: "deaths", LabelRef: "stats.profile.deaths", IconRef: "ph-skull"},
		{Key: "headshots", LabelRef: "stats.profile.headshots", IconRef: "ph-baby"},
		{Key: "assists", LabelRef: "stats.profile.assists", IconRef: "ph-handshake"},
		{Key: "round_win", LabelRef: "stats.profile.round_win", IconRef: "ph-trophy"},
		{Key: "round_lose", LabelRef: "stats.profile.round_lose", IconRef: "ph-thumbs-down"},
	}
}

// Metrics in the blobs can not be ordered or searched on in storage
func (d *zenith) Columns() domain.SchemaDescriptor {
	return domain.SchemaDescriptor{
		Columns: []domain.Column{
			{Name: "user_url", Type: domain.DisplayHidden},
			{Name: "avatar", Type: domain.DisplayHidden},
			{Name: "name", Label: "stats.name", Field: "name", Type: domain.DisplayHidden, Orderable: true, Searchable: true},
			{Name: "", Label: "def.user", Type: domain.DisplayCombined, Visible: true, Combine: []string{"avatar", "name"}, Link: "user_url"},
			{Name: "rank", Label: "stats.rank", Type: domain.DisplayText, Visible: true},
			{Name: "points", Label: "stats.score", Type: domain.DisplayText, Visible: true},
			{Name: "kills", Label: "stats.kills", Type: domain.DisplayText, Visible: true},
			{Name: "deaths", Label: "stats.deaths", Type: domain.DisplayText, Visible: true},
			{Name: "last_online", Label: "stats.last_active", Field: "last_online", Type: domain.DisplayText, Visible: true, Orderable: true, DefaultOrder: true, DefaultDirection: domain.SortDescending},
		},
	}
}

type zenithRow struct {
	SteamID    sql.NullString `db:"steam_id"`
	Name       sql.NullString `db:"name"`
	LastOnline sql.NullString `db:"last_online"`
	Ranks      sql.NullString `db:"ranks_storage"`
	TimeStats  sql.NullString `db:"time_storage"`
	Stats      sql.NullString `db:"stats_storage"`
}

type zenithRanks struct {
	Points flexInt    `json:"Points"`
	Rank   flexString `json:"Rank"`
}

type zenithTimeStats struct {
	TotalPlaytime flexInt `json:"TotalPlaytime"`
}

type zenithStats struct {
	Kills     flexInt `json:"Kills"`
	Deaths    flexInt `json:"Deaths"`
	Headshots flexInt `json:"Headshots"`
	Assists   flexInt `json:"Assists"`
	RoundWin  flexInt `json:"RoundWin"`
	RoundLose flexInt `json:"RoundLose"`
}

// decodeBlob decodes one module's storage into target. On failure target is
// reset to its zero value.
func decodeBlob[T any](ctx context.Context, column string, blob sql.NullString, target *T) {
	if !blob.Valid || strings.TrimSpace(blob.String) == "" {
		return
	}

	if err := json.Unmarshal([]byte(blob.String), target); err != nil {
		var empty T
		*target = empty
		logging.FromContext(ctx).WarnContext(ctx, "Failed to decode player storage",
			slog.String("column", column),
			slog.String("raw", blob.String),
			slog.String("error", err.Error()),
		)
	}
}

type zenithMetrics struct {
	ranks     zenithRanks
	timeStats zenithTimeStats
	stats     zenithStats
}

func decodeZenithRow(ctx context.Context, row zenithRow) zenithMetrics {
	var metrics zenithMetrics
	decodeBlob(ctx, zenithRanksColumn, row.Ranks, &metrics.ranks)
	decodeBlob(ctx, zenithTimeStatsColumn, row.TimeStats, &metrics.timeStats)
	decodeBlob(ctx, zenithStatsColumn, row.Stats, &metrics.stats)
	return metrics
}

func (m zenithMetrics) rank() string {
	if m.ranks.Rank == "" {
		return unranked
	}
	return string(m.ranks.Rank)
}

func formatLastOnline(ctx context.Context, raw sql.NullString, layout string) string {
	if !raw.Valid || raw.String == "" {
		return ""
	}

	for _, candidate := range lastOnlineLayouts {
		if parsed, err := time.Parse(candidate, raw.String); err == nil {
			return parsed.Format(layout)
		}
	}

	logging.FromContext(ctx).WarnContext(ctx, "Failed to parse last online", slog.String("raw", raw.String))
	return raw.String
}

func (d *zenith) selectColumns(dialect tablequery.Dialect) []string {
	column := func(name, alias string) string {
		return fmt.Sprintf("%s AS %s", dialect.QuoteRaw(name), dialect.QuoteRaw(alias))
	}
	return []string{
		column("steam_id", "steam_id"),
		column("name", "name"),
		column("last_online", "last_online"),
		column(zenithRanksColumn, "ranks_storage"),
		column(zenithTimeStatsColumn, "time_storage"),
		column(zenithStatsColumn, "stats_storage"),
	}
}

func (d *zenith) pageBuilder(dialect tablequery.Dialect, query domain.TableQuery) *tablequery.Builder {
	q := dialect.QuoteRaw

	b := tablequery.NewBuilder(dialect, q(d.options.Table)).Select(d.selectColumns(dialect)...)

	globalSearch := func(value string) tablequery.Condition {
		return tablequery.Or(
			tablequery.Equals(q("steam_id"), value),
			tablequery.Contains(q("name"), value),
		)
	}

	return tablequery.Apply(b, d.Columns(), query, globalSearch, q("steam_id"))
}

func (d *zenith) FetchPage(ctx context.Context, deps Deps, binding domain.ServerBinding, query domain.TableQuery) (domain.PageResult, error) {
	ctx, span := d.tracer.Start(ctx, "Zenith.FetchPage", trace.WithAttributes(attribute.Int("serverID", binding.Server.ID)))
	defer span.End()

	db, dialect, err := openDatabase(ctx, deps, binding)
	if err != nil {
		return domain.PageResult{}, err
	}

	rows, count, err := countAndSelect[zenithRow](ctx, db, d.pageBuilder(dialect, query))
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("failed to fetch page: %w", err)
	}

	logger := logging.FromContext(ctx)
	steamIDs := make([]string, len(rows))
	for i, row := range rows {
		steamID, err := strutils.NormalizeSteamID(row.SteamID.String)
		if err != nil {
			logger.WarnContext(ctx, "Skipping unconvertible steam id in identity batch", slog.String("steamID", row.SteamID.String), slog.String("error", err.Error()))
			continue
		}
		steamIDs[i] = steamID
	}

	e := enricher{
		links:      deps.Links,
		ranksSet:   d.options.Ranks,
		identities: resolveBatch(ctx, deps.Identities, steamIDs),
		idField:    "steam_id",
	}

	values := make([]map[string]any, len(rows))
	for i, row := range rows {
		metrics := decodeZenithRow(ctx, row)
		values[i] = map[string]any{
			"steam_id":    row.SteamID.String,
			"name":        row.Name.String,
			"rank":        metrics.rank(),
			"points":      int64(metrics.ranks.Points),
			"kills":       int64(metrics.stats.Kills),
			"deaths":      int64(metrics.stats.Deaths),
			"last_online": formatLastOnline(ctx, row.LastOnline, deps.dateFormat()),
		}
		e.enrich(values[i], steamIDs[i])
	}

	return domain.PageResult{
		DrawToken:     query.DrawToken,
		TotalCount:    count,
		FilteredCount: count,
		Rows:          normalizeRows(d.Columns(), values),
	}, nil
}

func (d *zenith) userStatsBuilder(dialect tablequery.Dialect, steamID string) *tablequery.Builder {
	suffix := steamID
	if len(steamID) > zenithLookupSuffixStart {
		suffix = steamID[zenithLookupSuffixStart:]
	}

	q := dialect.QuoteRaw
	b := tablequery.NewBuilder(dialect, q(d.options.Table)).
		Select(d.selectColumns(dialect)...).
		Where(tablequery.EndsWith(q("steam_id"), suffix)).
		OrderBy(q("steam_id"), domain.SortAscending)

	// Candidates are verified after the fetch
	return b.Paginate(1, zenithMaxCandidates)
}

func (d *zenith) fetchUserStatsFunc(deps Deps) userStatsFetcher {
	return func(ctx context.Context, db *sqlx.DB, dialect tablequery.Dialect, steamID string) (map[string]any, error) {
		ctx, span := d.tracer.Start(ctx, "Zenith.FetchUserStats")
		defer span.End()

		query, args := d.userStatsBuilder(dialect, steamID).SQL()

		candidates := []zenithRow{}
		if err := db.SelectContext(ctx, &candidates, query, args...); err != nil {
			return nil, fmt.Errorf("failed to select user stats: %w", err)
		}

		for _, row := range candidates {
			candidateID, err := strutils.NormalizeSteamID(row.SteamID.String)
			if err != nil || candidateID != steamID {
				continue
			}

			metrics := decodeZenithRow(ctx, row)
			return map[string]any{
				"points":      int64(metrics.ranks.Points),
				"rank":        metrics.rank(),
				"kills":       int64(metrics.stats.Kills),
				"deaths":      int64(metrics.stats.Deaths),
				"headshots":   int64(metrics.stats.Headshots),
				"assists":     int64(metrics.stats.Assists),
				"round_win":   int64(metrics.stats.RoundWin),
				"round_lose":  int64(metrics.stats.RoundLose),
				"playtime":    int64(metrics.timeStats.TotalPlaytime),
				"last_online": formatLastOnline(ctx, row.LastOnline, deps.dateFormat()),
			}, nil
		}

		return nil, nil
	}
}

func (d *zenith) FetchUserStats(ctx context.Context, deps Deps, serverID int, user domain.User) (*domain.UserStatsSummary, error) {
	return fetchUserStats(ctx, d, deps, serverID, user, d.fetchUserStatsFunc(deps))
}

var _ Driver = (*zenith)(nil)
