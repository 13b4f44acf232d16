package ports

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Amund211/serverstats/internal/app"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

func pathID(r *http.Request, key string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func MakeGetLeaderboardHandler(
	getLeaderboardPage app.GetLeaderboardPage,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		serverID, ok := pathID(r, "serverID")
		if !ok {
			writeCause(w, r, http.StatusBadRequest, "invalid server id")
			return
		}
		ctx = logging.AddMetaToContext(ctx, slog.Int("serverID", serverID))
		r = r.WithContext(ctx)

		query, err := ParseTableQuery(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"page":     strconv.Itoa(query.Page),
			"pageSize": strconv.Itoa(query.PageSize),
			"search":   query.GlobalSearch,
		})
		r = r.WithContext(ctx)

		page, err := getLeaderboardPage(ctx, serverID, query)
		if err != nil {
			// NOTE: GetLeaderboardPage implementations handle their own error reporting
			writeError(w, r, err)
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Returning leaderboard page", slog.Int("rows", len(page.Rows)))

		writeJSON(w, r, http.StatusOK, pageToResponse(page))
	}

	return middleware(handler)
}

func MakeGetColumnsHandler(
	getServerColumns app.GetServerColumns,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		serverID, ok := pathID(r, "serverID")
		if !ok {
			writeCause(w, r, http.StatusBadRequest, "invalid server id")
			return
		}
		ctx = logging.AddMetaToContext(ctx, slog.Int("serverID", serverID))
		r = r.WithContext(ctx)

		columns, err := getServerColumns(ctx, serverID)
		if err != nil {
			writeError(w, r, fmt.Errorf("could not get columns: %w", err))
			return
		}

		writeJSON(w, r, http.StatusOK, columnsToResponse(columns))
	}

	return middleware(handler)
}
