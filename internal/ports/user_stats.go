package ports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Amund211/serverstats/internal/app"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

func MakeGetUserStatsHandler(
	getUserStats app.GetUserStats,
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
		userID, ok := pathID(r, "userID")
		if !ok {
			writeCause(w, r, http.StatusBadRequest, "invalid user id")
			return
		}

		ctx = reporting.SetUserIDInContext(ctx, strconv.Itoa(userID))
		ctx = logging.AddMetaToContext(ctx, slog.Int("serverID", serverID), slog.Int("userID", userID))
		r = r.WithContext(ctx)

		summary, err := getUserStats(ctx, serverID, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if summary == nil {
			writeCause(w, r, http.StatusNotFound, "no info")
			return
		}

		writeJSON(w, r, http.StatusOK, summaryToResponse(*summary))
	}

	return middleware(handler)
}

func MakeGetProfileStatsHandler(
	getProfileStats app.GetProfileStats,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, ok := pathID(r, "userID")
		if !ok {
			writeCause(w, r, http.StatusBadRequest, "invalid user id")
			return
		}

		ctx = reporting.SetUserIDInContext(ctx, strconv.Itoa(userID))
		ctx = logging.AddMetaToContext(ctx, slog.Int("userID", userID))
		r = r.WithContext(ctx)

		summaries, err := getProfileStats(ctx, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		response := profileStatsResponse{Success: true, Servers: make([]userStatsResponse, 0, len(summaries))}
		for _, summary := range summaries {
			response.Servers = append(response.Servers, summaryToResponse(summary))
		}

		writeJSON(w, r, http.StatusOK, response)
	}

	return middleware(handler)
}
