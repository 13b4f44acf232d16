package ports

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

type driverLister interface {
	Defaults() ([]drivers.Driver, error)
}

func MakeGetDriversHandler(
	registry driverLister,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ds, err := registry.Defaults()
		if err != nil {
			err = fmt.Errorf("failed to list drivers: %w", err)
			reporting.Report(r.Context(), err)
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, driversToResponse(ds))
	}

	return middleware(handler)
}
