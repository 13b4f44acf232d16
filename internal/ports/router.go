package ports

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Amund211/serverstats/internal/ratelimiting"
)

type Handlers struct {
	Leaderboard  http.HandlerFunc
	Columns      http.HandlerFunc
	UserStats    http.HandlerFunc
	ProfileStats http.HandlerFunc
	Drivers      http.HandlerFunc
}

// NewRouter mounts the handlers behind CORS, request metrics and a per IP rate limit
func NewRouter(handlers Handlers, originPolicy *OriginPolicy) chi.Router {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(120),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(BuildCORSMiddleware(originPolicy))
	r.Use(asHandlerMiddleware(NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter))))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/drivers", handlers.Drivers)

		r.Route("/servers/{serverID}", func(r chi.Router) {
			r.Get("/leaderboard", handlers.Leaderboard)
			r.Post("/leaderboard", handlers.Leaderboard)
			r.Get("/columns", handlers.Columns)
			r.Get("/users/{userID}/stats", handlers.UserStats)
		})

		r.Get("/users/{userID}/stats", handlers.ProfileStats)
	})

	return r
}
