package ports

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type portsMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

var metrics portsMetricsCollection

func init() {
	meter := otel.Meter("serverstats/ports")

	requestCount, err := meter.Int64Counter(
		"ports/request_count",
		metric.WithDescription("Requests handled, by route and status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/request_duration_seconds",
		metric.WithDescription("Time spent handling requests, by route"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	metrics = portsMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}
}

// routeLabel is the matched chi pattern, so server and user ids stay out of the labels
func routeLabel(r *http.Request) string {
	routeContext := chi.RouteContext(r.Context())
	if routeContext == nil || routeContext.RoutePattern() == "" {
		return "<unmatched>"
	}
	return routeContext.RoutePattern()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "<missing>"
		}

		ctx := r.Context()
		routeAttributes := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", routeLabel(r)),
		)
		metrics.requestCount.Add(ctx, 1, routeAttributes, metric.WithAttributes(
			attribute.String("status", strconv.Itoa(status)),
			attribute.String("user_agent", userAgent),
		))
		metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), routeAttributes)
	})
}
