package app

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type appMetricsCollection struct {
	pageCount         metric.Int64Counter
	maskedErrorCount  metric.Int64Counter
	identityLookups   metric.Int64Counter
	identityCacheMiss metric.Int64Counter
}

var metrics appMetricsCollection

func init() {
	const name = "serverstats/app"
	meter := otel.Meter(name)

	pageCount, err := meter.Int64Counter(
		"app/leaderboard/page_count",
		metric.WithDescription("Leaderboard pages fetched from stats storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create page count metric: %w", err))
	}

	maskedErrorCount, err := meter.Int64Counter(
		"app/masked_error_count",
		metric.WithDescription("Storage errors hidden from the caller"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create masked error count metric: %w", err))
	}

	identityLookups, err := meter.Int64Counter(
		"app/identities/lookup_count",
		metric.WithDescription("Ids looked up in the identity cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create identity lookup metric: %w", err))
	}

	identityCacheMiss, err := meter.Int64Counter(
		"app/identities/cache_miss_count",
		metric.WithDescription("Ids sent to the identity provider"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create identity cache miss metric: %w", err))
	}

	metrics = appMetricsCollection{
		pageCount:         pageCount,
		maskedErrorCount:  maskedErrorCount,
		identityLookups:   identityLookups,
		identityCacheMiss: identityCacheMiss,
	}
}
