package identitycache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/reporting"
)

const redisKeyPrefix = "serverstats:identity:"

type redisIdentityCache struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisIdentityCache shares resolved identities between instances.
// Redis failures are reported and treated as cache misses.
func NewRedisIdentityCache(client *redis.Client, ttl time.Duration) IdentityCache {
	return &redisIdentityCache{
		client: client,
		ttl:    ttl,
		tracer: otel.Tracer("serverstats/identitycache/redis"),
	}
}

func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func redisKey(steamID string) string {
	return redisKeyPrefix + steamID
}

func (c *redisIdentityCache) GetMany(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, []string) {
	ctx, span := c.tracer.Start(ctx, "RedisIdentityCache.GetMany")
	defer span.End()

	found := make(map[string]domain.ResolvedIdentity, len(steamIDs))
	if len(steamIDs) == 0 {
		return found, []string{}
	}

	keys := make([]string, len(steamIDs))
	for i, id := range steamIDs {
		keys[i] = redisKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to get identities from redis: %w", err))
		return found, append([]string{}, steamIDs...)
	}

	missing := []string{}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			missing = append(missing, steamIDs[i])
			continue
		}

		var cached entry
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to decode cached identity", slog.String("raw", raw), slog.String("error", err.Error()))
			missing = append(missing, steamIDs[i])
			continue
		}
		if cached.Resolved {
			found[steamIDs[i]] = cached.Identity
		}
	}

	return found, missing
}

func (c *redisIdentityCache) SetMany(ctx context.Context, identities map[string]domain.ResolvedIdentity, unresolved []string) {
	ctx, span := c.tracer.Start(ctx, "RedisIdentityCache.SetMany")
	defer span.End()

	if len(identities) == 0 && len(unresolved) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	set := func(id string, value entry) {
		data, err := json.Marshal(value)
		if err != nil {
			// Only strings
			panic(fmt.Sprintf("failed to marshal identity: %s", err))
		}
		pipe.Set(ctx, redisKey(id), data, c.ttl)
	}
	for id, identity := range identities {
		set(id, entry{Identity: identity, Resolved: true})
	}
	for _, id := range unresolved {
		set(id, entry{Resolved: false})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to store identities in redis: %w", err))
	}
}
