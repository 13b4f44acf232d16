package identityprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/serverstats/internal/config"
	"github.com/Amund211/serverstats/internal/constants"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/Amund211/serverstats/internal/ratelimiting"
	"github.com/Amund211/serverstats/internal/reporting"
	"github.com/Amund211/serverstats/internal/strutils"
)

const steamAPIBaseURL = "https://api.steampowered.com"

// GetPlayerSummaries accepts at most this many ids per request
const maxIDsPerRequest = 100

const getSummariesMaxOperationTime = 2 * time.Second

var ErrInvalidAPIKey = errors.New("invalid steam api key")

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type steamMetricsCollection struct {
	requestCount metric.Int64Counter
	batchSize    metric.Int64Histogram
}

func setupSteamMetrics(meter metric.Meter) (steamMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("identityprovider/steam/request_count")
	if err != nil {
		return steamMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	batchSize, err := meter.Int64Histogram(
		"identityprovider/steam/batch_size",
		metric.WithDescription("Number of ids requested per call"),
	)
	if err != nil {
		return steamMetricsCollection{}, fmt.Errorf("failed to create batch size metric: %w", err)
	}

	return steamMetricsCollection{
		requestCount: requestCount,
		batchSize:    batchSize,
	}, nil
}

type steam struct {
	httpClient HttpClient
	apiKey     string
	baseURL    string
	limiter    ratelimiting.RequestLimiter

	metrics steamMetricsCollection
	tracer  trace.Tracer
}

func NewSteam(httpClient HttpClient, apiKey string, nowFunc func() time.Time, afterFunc func(time.Duration) <-chan time.Time) (IdentityProvider, error) {
	return newSteam(httpClient, apiKey, steamAPIBaseURL, nowFunc, afterFunc)
}

func newSteam(httpClient HttpClient, apiKey string, baseURL string, nowFunc func() time.Time, afterFunc func(time.Duration) <-chan time.Time) (*steam, error) {
	const name = "serverstats/identityprovider/steam"

	metrics, err := setupSteamMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	// The Web API allows 100k calls per day
	limiter := ratelimiting.NewWindowLimitRequestLimiter(300, 5*time.Minute, nowFunc, afterFunc)

	return &steam{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    limiter,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

func (s *steam) GetIdentities(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "Steam.GetIdentities", trace.WithAttributes(attribute.Int("count", len(steamIDs))))
	defer span.End()

	s.metrics.batchSize.Record(ctx, int64(len(steamIDs)))

	identities := make(map[string]domain.ResolvedIdentity, len(steamIDs))
	for start := 0; start < len(steamIDs); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(steamIDs))

		chunk, err := s.getPlayerSummaries(ctx, steamIDs[start:end])
		if err != nil {
			return nil, err
		}
		for id, identity := range chunk {
			identities[id] = identity
		}
	}

	return identities, nil
}

func (s *steam) getPlayerSummaries(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error) {
	query := url.Values{}
	query.Set("key", s.apiKey)
	query.Set("steamids", strings.Join(steamIDs, ","))
	requestURL := fmt.Sprintf("%s/ISteamUser/GetPlayerSummaries/v2/?%s", s.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, withoutURL(err))
		return nil, withoutURL(err)
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)

	var resp *http.Response
	var data []byte
	ran := s.limiter.Limit(ctx, getSummariesMaxOperationTime, func() {
		ctx, span := s.tracer.Start(ctx, "Steam.httpget")
		defer span.End()

		resp, err = s.httpClient.Do(req)
		if err != nil {
			// The url holds the api key
			err = fmt.Errorf("failed to send request: %w", withoutURL(err))
			reporting.Report(ctx, err)
			return
		}

		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			reporting.Report(ctx, err)
			return
		}
	})
	if !ran {
		reporting.Report(ctx, fmt.Errorf("too many requests to steam API"))
		logging.FromContext(ctx).WarnContext(ctx, "Did not run Steam.GetIdentities due to rate limiting", "ctx_error", ctx.Err())
		return nil, fmt.Errorf("%w: too many requests to steam API", domain.ErrTemporarilyUnavailable)
	}

	if err != nil {
		return nil, err
	}

	s.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status_code", strconv.Itoa(resp.StatusCode)),
	))

	identities, err := identitiesFromSteamResponse(resp.StatusCode, data)
	if err != nil {
		err := fmt.Errorf("failed to get identities from steam response: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"data":   string(data),
			"status": strconv.Itoa(resp.StatusCode),
			"count":  strconv.Itoa(len(steamIDs)),
		})
		return nil, err
	}

	return identities, nil
}

func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s steam API: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

type steamPlayer struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	ProfileURL   string `json:"profileurl"`
	Avatar       string `json:"avatar"`
	AvatarMedium string `json:"avatarmedium"`
	AvatarFull   string `json:"avatarfull"`
}

type steamResponse struct {
	Response *struct {
		Players []steamPlayer `json:"players"`
	} `json:"response"`
}

func identitiesFromSteamResponse(statusCode int, data []byte) (map[string]domain.ResolvedIdentity, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: steam API returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusUnauthorized,
		http.StatusForbidden:
		return nil, fmt.Errorf("%w: steam API returned status code %d", ErrInvalidAPIKey, statusCode)
	}

	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("steam API returned status code %d", statusCode)
	}

	var response steamResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse steam response: %w", err)
	}
	if response.Response == nil {
		return nil, fmt.Errorf("steam response is missing the response object")
	}

	identities := make(map[string]domain.ResolvedIdentity, len(response.Response.Players))
	for _, player := range response.Response.Players {
		if !strutils.IsSteamID64(player.SteamID) {
			continue
		}

		avatar := player.AvatarFull
		if avatar == "" {
			avatar = player.AvatarMedium
		}
		if avatar == "" {
			avatar = player.Avatar
		}

		identities[player.SteamID] = domain.ResolvedIdentity{
			CanonicalID: player.SteamID,
			DisplayName: player.PersonaName,
			AvatarURL:   avatar,
			ProfileURL:  player.ProfileURL,
		}
	}

	return identities, nil
}

func NewSteamOrMock(conf config.Config, httpClient HttpClient, nowFunc func() time.Time, afterFunc func(time.Duration) <-chan time.Time) (IdentityProvider, error) {
	if conf.SteamAPIKey() != "" {
		return NewSteam(httpClient, conf.SteamAPIKey(), nowFunc, afterFunc)
	}
	if conf.IsDevelopment() {
		return NewMock(), nil
	}
	return nil, fmt.Errorf("Missing Steam API key in non-development environment")
}
