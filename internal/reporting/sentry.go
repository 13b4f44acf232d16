package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/Amund211/serverstats/internal/config"
	"github.com/Amund211/serverstats/internal/logging"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

var steamID64Rx = regexp.MustCompile(`\b7656119\d{10}\b`)
var steamID2Rx = regexp.MustCompile(`STEAM_[0-5]:[01]:\d+`)
var steamID3Rx = regexp.MustCompile(`\[U:1:\d+\]`)
var apiKeyRx = regexp.MustCompile(`([?&]key=)[^&"\s]+`)
var hostRx = regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`)

// stripAPIKey removes Steam Web API keys from request urls
func stripAPIKey(s string) string {
	return apiKeyRx.ReplaceAllString(s, "${1}<key>")
}

// sanitizeError drops the variable parts of err so similar errors group together
func sanitizeError(err string) string {
	err = stripAPIKey(err)
	for _, rx := range []*regexp.Regexp{steamID64Rx, steamID2Rx, steamID3Rx} {
		err = rx.ReplaceAllString(err, "<steamid>")
	}
	return hostRx.ReplaceAllString(err, "<host>")
}

func applyMeta(scope *sentry.Scope, meta ReportingMeta) {
	scope.SetTags(meta.tags)
	for key, value := range meta.extras {
		scope.SetExtra(key, value)
	}
	if meta.userID != "" {
		scope.SetUser(sentry.User{ID: meta.userID})
	}
	if !meta.startedAt.IsZero() {
		scope.SetExtra("secondsSinceStart", time.Since(meta.startedAt).Seconds())
	}
}

// Report logs err and sends it to the Sentry hub of ctx along with the
// reporting meta of ctx
func Report(ctx context.Context, err error, extras ...map[string]string) {
	logger := logging.FromContext(ctx)
	if err == nil {
		err = errors.New("No error provided")
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		logger.WarnContext(ctx, "Failed to get Sentry hub from context", slog.String("error", stripAPIKey(err.Error())), slog.Any("extras", extras))
		return
	}

	logger.ErrorContext(
		ctx,
		"Reporting error to Sentry",
		slog.String("error", stripAPIKey(err.Error())),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		applyMeta(scope, MetaFromContext(ctx))

		for _, extra := range extras {
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

// scrubEvent removes api keys from everything in event that may contain an error message
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = stripAPIKey(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = stripAPIKey(event.Exception[i].Value)
	}
	for i := range event.Breadcrumbs {
		event.Breadcrumbs[i].Message = stripAPIKey(event.Breadcrumbs[i].Message)
	}
	return event
}

func addMetaMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "<missing>"
		}

		ctx := AddTagsToContext(r.Context(), map[string]string{
			"userAgent":  userAgent,
			"methodPath": fmt.Sprintf("%s %s", r.Method, r.URL.Path),
		})
		ctx = setStartedAtInContext(ctx, time.Now())

		next(w, r.WithContext(ctx))
	}
}

func InitSentryMiddleware(sentryDSN string, environment string) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})

	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		return sentryHandler.HandleFunc(addMetaMiddleware(next))
	}

	flush := func() {
		sentry.Flush(5 * time.Second)
	}

	return middleware, flush, nil
}

func NewSentryMiddlewareOrMock(conf config.Config) (func(http.HandlerFunc) http.HandlerFunc, func(), error) {
	if conf.SentryDSN() != "" {
		return InitSentryMiddleware(conf.SentryDSN(), conf.Environment())
	}

	if !conf.IsDevelopment() {
		return nil, nil, fmt.Errorf("%w: sentry_dsn", config.ErrMissingRequiredValue)
	}

	// Development without a DSN only collects the reporting meta
	return addMetaMiddleware, func() {}, nil
}
