package reporting

import (
	"context"
	"maps"
	"strconv"
	"time"
)

type metaContextKey struct{}

// ReportingMeta is attached to every event reported from a request
type ReportingMeta struct {
	tags      map[string]string
	extras    map[string]string
	userID    string
	startedAt time.Time
}

func (m ReportingMeta) Tags() map[string]string {
	return maps.Clone(m.tags)
}

func (m ReportingMeta) Extras() map[string]string {
	return maps.Clone(m.extras)
}

func (m ReportingMeta) UserID() string {
	return m.userID
}

// MetaFromContext returns a copy of the meta in ctx that is safe to modify
func MetaFromContext(ctx context.Context) ReportingMeta {
	meta, _ := ctx.Value(metaContextKey{}).(ReportingMeta)

	tags := maps.Clone(meta.tags)
	if tags == nil {
		tags = make(map[string]string)
	}
	extras := maps.Clone(meta.extras)
	if extras == nil {
		extras = make(map[string]string)
	}

	meta.tags = tags
	meta.extras = extras
	return meta
}

func withMeta(ctx context.Context, update func(meta *ReportingMeta)) context.Context {
	meta := MetaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, metaContextKey{}, meta)
}

func setStartedAtInContext(ctx context.Context, startedAt time.Time) context.Context {
	return withMeta(ctx, func(meta *ReportingMeta) {
		meta.startedAt = startedAt
	})
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	return withMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.extras, extras)
	})
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	return withMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.tags, tags)
	})
}

// SetServerInContext tags events with the server and, when known, its stats driver
func SetServerInContext(ctx context.Context, serverID int, driverName string) context.Context {
	tags := map[string]string{"serverID": strconv.Itoa(serverID)}
	if driverName != "" {
		tags["driver"] = driverName
	}
	return AddTagsToContext(ctx, tags)
}

func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return withMeta(ctx, func(meta *ReportingMeta) {
		meta.userID = userID
	})
}
