package appcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// AppContextKey is the request context key for the active application ID.
type AppContextKey struct{}

// WithApplicationID stores the tenant application ID in the context.
func WithApplicationID(ctx context.Context, appID int64) context.Context {
	return context.WithValue(ctx, AppContextKey{}, appID)
}

// ApplicationIDFromContext returns the tenant application ID from context, if set.
func ApplicationIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(AppContextKey{})
	if value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
