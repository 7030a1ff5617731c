package httputil

import (
	"context"

	"github.com/gamemeet/gamemeet/internal/util/idgen"
)

type reqIDKey struct{}

func NewRequestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ctx = context.WithValue(ctx, reqIDKey{}, idgen.ID())
	return ctx, cancel
}

func ExtractReqID(ctx context.Context) string {
	if s, ok := ctx.Value(reqIDKey{}).(string); ok {
		return s
	}
	return ""
}
