package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/stocktransfer/internal/core"
)

// WithRequestMetadata records the client IP and User-Agent on ctx so the
// run started by this request keeps them in its history entry.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
