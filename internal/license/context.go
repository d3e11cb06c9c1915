package license

import (
	"context"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
)

type resultKey struct{}

// WithResult attaches the authorization answer used to admit a request.
func WithResult(ctx context.Context, res centralhub.AuthorizationResult) context.Context {
	return context.WithValue(ctx, resultKey{}, res)
}

// ResultFromContext returns the answer attached by WithResult.
func ResultFromContext(ctx context.Context) (centralhub.AuthorizationResult, bool) {
	res, ok := ctx.Value(resultKey{}).(centralhub.AuthorizationResult)
	return res, ok
}
