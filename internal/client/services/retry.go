package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/truecam/internal/client/qtsp"
)

// TokenSource hands out bearer tokens and drops ones the provider rejected.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context, rejected string)
}

// withTokenRetry runs call with token. If the provider rejects the token the
// cached one is dropped, a fresh one is obtained and call runs once more.
// call must reuse its idempotency key so the retry cannot duplicate a
// provider resource. The token in effect afterwards is returned.
func withTokenRetry(ctx context.Context, tokens TokenSource, token string, call func(token string) error) (string, error) {
	err := call(token)
	if err == nil || !errors.Is(err, qtsp.ErrUnauthorized) {
		return token, err
	}

	tokens.Invalidate(ctx, token)
	fresh, terr := tokens.Token(ctx)
	if terr != nil {
		return token, fmt.Errorf("%w (re-authentication failed: %v)", err, terr)
	}
	return fresh, call(fresh)
}
