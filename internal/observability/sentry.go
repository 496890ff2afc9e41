// Package observability reports unexpected failures to Sentry.
package observability

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kauri-edtech/smssync/internal/ctxutil"
)

// InitSentry is a no-op when dsn is empty, so local runs need no account.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports an error. Context cancellation is shutdown, not a
// fault, and is dropped.
func CaptureErr(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	sentry.CaptureException(err)
}

// CaptureCtxErr reports an error tagged with whatever the context carries:
// the operation name and the school being processed. Per-school failures
// then group separately in the issue stream.
func CaptureCtxErr(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if op, ok := ctxutil.Op(ctx); ok {
			scope.SetTag("op", op)
		}
		if no, ok := ctxutil.SchoolNo(ctx); ok {
			scope.SetTag("schoolno", strconv.FormatInt(no, 10))
		}
		sentry.CaptureException(err)
	})
}
