package ctxutil

import (
	"context"
	"time"
)

// private key type so values cannot collide with other packages
type key int

const (
	keyOpName key = iota
	keySchoolNo
	keyClientIP
)

// WithOp tags the context with an operation name for logs.
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// WithSchoolNo tags the context with the school being processed.
func WithSchoolNo(ctx context.Context, schoolNo int64) context.Context {
	return context.WithValue(ctx, keySchoolNo, schoolNo)
}

func SchoolNo(ctx context.Context) (int64, bool) {
	v := ctx.Value(keySchoolNo)
	if v == nil {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// WithClientIP tags the context with the remote address of an interactive
// request, recorded on audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

func ClientIP(ctx context.Context) (string, bool) {
	v := ctx.Value(keyClientIP)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

var DefaultDBTimeout = 5 * time.Second

// WithTimeout is context.WithTimeout that treats d<=0 as no timeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithDBTimeout caps a DB call at DefaultDBTimeout, or at the parent's
// remaining deadline when that is shorter.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		remain := time.Until(dl)
		if remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
