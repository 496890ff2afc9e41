package ctxutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrips(t *testing.T) {
	ctx := context.Background()

	_, ok := Op(ctx)
	assert.False(t, ok)
	_, ok = SchoolNo(ctx)
	assert.False(t, ok)
	_, ok = ClientIP(ctx)
	assert.False(t, ok)

	ctx = WithOp(ctx, "import")
	ctx = WithSchoolNo(ctx, 12345)
	ctx = WithClientIP(ctx, "10.0.0.7")

	op, ok := Op(ctx)
	require.True(t, ok)
	assert.Equal(t, "import", op)
	no, ok := SchoolNo(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(12345), no)
	ip, ok := ClientIP(ctx)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.7", ip)
}

func TestWithTimeoutZeroMeansNoDeadline(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx2, cancel2 := WithTimeout(context.Background(), time.Minute)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.True(t, ok)
}

func TestWithDBTimeoutDefault(t *testing.T) {
	ctx, cancel := WithDBTimeout(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	remain := time.Until(dl)
	assert.Greater(t, remain, DefaultDBTimeout-time.Second)
	assert.LessOrEqual(t, remain, DefaultDBTimeout)
}

func TestWithDBTimeoutKeepsShorterParentDeadline(t *testing.T) {
	parent, pcancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer pcancel()

	ctx, cancel := WithDBTimeout(parent)
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.LessOrEqual(t, time.Until(dl), 100*time.Millisecond)
}
