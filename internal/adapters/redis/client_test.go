package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmind/internal/testsupport"
	"tripmind/pkg/errors"
)

func TestClient_SetGetDelete(t *testing.T) {
	c := Wrap(testsupport.NewRedisClient(t, testsupport.RedisConfigFromEnv()))
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Set(ctx, "k", map[string]string{"a": "b"}, time.Minute))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "b", got["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	err := c.Get(ctx, "k", &got)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
