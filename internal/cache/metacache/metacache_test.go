package metacache

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_EmptyAddrDisablesCache(t *testing.T) {
	c, err := New(context.Background(), "", 0, zerolog.Nop())
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCache_GetIsAlwaysMiss(t *testing.T) {
	var c *Cache
	meta, ok := c.Get(context.Background(), 42)
	assert.False(t, ok)
	assert.Nil(t, meta)
}

func TestNilCache_SetIsNoop(t *testing.T) {
	var c *Cache
	assert.NotPanics(t, func() {
		c.Set(context.Background(), 42, nil)
	})
}

func TestNilCache_CloseIsNoop(t *testing.T) {
	var c *Cache
	assert.NoError(t, c.Close())
}

func TestCacheKey_IncludesID(t *testing.T) {
	assert.Equal(t, "hako:meta:42", cacheKey(42))
	assert.NotEqual(t, cacheKey(1), cacheKey(2))
}
