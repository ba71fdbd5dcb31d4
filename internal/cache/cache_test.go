package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_GetSet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, ok := c.Get(ctx, "deka_token_1")
	assert.False(t, ok)

	c.Set(ctx, "deka_token_1", "tok-abc", time.Minute)
	v, ok := c.Get(ctx, "deka_token_1")
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", v)
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "k", "v", -time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "expired entries read as a miss")
}

func TestMemory_Overwrite(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Set(ctx, "k", "old", time.Minute)
	c.Set(ctx, "k", "new", time.Minute)
	v, _ := c.Get(ctx, "k")
	assert.Equal(t, "new", v)
}
