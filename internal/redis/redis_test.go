package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitedSet(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewClient(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	set := NewVisitedSet(client, "crawled_urls")

	added, err := set.Claim(ctx, "http://example.test/")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = set.Claim(ctx, "http://example.test/")
	require.NoError(t, err)
	assert.False(t, added)

	members, err := set.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.test/"}, members)

	require.NoError(t, set.Reset(ctx))
	assert.False(t, mr.Exists("crawled_urls"))
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
