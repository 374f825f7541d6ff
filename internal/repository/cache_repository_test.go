package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheRepository(client, zap.NewNop()), srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	type payload struct {
		Score int    `json:"score"`
		Level string `json:"level"`
	}

	require.NoError(t, repo.Set(ctx, "match:stu-1", payload{Score: 55, Level: "Developing"}, time.Minute))

	var got payload
	require.NoError(t, repo.Get(ctx, "match:stu-1", &got))
	require.Equal(t, 55, got.Score)
	require.Equal(t, "Developing", got.Level)
}

func TestCacheRepositoryMiss(t *testing.T) {
	repo, _ := newCacheRepo(t)

	var dest map[string]string
	err := repo.Get(context.Background(), "absent", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "catalog:universities:p1", []string{"a"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "catalog:universities:p2", []string{"b"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "dashboard:stu-1", []string{"c"}, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "catalog:universities:*"))

	require.False(t, srv.Exists("catalog:universities:p1"))
	require.False(t, srv.Exists("catalog:universities:p2"))
	require.True(t, srv.Exists("dashboard:stu-1"))
}
