package persist

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/config"
)

func newRedisRepo(t *testing.T) (*RedisSnapshotRepo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSnapshotRepo(client, "test", nil), s
}

func TestRedisSnapshotRepoRoundTrip(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	snaps := []Snapshot{
		{TypeID: 25, TypeName: "Transform", UniqueID: 0xfeedface00000001, Payload: []byte("name: root\n")},
		{TypeID: 25, TypeName: "Transform", UniqueID: 2, Payload: []byte("name: child\n")},
		{TypeID: 27, TypeName: "Texture", UniqueID: 3, Payload: []byte("name: grass\n")},
	}
	assert.NilError(t, repo.Save(ctx, snaps))

	got, err := repo.LoadType(ctx, "Transform")
	assert.NilError(t, err)
	assert.DeepEqual(t, got, snaps[:2])

	// Re-saving keeps the original position and replaces the payload.
	assert.NilError(t, repo.Save(ctx, []Snapshot{
		{TypeID: 25, TypeName: "Transform", UniqueID: 0xfeedface00000001, Payload: []byte("name: renamed\n")},
	}))
	got, err = repo.LoadType(ctx, "Transform")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, string(got[0].Payload), "name: renamed\n")
	assert.Equal(t, got[1].UniqueID, uint64(2))

	n, err := repo.Count(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, 3)

	got, err = repo.LoadType(ctx, "Camera")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 0)
}

func TestRedisSnapshotRepoClear(t *testing.T) {
	repo, s := newRedisRepo(t)
	ctx := context.Background()
	assert.NilError(t, repo.Save(ctx, []Snapshot{{TypeID: 27, TypeName: "Texture", UniqueID: 9, Payload: []byte("x")}}))
	s.Set("other:key", "kept")

	assert.NilError(t, repo.Clear(ctx))
	got, err := repo.LoadType(ctx, "Texture")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 0)
	assert.Assert(t, s.Exists("other:key"))

	_, err = repo.client.Get(ctx, "test:seq").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisSnapshotRepoReplacePrunesMissing(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	assert.NilError(t, repo.Save(ctx, []Snapshot{
		{TypeID: 25, TypeName: "Transform", UniqueID: 1, Payload: []byte("name: keep\n")},
		{TypeID: 25, TypeName: "Transform", UniqueID: 2, Payload: []byte("name: gone\n")},
		{TypeID: 27, TypeName: "Texture", UniqueID: 3, Payload: []byte("name: grass\n")},
		{TypeID: 26, TypeName: "Camera", UniqueID: 4, Payload: []byte("name: main\n")},
	}))

	// Camera is not listed, so its rows are left alone; Texture is listed
	// with no records and is emptied.
	assert.NilError(t, repo.Replace(ctx, []string{"Transform", "Texture"}, []Snapshot{
		{TypeID: 25, TypeName: "Transform", UniqueID: 1, Payload: []byte("name: keep\n")},
	}))

	got, err := repo.LoadType(ctx, "Transform")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].UniqueID, uint64(1))

	got, err = repo.LoadType(ctx, "Texture")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 0)

	got, err = repo.LoadType(ctx, "Camera")
	assert.NilError(t, err)
	assert.Equal(t, len(got), 1)

	n, err := repo.Count(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, 2)
}
