package queryserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arenalabs/escrowd/src/model"
	"github.com/go-redis/redis/v8"
)

// SnapshotCache mirrors the preset snapshot log into a redis sorted set per
// owner, scored by height, so indexers hitting the query surface don't
// replay the durable log on every distribution-at-height lookup. Cleared
// presets are cached as entries with a nil distribution.
type SnapshotCache struct {
	client *redis.Client
}

type cachedSnapshot struct {
	Height       uint64              `json:"height"`
	Distribution *model.Distribution `json:"distribution,omitempty"`
}

func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

func snapshotKey(owner model.Address) string {
	return fmt.Sprintf("presets:%s", owner)
}

// Put caches one snapshot. GT+NX semantics don't apply here -- a rewrite at
// the same height must supersede -- so stale members at that score are
// removed first.
func (sc *SnapshotCache) Put(ctx context.Context, owner model.Address, height uint64, dist *model.Distribution) error {
	encoded, err := json.Marshal(cachedSnapshot{Height: height, Distribution: dist})
	if err != nil {
		return err
	}
	key := snapshotKey(owner)
	score := fmt.Sprintf("%d", height)
	if err := sc.client.ZRemRangeByScore(ctx, key, score, score).Err(); err != nil {
		return err
	}
	return sc.client.ZAdd(ctx, key, &redis.Z{Score: float64(height), Member: string(encoded)}).Err()
}

// At returns the cached snapshot effective at height (newest score <= the
// query height), or nil when the cache has nothing -- callers then fall
// back to the durable log.
func (sc *SnapshotCache) At(ctx context.Context, owner model.Address, height *uint64) (*model.Distribution, bool, error) {
	max := "+inf"
	if height != nil {
		max = fmt.Sprintf("%d", *height)
	}
	data := sc.client.ZRevRangeByScore(ctx, snapshotKey(owner), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: 1,
	})
	if data.Err() != nil {
		return nil, false, data.Err()
	}
	vals := data.Val()
	if len(vals) == 0 {
		return nil, false, nil
	}
	cached := cachedSnapshot{}
	if err := json.Unmarshal([]byte(vals[0]), &cached); err != nil {
		return nil, false, err
	}
	return cached.Distribution, true, nil
}

func (sc *SnapshotCache) Purge(ctx context.Context, owner model.Address) error {
	return sc.client.Del(ctx, snapshotKey(owner)).Err()
}
