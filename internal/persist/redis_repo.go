package persist

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lowengine/lowgo/internal/config"
)

// RedisSnapshotRepo keeps snapshots in Redis. Per type it stores a hash of
// unique id → payload and a sorted set recording first-save order, so
// LoadType returns records in the order they were first saved.
type RedisSnapshotRepo struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisSnapshotRepo(client *redis.Client, prefix string, log *zap.Logger) *RedisSnapshotRepo {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = "lowstore"
	}
	return &RedisSnapshotRepo{client: client, prefix: prefix, log: log}
}

func (r *RedisSnapshotRepo) payloadKey(typeName string) string {
	return r.prefix + ":snap:" + typeName + ":payload"
}

func (r *RedisSnapshotRepo) orderKey(typeName string) string {
	return r.prefix + ":snap:" + typeName + ":order"
}

func (r *RedisSnapshotRepo) typesKey() string { return r.prefix + ":types" }
func (r *RedisSnapshotRepo) seqKey() string   { return r.prefix + ":seq" }

func field(uniqueID uint64) string { return strconv.FormatUint(uniqueID, 16) }

// Save writes a batch of snapshots in one MULTI/EXEC transaction.
func (r *RedisSnapshotRepo) Save(ctx context.Context, snaps []Snapshot) error {
	return r.Replace(ctx, nil, snaps)
}

// Replace writes snaps and drops every stored snapshot of the listed types
// that snaps does not contain. The payload hashes of those types are
// WATCHed, so a concurrent writer makes the call fail instead of losing
// records.
func (r *RedisSnapshotRepo) Replace(ctx context.Context, typeNames []string, snaps []Snapshot) error {
	if len(snaps) == 0 && len(typeNames) == 0 {
		return nil
	}
	keep := make(map[string]map[string]bool, len(typeNames))
	for _, s := range snaps {
		if keep[s.TypeName] == nil {
			keep[s.TypeName] = map[string]bool{}
		}
		keep[s.TypeName][field(s.UniqueID)] = true
	}
	watched := make([]string, 0, len(typeNames))
	for _, t := range typeNames {
		watched = append(watched, r.payloadKey(t))
	}

	pruned := 0
	txf := func(tx *redis.Tx) error {
		stale := map[string][]string{}
		for _, t := range typeNames {
			stored, err := tx.HKeys(ctx, r.payloadKey(t)).Result()
			if err != nil {
				return fmt.Errorf("snapshot keys %s: %w", t, err)
			}
			for _, f := range stored {
				if !keep[t][f] {
					stale[t] = append(stale[t], f)
				}
			}
		}

		// Reserve one sequence number per snapshot up front; NX keeps the
		// first one a record ever got.
		var first int64
		if len(snaps) > 0 {
			last, err := tx.IncrBy(ctx, r.seqKey(), int64(len(snaps))).Result()
			if err != nil {
				return fmt.Errorf("snapshot seq: %w", err)
			}
			first = last - int64(len(snaps)) + 1
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for t, fields := range stale {
				pipe.HDel(ctx, r.payloadKey(t), fields...)
				members := make([]any, len(fields))
				for i, f := range fields {
					members[i] = f
				}
				pipe.ZRem(ctx, r.orderKey(t), members...)
			}
			for i, s := range snaps {
				f := field(s.UniqueID)
				pipe.HSet(ctx, r.payloadKey(s.TypeName), f, s.Payload)
				pipe.ZAddNX(ctx, r.orderKey(s.TypeName), redis.Z{Score: float64(first + int64(i)), Member: f})
				pipe.HSet(ctx, r.typesKey(), s.TypeName, int64(s.TypeID))
			}
			return nil
		})
		if err != nil {
			return err
		}
		pruned = 0
		for _, fields := range stale {
			pruned += len(fields)
		}
		return nil
	}
	if err := r.client.Watch(ctx, txf, watched...); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	r.log.Debug("snapshots saved",
		zap.Int("count", len(snaps)),
		zap.Int("pruned", pruned),
		zap.String("backend", "redis"),
	)
	return nil
}

func (r *RedisSnapshotRepo) LoadType(ctx context.Context, typeName string) ([]Snapshot, error) {
	typeID, err := r.client.HGet(ctx, r.typesKey(), typeName).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot type %s: %w", typeName, err)
	}

	ids, err := r.client.ZRange(ctx, r.orderKey(typeName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot order %s: %w", typeName, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payloads, err := r.client.HMGet(ctx, r.payloadKey(typeName), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot payload %s: %w", typeName, err)
	}

	result := make([]Snapshot, 0, len(ids))
	for i, f := range ids {
		p, ok := payloads[i].(string)
		if !ok {
			continue
		}
		uniqueID, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot id %q: %w", f, err)
		}
		result = append(result, Snapshot{
			TypeID:   uint16(typeID),
			TypeName: typeName,
			UniqueID: uniqueID,
			Payload:  []byte(p),
		})
	}
	return result, nil
}

// Count returns the number of stored snapshots across all types.
func (r *RedisSnapshotRepo) Count(ctx context.Context) (int, error) {
	types, err := r.client.HKeys(ctx, r.typesKey()).Result()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range types {
		c, err := r.client.HLen(ctx, r.payloadKey(t)).Result()
		if err != nil {
			return 0, err
		}
		n += int(c)
	}
	return n, nil
}

// Clear deletes every key under the repo's prefix.
func (r *RedisSnapshotRepo) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("snapshot scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
