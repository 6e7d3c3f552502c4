package persist

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Snapshot is one serialized record. Payload holds the YAML mapping written
// by the type's serializer; UniqueID is the record's stable id.
type Snapshot struct {
	TypeID   uint16
	TypeName string
	UniqueID uint64
	Payload  []byte
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save upserts a batch of snapshots in a single transaction.
func (r *SnapshotRepo) Save(ctx context.Context, snaps []Snapshot) error {
	return r.Replace(ctx, nil, snaps)
}

// Replace upserts snaps and, in the same transaction, deletes every stored
// snapshot of the listed types that snaps does not contain.
func (r *SnapshotRepo) Replace(ctx context.Context, typeNames []string, snaps []Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	keep := keptIDs(typeNames, snaps)
	pruned := int64(0)
	for _, typeName := range typeNames {
		tag, err := tx.Exec(ctx,
			`DELETE FROM handle_snapshots WHERE type_name = $1 AND unique_id <> ALL($2)`,
			typeName, keep[typeName],
		)
		if err != nil {
			return fmt.Errorf("snapshot prune %s: %w", typeName, err)
		}
		pruned += tag.RowsAffected()
	}

	for _, s := range snaps {
		if _, err := tx.Exec(ctx,
			`INSERT INTO handle_snapshots (type_id, type_name, unique_id, payload)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (type_name, unique_id)
			 DO UPDATE SET type_id = EXCLUDED.type_id, payload = EXCLUDED.payload, saved_at = now()`,
			int32(s.TypeID), s.TypeName, int64(s.UniqueID), s.Payload,
		); err != nil {
			return fmt.Errorf("snapshot insert %s/%016x: %w", s.TypeName, s.UniqueID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}
	r.db.log.Debug("snapshots saved", zap.Int("count", len(snaps)), zap.Int64("pruned", pruned))
	return nil
}

// keptIDs groups the unique ids of snaps by type, with an empty (non-nil)
// list for every listed type that has none.
func keptIDs(typeNames []string, snaps []Snapshot) map[string][]int64 {
	keep := make(map[string][]int64, len(typeNames))
	for _, t := range typeNames {
		keep[t] = []int64{}
	}
	for _, s := range snaps {
		keep[s.TypeName] = append(keep[s.TypeName], int64(s.UniqueID))
	}
	return keep
}

// LoadType returns every snapshot of one type in insertion order.
func (r *SnapshotRepo) LoadType(ctx context.Context, typeName string) ([]Snapshot, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT type_id, type_name, unique_id, payload
		 FROM handle_snapshots WHERE type_name = $1 ORDER BY id`, typeName,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot query %s: %w", typeName, err)
	}
	defer rows.Close()

	var result []Snapshot
	for rows.Next() {
		var (
			s        Snapshot
			typeID   int32
			uniqueID int64
		)
		if err := rows.Scan(&typeID, &s.TypeName, &uniqueID, &s.Payload); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		s.TypeID = uint16(typeID)
		s.UniqueID = uint64(uniqueID)
		result = append(result, s)
	}
	return result, rows.Err()
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM handle_snapshots`).Scan(&n)
	return n, err
}

// Clear deletes every snapshot.
func (r *SnapshotRepo) Clear(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM handle_snapshots`)
	return err
}
