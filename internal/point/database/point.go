// Package database stores points in bbolt, one bucket per entity.
package database

import (
	"context"
	"fmt"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/point/model"
)

const (
	entityKeys = "entity:keys:"
	prefix     = "point:"
)

type FilterFn func(point model.Point) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

type DB struct {
	sDB *database.DB
}

func bucketName(entityID string) []byte {
	return []byte(prefix + entityID)
}

func (db *DB) extractKey(key string) string {
	return strings.TrimPrefix(key, prefix)
}

// Keys returns the ids of every entity that ever stored a point.
func (db *DB) Keys() ([]string, error) {
	var bucketKeys []string
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(entityKeys))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			bucketKeys = append(bucketKeys, db.extractKey(string(k)))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return bucketKeys, nil
}

func (db *DB) Store(ctx context.Context, point model.Point) error {
	return db.AppendMany(ctx, []model.Point{point})
}

func put(tx *bolt.Tx, point model.Point) error {
	data, err := point.MarshalBinary()
	if err != nil {
		return err
	}
	b, err := tx.CreateBucketIfNotExists(bucketName(point.EntityID))
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	if err := b.Put(point.ID[:], data); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}
	keys, err := tx.CreateBucketIfNotExists([]byte(entityKeys))
	if err != nil {
		return fmt.Errorf("unable create entities bucket: %w", err)
	}
	if err := keys.Put(bucketName(point.EntityID), []byte{0x0}); err != nil {
		return fmt.Errorf("unable put to entities bucket: %w", err)
	}
	return nil
}

// AppendMany writes points in one batch transaction. Points with an id
// already stored replace the stored record.
func (db *DB) AppendMany(_ context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, point := range points {
			if err := put(tx, point); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) DeleteMany(_ context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, point := range points {
			b := tx.Bucket(bucketName(point.EntityID))
			if b == nil {
				continue
			}
			if err := b.Delete(point.ID[:]); err != nil {
				return fmt.Errorf("unable delete: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	return nil
}

func (db *DB) Delete(ctx context.Context, point model.Point) error {
	return db.DeleteMany(ctx, []model.Point{point})
}

func scan(b *bolt.Bucket, filter FilterFn, points []model.Point) ([]model.Point, error) {
	err := b.ForEach(func(k, v []byte) error {
		var point model.Point
		if err := point.UnmarshalBinary(v); err != nil {
			return fmt.Errorf("point %x: %w", k, err)
		}
		if filter == nil || filter(point) {
			points = append(points, point)
		}
		return nil
	})
	return points, err
}

// FindAll returns the points of every entity passing filter.
func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Point, error) {
	var points []model.Point
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket([]byte(entityKeys))
		if keys == nil {
			return nil
		}
		return keys.ForEach(func(k, _ []byte) error {
			b := tx.Bucket(k)
			if b == nil {
				return nil
			}
			var err error
			points, err = scan(b, filter, points)
			return err
		})
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return points, nil
}

func (db *DB) CountByEntity(entityID string) (int, error) {
	var length int
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(entityID))
		if b == nil {
			return nil
		}
		length = b.Stats().KeyN
		return nil
	}); err != nil {
		return 0, fmt.Errorf("view transaction error: %w", err)
	}

	return length, nil
}

// FindByEntity returns the points of one entity passing filter, or
// database.ErrBucketNotFound when the entity has no bucket.
func (db *DB) FindByEntity(entityID string, filter FilterFn) ([]model.Point, error) {
	var list []model.Point
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(entityID))
		if b == nil {
			return fmt.Errorf("entity %s: %w", entityID, database.ErrBucketNotFound)
		}
		var err error
		list, err = scan(b, filter, list)
		return err
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}

	return list, nil
}
