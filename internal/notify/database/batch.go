// Package database keeps unpublished event batches across restarts.
package database

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/notify/model"
)

const bucket = "notify:pending"

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

type DB struct {
	sDB *database.DB
}

func (db *DB) Store(_ context.Context, batch model.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return b.Put(batch.ID[:], data)
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) Delete(_ context.Context, batch model.Batch) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete(batch.ID[:])
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) FindAll(_ context.Context) ([]model.Batch, error) {
	var batches []model.Batch
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var batch model.Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return fmt.Errorf("decode batch: %w", err)
			}
			batches = append(batches, batch)
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return batches, nil
}
