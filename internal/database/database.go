// Package database holds the bbolt handle shared by the stores.
package database

import (
	"context"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/go-sod/weld/internal/logging"
)

var ErrBucketNotFound = errors.New("bucket not found")

type DB struct {
	DB *bolt.DB
}

func NewFromEnv(ctx context.Context, config *Config) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening db %s", config.FileName)

	db, err := bolt.Open(config.FileName, 0600, &bolt.Options{
		Timeout: config.OpenTimeout,
		NoSync:  config.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", config.FileName, err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing db connection")

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
