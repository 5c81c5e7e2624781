package dispatcher

import (
	"time"
)

type Config struct {
	// Descent comparison tolerance of every entity index
	Eps float64 `envconfig:"WELD_EPS" default:"1e-9"`
	// Points closer than this to a cluster representative are welded into it
	ClusterEps float64 `envconfig:"WELD_CLUSTER_EPS" default:"0.01"`
	// Timer for performing data cleaning operations in the DB
	RebuildDBTime time.Duration `envconfig:"WELD_REBUILD_DB_TIME" default:"15s"`
	// maximum number of points in the DB for each entity, 0 disables the limit
	MaxPointsStored int `envconfig:"WELD_MAX_POINTS_STORED" default:"1000000"`
	// maximum retention period for points in the DB for each entity, 0 disables it
	MaxStorageTime time.Duration `envconfig:"WELD_MAX_STORAGE_TIME" default:"0s"`
	// Critical buffer size in dbTxExecutor where data is flushed to disk
	DBFlushSize int `envconfig:"WELD_DB_FLUSH_SIZE" default:"100"`
	// Critical time of life in dbTxExecutor buffer in which data to be flushed to disk
	DBFlushTime time.Duration `envconfig:"WELD_DB_FLUSH_TIME" default:"5s"`
	// Entities indexed in parallel while loading stored points
	LoadConcurrency int `envconfig:"WELD_LOAD_CONCURRENCY" default:"4"`
}
