package database

import "time"

type Config struct {
	FileName string `envconfig:"WELD_DB_FILE" default:"weld.db"`
	// how long to wait for the file lock held by another process
	OpenTimeout time.Duration `envconfig:"WELD_DB_OPEN_TIMEOUT" default:"5s"`
	NoSync      bool          `envconfig:"WELD_DB_NO_SYNC" default:"false"`
}
