package collect

import (
	"time"
)

type Config struct {
	RequestTimeout time.Duration `envconfig:"WELD_COLLECT_REQUEST_TIMEOUT" default:"60s"`
	// Upper bound of points accepted in one request
	MaxPoints int `envconfig:"WELD_COLLECT_MAX_POINTS" default:"10000"`
}
