package query

import "time"

type Config struct {
	RequestTimeout time.Duration `envconfig:"WELD_QUERY_REQUEST_TIMEOUT" default:"30s"`
	// Upper bound of boxes searched in one request
	MaxBoxes int `envconfig:"WELD_QUERY_MAX_BOXES" default:"16"`
}
