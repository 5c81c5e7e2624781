package notify

import "time"

type Config struct {
	// events are dropped when no address is set
	RedisAddr            string        `envconfig:"WELD_REDIS_ADDR"`
	RedisPassword        string        `envconfig:"WELD_REDIS_PASSWORD"`
	RedisDB              int           `envconfig:"WELD_REDIS_DB" default:"0"`
	Channel              string        `envconfig:"WELD_NOTIFY_CHANNEL" default:"weld:clusters"`
	Interval             time.Duration `envconfig:"WELD_NOTIFY_INTERVAL" default:"5s"`
	RequestTimeout       time.Duration `envconfig:"WELD_NOTIFY_REQUEST_TIMEOUT" default:"5s"`
	MaxConcurrentRequest int           `envconfig:"WELD_NOTIFY_MAX_CONCURRENT_REQUEST" default:"16"`
}
