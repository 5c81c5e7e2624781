package scrape

import (
	"encoding/json"
	"time"
)

type Config struct {
	Targets              Targets       `envconfig:"WELD_SCRAPE_TARGET_URLS"`
	MaxConcurrentRequest int           `envconfig:"WELD_SCRAPE_MAX_CONCURRENT_REQUEST" default:"64"`
	Interval             time.Duration `envconfig:"WELD_SCRAPE_INTERVAL" default:"1s"`
	RequestTimeout       time.Duration `envconfig:"WELD_SCRAPE_REQUEST_TIMEOUT" default:"10s"`
}

type Targets []Target

// Decode parses a JSON list of targets from the environment.
func (ts *Targets) Decode(value string) error {
	targets := []Target{}
	if err := json.Unmarshal([]byte(value), &targets); err != nil {
		return err
	}
	*ts = targets
	return nil
}

// Target is an endpoint returning points of an entity. When EntityID is set
// it overrides the entity reported by the target.
type Target struct {
	URL      string `json:"url"`
	EntityID string `json:"entityId"`
}
