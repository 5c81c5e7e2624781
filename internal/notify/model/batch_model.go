package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-sod/weld/pkg/geom"
)

// Event reports that a point bridged one or more clusters into another.
type Event struct {
	EntityID  string    `json:"entity"`
	ClusterID string    `json:"clusterId"`
	Center    geom.Vec3 `json:"center"`
	Count     int       `json:"count"`
	Bridged   []string  `json:"bridged"`
	Point     geom.Vec3 `json:"point"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewBatch(entityID string, events []Event) Batch {
	return Batch{
		ID:        uuid.New(),
		EntityID:  entityID,
		Events:    events,
		CreatedAt: time.Now(),
	}
}

// Batch is the unit published for an entity.
type Batch struct {
	ID        uuid.UUID `json:"id"`
	EntityID  string    `json:"entity"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"createdAt"`
}
