package integration

import (
	"time"

	"github.com/go-sod/weld/internal/dispatcher"
	"github.com/go-sod/weld/pkg/geom"
)

type CollectRequest struct {
	EntityID  string      `json:"entity"`
	Points    []geom.Vec3 `json:"points"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

type CollectResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

type QueryRequest struct {
	EntityID string     `json:"entity"`
	Boxes    []geom.Box `json:"boxes"`
	Scale    float64    `json:"scale,omitempty"`
}

type QueryResponse struct {
	EntityID string `json:"entity"`
	Results  []struct {
		Box    geom.Box    `json:"box"`
		Points []geom.Vec3 `json:"points"`
	} `json:"results"`
}

type ClustersResponse struct {
	EntityID string               `json:"entity"`
	BBox     geom.Box             `json:"bbox"`
	Clusters []dispatcher.Cluster `json:"clusters"`
}
