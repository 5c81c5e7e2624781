package model

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/davecgh/go-xdr/xdr2"
	"github.com/google/uuid"

	"github.com/go-sod/weld/internal/util"
	"github.com/go-sod/weld/pkg/geom"
)

type Status uint8

const (
	// StatusNew points are stored but not yet in the entity index
	StatusNew Status = iota
	StatusProcessed
)

func NewPoint(entityID string, vec geom.Vec3, createdAt time.Time) Point {
	return Point{
		ID:        uuid.New(),
		EntityID:  entityID,
		Vec:       vec,
		Status:    StatusNew,
		CreatedAt: createdAt,
	}
}

type Point struct {
	ID        uuid.UUID `json:"id"`
	EntityID  string    `json:"entityId"`
	Vec       geom.Vec3 `json:"vec"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Point) IsProcessed() bool {
	return p.Status == StatusProcessed
}

func (p Point) IsNew() bool {
	return p.Status == StatusNew
}

// record is the XDR layout of a stored point.
type record struct {
	ID        [16]byte
	EntityID  string
	X, Y, Z   float64
	Status    uint32
	CreatedAt int64
}

func (p Point) MarshalBinary() ([]byte, error) {
	buffer := util.GetBytesBuffer()
	defer util.PutBytesBuffer(buffer)

	rec := record{
		ID:        p.ID,
		EntityID:  p.EntityID,
		X:         p.Vec.X,
		Y:         p.Vec.Y,
		Z:         p.Vec.Z,
		Status:    uint32(p.Status),
		CreatedAt: p.CreatedAt.UnixNano(),
	}
	if _, err := xdr.Marshal(buffer, &rec); err != nil {
		return nil, fmt.Errorf("xdr encode point %s: %w", p.ID, err)
	}

	b := make([]byte, buffer.Len())
	copy(b, buffer.Bytes())
	return b, nil
}

func (p *Point) UnmarshalBinary(data []byte) error {
	var rec record
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return fmt.Errorf("xdr decode point: %w", err)
	}
	*p = Point{
		ID:        rec.ID,
		EntityID:  rec.EntityID,
		Vec:       geom.Vec3{X: rec.X, Y: rec.Y, Z: rec.Z},
		Status:    Status(rec.Status),
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
	}
	return nil
}
