package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-sod/weld/internal/database"
	"github.com/go-sod/weld/internal/notify/model"
	"github.com/go-sod/weld/pkg/geom"
)

func TestDB_StoreDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := New(database.NewTestDatabase(t))

	empty, err := db.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	batch := model.NewBatch("a", []model.Event{{EntityID: "a", ClusterID: "c1", Center: geom.Vec3{X: 1}, Count: 4}})
	require.NoError(t, db.Store(ctx, batch))

	batches, err := db.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, batch.ID, batches[0].ID)
	assert.Equal(t, batch.Events, batches[0].Events)

	require.NoError(t, db.Delete(ctx, batch))
	batches, err = db.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
