//go:build integration

package watermark_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-alertfeed/pkg/helpers/emulators"
	"github.com/illmade-knight/go-alertfeed/pkg/watermark"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	fsClient, cleanup := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig("test-project"))
	defer cleanup()

	cfg := &watermark.FirestoreStoreConfig{
		ProjectID:      "test-project",
		CollectionName: "pipeline-state",
		DocumentID:     "alertfeed-test",
	}
	store, err := watermark.NewFirestoreStore(fsClient, cfg, zerolog.Nop())
	require.NoError(t, err)

	// First run: the document does not exist yet.
	value, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, value)

	// Round trip.
	require.NoError(t, store.Save(ctx, 20543))
	value, found, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(20543), value)

	// Overwrite wins.
	require.NoError(t, store.Save(ctx, 20550))
	value, _, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20550), value)

	// A document that exists with an empty value is still a first run.
	_, err = fsClient.Collection("pipeline-state").Doc("alertfeed-empty").Set(ctx, map[string]interface{}{"value": ""})
	require.NoError(t, err)
	emptyStore, err := watermark.NewFirestoreStore(fsClient, &watermark.FirestoreStoreConfig{
		ProjectID:      "test-project",
		CollectionName: "pipeline-state",
		DocumentID:     "alertfeed-empty",
	}, zerolog.Nop())
	require.NoError(t, err)

	value, found, err = emptyStore.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, value)
}
