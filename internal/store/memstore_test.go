package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

func TestMemStore_ActiveSignalIDsFiltersInactive(t *testing.T) {
	m := NewMemStore()
	m.Put(&signaldsl.SignalDefinition{ID: "sig-1", IsActive: true})
	m.Put(&signaldsl.SignalDefinition{ID: "sig-2", IsActive: false})

	ids, err := m.ActiveSignalIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sig-1"}, ids)
}

func TestMemStore_LoadSignal_MissingReturnsNilNil(t *testing.T) {
	m := NewMemStore()
	def, err := m.LoadSignal(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestMemStore_MarkTriggered_SetsBothTimestamps(t *testing.T) {
	m := NewMemStore()
	m.Put(&signaldsl.SignalDefinition{ID: "sig-1", IsActive: true})

	now := time.Now()
	require.NoError(t, m.MarkTriggered(context.Background(), "sig-1", now))

	def, err := m.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, def.LastTriggeredAt)
	require.NotNil(t, def.LastEvaluatedAt)
	assert.Equal(t, now, *def.LastTriggeredAt)
	assert.Equal(t, now, *def.LastEvaluatedAt)
}

func TestMemStore_MarkEvaluated_OnlySetsEvaluated(t *testing.T) {
	m := NewMemStore()
	m.Put(&signaldsl.SignalDefinition{ID: "sig-1", IsActive: true})

	now := time.Now()
	require.NoError(t, m.MarkEvaluated(context.Background(), "sig-1", now))

	def, err := m.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.Nil(t, def.LastTriggeredAt)
	require.NotNil(t, def.LastEvaluatedAt)
}
