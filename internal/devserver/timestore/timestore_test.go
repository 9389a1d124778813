package timestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, ErrNoStoredTime)

	require.NoError(t, s.Save(ctx, "2026-08-31T10:00:00Z"))
	require.NoError(t, s.Save(ctx, "2026-08-31T11:00:00Z"))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, "2026-08-31T11:00:00Z", latest)

	require.NoError(t, s.Close())
}
