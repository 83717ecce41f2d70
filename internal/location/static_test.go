package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertbot/internal/alerts"
)

func TestStaticDisabled(t *testing.T) {
	s := NewStatic(false, 0, 0)
	err := s.RequestPermission(context.Background())
	assert.ErrorIs(t, err, alerts.ErrPermissionDenied)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = s.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestStaticPosition(t *testing.T) {
	s := NewStatic(true, 19.07, 72.87)
	require.NoError(t, s.RequestPermission(context.Background()))
	pos, err := s.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 19.07, pos.Lat)

	s.Set(true, 1, 2)
	pos, err = s.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, pos.Lon)
}
