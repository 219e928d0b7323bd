package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hglynn/labclimate/internal/climate"
)

func TestFakeBoardRecordsWrites(t *testing.T) {
	b := NewFakeBoard()

	require.NoError(t, b.Set(17, climate.On))
	require.NoError(t, b.Set(22, climate.On))
	require.NoError(t, b.Set(17, climate.Off))

	out, ok := b.State(17)
	require.True(t, ok)
	assert.Equal(t, climate.Off, out)

	out, ok = b.State(22)
	require.True(t, ok)
	assert.Equal(t, climate.On, out)

	_, ok = b.State(5)
	assert.False(t, ok)

	assert.Equal(t, []Write{
		{Line: 17, Output: climate.On},
		{Line: 22, Output: climate.On},
		{Line: 17, Output: climate.Off},
	}, b.Writes())
}

func TestFakeBoardSetError(t *testing.T) {
	b := NewFakeBoard()
	b.SetError = errors.New("line busy")

	require.Error(t, b.Set(17, climate.On))
	_, ok := b.State(17)
	assert.False(t, ok, "failed writes leave no state behind")
	assert.Empty(t, b.Writes())
}

func TestFakeBoardClose(t *testing.T) {
	b := NewFakeBoard()
	require.NoError(t, b.Close())
	assert.True(t, b.Closed)
}
