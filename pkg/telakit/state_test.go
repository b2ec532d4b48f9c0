package telakit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDrawingState(t *testing.T) {
	s, err := NewDrawingState(640, 640, 64)
	require.NoError(t, err)

	assert.Equal(t, Red, s.ActiveColor)
	assert.Equal(t, 64, s.GridSize)
	assert.InDelta(t, 10.0, s.CellSize, 1e-9)
	assert.InDelta(t, 5.0, s.Radius, 1e-9)

	_, err = NewDrawingState(640, 640, 0)
	assert.ErrorIs(t, err, ErrInvalidGridSize)

	_, err = NewDrawingState(0, 640, 10)
	assert.ErrorIs(t, err, ErrInvalidSurface)
}

// TestToPixel проверяет формулу gx*cellSize - (radius-1)
func TestToPixel(t *testing.T) {
	s, err := NewDrawingState(640, 640, 64)
	require.NoError(t, err)

	px, py := s.ToPixel(0, 0)
	assert.InDelta(t, -4.0, px, 1e-9)
	assert.InDelta(t, -4.0, py, 1e-9)

	px, py = s.ToPixel(3, 7)
	assert.InDelta(t, 26.0, px, 1e-9)
	assert.InDelta(t, 66.0, py, 1e-9)

	s.SetGridSize(10)
	px, py = s.ToPixel(1, 2)
	assert.InDelta(t, 64-31.0, px, 1e-9)
	assert.InDelta(t, 128-31.0, py, 1e-9)
}

// TestCellSizeMonotonic проверяет, что клетка уменьшается с ростом сетки
func TestCellSizeMonotonic(t *testing.T) {
	s, err := NewDrawingState(640, 640, 1)
	require.NoError(t, err)

	prev := s.CellSize
	for n := 2; n <= 640; n++ {
		s.SetGridSize(n)
		assert.LessOrEqual(t, s.CellSize, prev)
		assert.InDelta(t, s.CellSize/2, s.Radius, 1e-9)
		prev = s.CellSize
	}
}

// TestNewDrawingStateFor проверяет, что размер берётся из backend
func TestNewDrawingStateFor(t *testing.T) {
	s, err := NewDrawingStateFor(newRecordingBackend(320, 200), 16)
	require.NoError(t, err)
	assert.Equal(t, 320, s.Width)
	assert.Equal(t, 200, s.Height)
	assert.InDelta(t, 20.0, s.CellSize, 1e-9)

	_, err = NewDrawingStateFor(newRecordingBackend(0, 0), 16)
	assert.ErrorIs(t, err, ErrInvalidSurface)
}
