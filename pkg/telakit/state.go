package telakit

import "fmt"

// DrawingState общее состояние рисования: активный цвет, размер сетки
// и производные от них параметры преобразования клетки в пиксели.
//
// Экземпляр создаётся один раз при старте сервера. Изменяется только
// через Dispatcher, под его блокировкой.
type DrawingState struct {
	// ActiveColor цвет для команд PO.
	ActiveColor RGB

	// GridSize текущий размер сетки N×N.
	GridSize int

	// CellSize ширина клетки в пикселях: Width / GridSize.
	CellSize float64

	// Radius половина CellSize. Точка рисуется кругом радиуса Radius-1.
	Radius float64

	// Width и Height размер поверхности в пикселях.
	Width  int
	Height int
}

// NewDrawingState создает состояние для поверхности width×height и сетки gridSize×gridSize.
// Активный цвет по умолчанию красный.
func NewDrawingState(width, height, gridSize int) (*DrawingState, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSurface, width, height)
	}
	if gridSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGridSize, gridSize)
	}

	s := &DrawingState{
		ActiveColor: Red,
		Width:       width,
		Height:      height,
	}
	s.SetGridSize(gridSize)
	return s, nil
}

// NewDrawingStateFor создает состояние по размеру, который сообщает backend.
func NewDrawingStateFor(backend Backend, gridSize int) (*DrawingState, error) {
	width, height := backend.Size()
	return NewDrawingState(width, height, gridSize)
}

// SetGridSize меняет размер сетки и пересчитывает CellSize и Radius.
// n должен быть положительным, это гарантирует Decode.
func (s *DrawingState) SetGridSize(n int) {
	s.GridSize = n
	s.CellSize = float64(s.Width) / float64(n)
	s.Radius = s.CellSize / 2
}

// ToPixel переводит клетку (gx, gy) в пиксельный центр точки.
func (s *DrawingState) ToPixel(gx, gy int) (px, py float64) {
	px = float64(gx)*s.CellSize - (s.Radius - 1)
	py = float64(gy)*s.CellSize - (s.Radius - 1)
	return px, py
}
