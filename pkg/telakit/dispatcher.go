package telakit

import (
	"image/color"
	"sync"
)

var (
	// BackgroundColor цвет, которым CL заливает поверхность.
	BackgroundColor = color.RGBA{A: 0xff}

	// GridColor цвет линий сетки.
	GridColor = color.RGBA{B: 0xff, A: 0xff}
)

// Backend поверхность, на которой выполняется фактическое рисование.
// Dispatcher решает что и когда рисовать, Backend решает как.
//
// Методы Backend вызываются только под блокировкой Dispatcher,
// поэтому реализации не обязаны быть потокобезопасными.
type Backend interface {
	// Size возвращает размер поверхности в пикселях.
	Size() (width, height int)

	// Fill заливает всю поверхность цветом c.
	Fill(c color.RGBA)

	// FillCircle рисует закрашенный круг с центром (cx, cy).
	FillCircle(cx, cy, radius float64, c color.RGBA)

	// Line рисует отрезок от (x0, y0) до (x1, y1).
	Line(x0, y0, x1, y1 float64, c color.RGBA)

	// Present сообщает, что изменения готовы к показу.
	Present()
}

// Dispatcher применяет команды к DrawingState и Backend.
//
// Все вызовы Apply и View взаимно исключают друг друга: это единственная
// точка сериализации между обработчиками соединений и циклом отрисовки.
type Dispatcher struct {
	mu      sync.Mutex
	state   *DrawingState
	backend Backend
	metrics *Metrics
}

// NewDispatcher создает Dispatcher. Размер состояния должен совпадать с размером backend.
// metrics может быть nil.
func NewDispatcher(state *DrawingState, backend Backend, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		state:   state,
		backend: backend,
		metrics: metrics,
	}
}

// Reset очищает поверхность и рисует сетку текущего размера.
// Вызывается один раз при старте, до приёма подключений.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clearLocked(d.state.GridSize)
}

// Apply применяет одну команду. Никогда не возвращает ошибку:
// все проверки выполнены в Decode.
func (d *Dispatcher) Apply(cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch c := cmd.(type) {
	case Point:
		d.pointLocked(c.X, c.Y, d.state.ActiveColor)
	case PointColored:
		d.pointLocked(c.X, c.Y, c.Color)
	case Clear:
		d.clearLocked(c.GridSize)
	case SetColor:
		d.state.ActiveColor = c.Color
	default:
		return
	}

	d.metrics.commandApplied(cmd.Opcode())
}

// View вызывает fn под блокировкой Dispatcher. fn получает копию состояния
// и backend; backend нельзя использовать после возврата из fn.
func (d *Dispatcher) View(fn func(state DrawingState, backend Backend)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(*d.state, d.backend)
}

// State возвращает копию текущего состояния.
func (d *Dispatcher) State() DrawingState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return *d.state
}

func (d *Dispatcher) pointLocked(gx, gy int, c RGB) {
	px, py := d.state.ToPixel(gx, gy)
	d.backend.FillCircle(px, py, d.state.Radius-1, c.RGBA())
	d.backend.Present()
}

func (d *Dispatcher) clearLocked(gridSize int) {
	d.backend.Fill(BackgroundColor)
	d.state.SetGridSize(gridSize)

	w, h := float64(d.state.Width), float64(d.state.Height)
	if d.state.CellSize < 1 {
		// Линии гуще пикселя: каждый столбец и строка закрашиваются по одному разу,
		// иначе CL с огромным n надолго занимает блокировку
		for x := 0; x < d.state.Width; x++ {
			d.backend.Line(float64(x), 0, float64(x), h, GridColor)
		}
		for y := 0; y < min(d.state.Width, d.state.Height); y++ {
			d.backend.Line(0, float64(y), w, float64(y), GridColor)
		}
		d.backend.Present()
		return
	}

	for i := 0; i < gridSize; i++ {
		offset := float64(i) * d.state.CellSize
		d.backend.Line(offset, 0, offset, h, GridColor)
		d.backend.Line(0, offset, w, offset, GridColor)
	}
	d.backend.Present()
}
