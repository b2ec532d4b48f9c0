package telakit

import (
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawOp struct {
	kind   string
	x0, y0 float64
	x1, y1 float64
	radius float64
	color  color.RGBA
}

// recordingBackend запоминает все вызовы рисования.
type recordingBackend struct {
	mu       sync.Mutex
	w, h     int
	ops      []drawOp
	presents int
}

func newRecordingBackend(w, h int) *recordingBackend {
	return &recordingBackend{w: w, h: h}
}

func (b *recordingBackend) Size() (int, int) { return b.w, b.h }

func (b *recordingBackend) Fill(c color.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, drawOp{kind: "fill", color: c})
}

func (b *recordingBackend) FillCircle(cx, cy, radius float64, c color.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, drawOp{kind: "circle", x0: cx, y0: cy, radius: radius, color: c})
}

func (b *recordingBackend) Line(x0, y0, x1, y1 float64, c color.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, drawOp{kind: "line", x0: x0, y0: y0, x1: x1, y1: y1, color: c})
}

func (b *recordingBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presents++
}

func (b *recordingBackend) snapshot() []drawOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]drawOp(nil), b.ops...)
}

func (b *recordingBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
	b.presents = 0
}

func (b *recordingBackend) circles() []drawOp {
	var out []drawOp
	for _, op := range b.snapshot() {
		if op.kind == "circle" {
			out = append(out, op)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, grid int) (*Dispatcher, *recordingBackend) {
	t.Helper()
	state, err := NewDrawingState(640, 640, grid)
	require.NoError(t, err)
	backend := newRecordingBackend(640, 640)
	return NewDispatcher(state, backend, nil), backend
}

func TestDispatcherPointUsesActiveColor(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(Point{X: 3, Y: 4})

	circles := backend.circles()
	require.Len(t, circles, 1)
	assert.Equal(t, Red.RGBA(), circles[0].color)
	assert.InDelta(t, 26.0, circles[0].x0, 1e-9)
	assert.InDelta(t, 36.0, circles[0].y0, 1e-9)
	assert.InDelta(t, 4.0, circles[0].radius, 1e-9)
	assert.Equal(t, 1, backend.presents)
}

// TestDispatcherColorSequence проверяет CO, затем PC, затем PO:
// PC не меняет активный цвет
func TestDispatcherColorSequence(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(SetColor{Color: RGB{1, 2, 3}})
	d.Apply(PointColored{X: 5, Y: 5, Color: RGB{9, 9, 9}})
	d.Apply(Point{X: 6, Y: 6})

	circles := backend.circles()
	require.Len(t, circles, 2)
	assert.Equal(t, RGB{9, 9, 9}.RGBA(), circles[0].color)
	assert.Equal(t, RGB{1, 2, 3}.RGBA(), circles[1].color)
	assert.Equal(t, RGB{1, 2, 3}, d.State().ActiveColor)
}

func TestDispatcherSetColorDrawsNothing(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(SetColor{Color: RGB{G: 255}})

	assert.Empty(t, backend.snapshot())
	assert.Zero(t, backend.presents)
	assert.Equal(t, RGB{G: 255}, d.State().ActiveColor)
}

// TestDispatcherClear проверяет заливку, пересчёт сетки и 2n линий
func TestDispatcherClear(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(Clear{GridSize: 10})

	st := d.State()
	assert.Equal(t, 10, st.GridSize)
	assert.InDelta(t, 64.0, st.CellSize, 1e-9)
	assert.InDelta(t, 32.0, st.Radius, 1e-9)

	ops := backend.snapshot()
	require.Len(t, ops, 1+2*10)
	assert.Equal(t, "fill", ops[0].kind)
	assert.Equal(t, BackgroundColor, ops[0].color)

	var vertical, horizontal int
	for _, op := range ops[1:] {
		require.Equal(t, "line", op.kind)
		assert.Equal(t, GridColor, op.color)
		switch {
		case op.x0 == op.x1:
			vertical++
			assert.InDelta(t, 0, float64(int(op.x0)%64), 1e-9)
		case op.y0 == op.y1:
			horizontal++
		}
	}
	assert.Equal(t, 10, vertical)
	assert.Equal(t, 10, horizontal)
	assert.Equal(t, 1, backend.presents)
}

// TestDispatcherClearIdempotent проверяет, что повторный CL рисует то же самое
func TestDispatcherClearIdempotent(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(Clear{GridSize: 8})
	first := backend.snapshot()
	stateAfterFirst := d.State()

	backend.reset()
	d.Apply(Clear{GridSize: 8})

	assert.Equal(t, first, backend.snapshot())
	assert.Equal(t, stateAfterFirst, d.State())
}

// TestDispatcherClearKeepsColor проверяет, что CL не сбрасывает активный цвет
func TestDispatcherClearKeepsColor(t *testing.T) {
	d, _ := newTestDispatcher(t, 64)

	d.Apply(SetColor{Color: RGB{B: 200}})
	d.Apply(Clear{GridSize: 4})

	assert.Equal(t, RGB{B: 200}, d.State().ActiveColor)
}

func TestDispatcherReset(t *testing.T) {
	d, backend := newTestDispatcher(t, 16)

	d.Reset()

	ops := backend.snapshot()
	require.Len(t, ops, 1+2*16)
	assert.Equal(t, 16, d.State().GridSize)
}

func TestDispatcherView(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)
	d.Apply(SetColor{Color: RGB{R: 7}})

	var called bool
	d.View(func(state DrawingState, b Backend) {
		called = true
		assert.Equal(t, RGB{R: 7}, state.ActiveColor)
		assert.Same(t, backend, b)
	})
	assert.True(t, called)
}

// TestDispatcherConcurrentApply проверяет, что Apply сериализован
func TestDispatcherConcurrentApply(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Apply(PointColored{X: i, Y: j % 64, Color: RGB{R: i}})
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, backend.circles(), 800)
	assert.Equal(t, 800, backend.presents)
}

// TestDispatcherPointRepeated проверяет, что одинаковые команды не схлопываются
func TestDispatcherPointRepeated(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	d.Apply(Point{X: 3, Y: 3})
	d.Apply(Point{X: 3, Y: 3})

	circles := backend.circles()
	require.Len(t, circles, 2)
	assert.Equal(t, circles[0], circles[1])
	assert.Equal(t, 2, backend.presents)
}

// TestDispatcherClearHugeGrid проверяет, что сетка мельче пикселя рисуется
// не более чем одной линией на столбец и строку
func TestDispatcherClearHugeGrid(t *testing.T) {
	d, backend := newTestDispatcher(t, 64)

	done := make(chan struct{})
	go func() {
		d.Apply(Clear{GridSize: 1 << 40})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CL with a huge grid holds the dispatcher lock")
	}

	assert.Equal(t, 1<<40, d.State().GridSize)
	ops := backend.snapshot()
	require.Len(t, ops, 1+640+640)
	for _, op := range ops[1:] {
		assert.Equal(t, op.x0, float64(int(op.x0)))
		assert.Equal(t, op.y0, float64(int(op.y0)))
	}
	assert.Equal(t, 1, backend.presents)
}
