package canvas

import (
	"bufio"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"

	"github.com/example/tela/pkg/telakit"
)

// Viewer даёт доступ к состоянию под блокировкой. Реализуется *telakit.Dispatcher.
type Viewer interface {
	View(fn func(state telakit.DrawingState, backend telakit.Backend))
}

// Surface связывает Canvas с блокировкой Dispatcher, который его меняет.
// Через Surface к поверхности обращаются окно и HTTP статус.
type Surface struct {
	viewer Viewer
	canvas *Canvas
}

// NewSurface создает Surface. canvas должен быть backend'ом viewer.
func NewSurface(viewer Viewer, canvas *Canvas) *Surface {
	return &Surface{viewer: viewer, canvas: canvas}
}

// Size возвращает размер поверхности в пикселях.
func (s *Surface) Size() (width, height int) {
	s.viewer.View(func(telakit.DrawingState, telakit.Backend) {
		width, height = s.canvas.Size()
	})
	return width, height
}

// Frame копирует поверхность в dst, если она изменилась (или force == true).
func (s *Surface) Frame(dst draw.Image, force bool) (changed bool) {
	s.viewer.View(func(telakit.DrawingState, telakit.Backend) {
		changed = s.canvas.CopyIfDirty(dst, force)
	})
	return changed
}

// Snapshot возвращает копию текущей поверхности.
func (s *Surface) Snapshot() *image.RGBA {
	var out *image.RGBA
	s.viewer.View(func(telakit.DrawingState, telakit.Backend) {
		src := s.canvas.Image()
		out = image.NewRGBA(src.Bounds())
		draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	})
	return out
}

// WritePNG кодирует текущую поверхность в PNG.
// Кодирование выполняется над копией, вне блокировки.
func (s *Surface) WritePNG(w io.Writer) error {
	return png.Encode(w, s.Snapshot())
}

// SavePNG сохраняет текущую поверхность в файл path.
func (s *Surface) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := s.WritePNG(bw); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}
