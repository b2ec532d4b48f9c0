// Package window показывает поверхность Tela в окне shiny.
//
// Цикл событий окна работает на главной горутине и никогда не ждёт
// сетевые соединения: кадры копируются с поверхности под блокировкой
// Dispatcher только когда поверхность изменилась.
package window

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/tela/pkg/telakit"
)

// DefaultTickInterval период опроса поверхности на изменения.
const DefaultTickInterval = 10 * time.Millisecond

// FrameSource источник кадров. Реализуется *canvas.Surface.
type FrameSource interface {
	Frame(dst draw.Image, force bool) bool
	SavePNG(path string) error
}

// Options параметры окна.
type Options struct {
	Title  string
	Width  int
	Height int

	// SnapshotPath файл, в который клавиша S сохраняет поверхность.
	SnapshotPath string

	// TickInterval период опроса. Если 0, используется DefaultTickInterval.
	TickInterval time.Duration

	Logger telakit.Logger
}

// tickEvent будит цикл событий для проверки изменений поверхности.
type tickEvent struct{}

// quitEvent завершает цикл событий после отмены контекста.
type quitEvent struct{}

// Run открывает окно и крутит цикл событий до закрытия окна, нажатия Q/Esc
// или отмены ctx. Должен вызываться с главной горутины.
func Run(ctx context.Context, src FrameSource, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = telakit.NewNoopLogger()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	var runErr error
	driver.Main(func(s screen.Screen) {
		runErr = run(ctx, s, src, opts)
	})
	return runErr
}

func run(ctx context.Context, s screen.Screen, src FrameSource, opts Options) error {
	w, err := s.NewWindow(&screen.NewWindowOptions{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
	})
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer w.Release()

	b, err := s.NewBuffer(image.Pt(opts.Width, opts.Height))
	if err != nil {
		return fmt.Errorf("create buffer: %w", err)
	}
	defer b.Release()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				w.Send(quitEvent{})
				return
			case <-ticker.C:
				w.Send(tickEvent{})
			}
		}
	}()

	publish := func(force bool) {
		if src.Frame(b.RGBA(), force) {
			w.Upload(image.Point{}, b, b.Bounds())
			w.Publish()
		}
	}

	for {
		switch e := w.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				opts.Logger.Info("Window closed")
				return nil
			}

		case key.Event:
			if e.Direction != key.DirPress {
				break
			}
			switch e.Code {
			case key.CodeS:
				if err := src.SavePNG(opts.SnapshotPath); err != nil {
					opts.Logger.Error("Saving %s failed: %v", opts.SnapshotPath, err)
				} else {
					opts.Logger.Info("Surface saved to %s", opts.SnapshotPath)
				}
			case key.CodeQ, key.CodeEscape:
				opts.Logger.Info("Quit requested from window")
				return nil
			}

		case size.Event:
			w.Send(paint.Event{})

		case paint.Event:
			publish(true)

		case tickEvent:
			publish(false)

		case quitEvent:
			return nil

		case error:
			opts.Logger.Error("Window event error: %v", e)
		}
	}
}
