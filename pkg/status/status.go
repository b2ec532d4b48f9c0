// Package status предоставляет HTTP интерфейс наблюдения за сервером Tela:
// метрики Prometheus, снимок поверхности в PNG и текущее состояние в JSON.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/tela/pkg/telakit"
)

// StateSource источник текущего состояния рисования. Реализуется *telakit.Dispatcher.
type StateSource interface {
	State() telakit.DrawingState
}

// ConnectionCounter реализуется *telakit.Server.
type ConnectionCounter interface {
	GetConnectionCount() int64
}

// Options зависимости HTTP интерфейса. Nil поля отключают соответствующие маршруты.
type Options struct {
	State StateSource

	// Snapshot пишет PNG текущей поверхности, например (*canvas.Surface).WritePNG.
	Snapshot func(w io.Writer) error

	Connections ConnectionCounter
	Gatherer    prometheus.Gatherer
	Logger      telakit.Logger
}

// StateResponse тело ответа GET /state.
type StateResponse struct {
	GridSize    int     `json:"grid_size"`
	ActiveColor [3]int  `json:"active_color"`
	CellSize    float64 `json:"cell_size"`
	Radius      float64 `json:"radius"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Connections int64   `json:"connections"`
}

// NewRouter создает chi router с маршрутами /metrics, /snapshot.png и /state.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = telakit.NewNoopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if opts.Snapshot != nil {
		r.Get("/snapshot.png", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Cache-Control", "no-store")
			if err := opts.Snapshot(w); err != nil {
				opts.Logger.Error("Snapshot encode failed: %v", err)
			}
		})
	}

	if opts.State != nil {
		r.Get("/state", func(w http.ResponseWriter, req *http.Request) {
			st := opts.State.State()
			resp := StateResponse{
				GridSize:    st.GridSize,
				ActiveColor: [3]int{st.ActiveColor.R, st.ActiveColor.G, st.ActiveColor.B},
				CellSize:    st.CellSize,
				Radius:      st.Radius,
				Width:       st.Width,
				Height:      st.Height,
			}
			if opts.Connections != nil {
				resp.Connections = opts.Connections.GetConnectionCount()
			}

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				opts.Logger.Error("State encode failed: %v", err)
			}
		})
	}

	return r
}

// Serve обслуживает HTTP на уже открытом listener и останавливается при отмене ctx.
// Listener открывается заранее, чтобы ошибка привязки проявилась при старте.
// Возвращает nil после штатной остановки.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, logger telakit.Logger) error {
	if logger == nil {
		logger = telakit.NewNoopLogger()
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status HTTP listening on %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
