package status

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tela/pkg/canvas"
	"github.com/example/tela/pkg/telakit"
)

type fixedCount int64

func (f fixedCount) GetConnectionCount() int64 { return int64(f) }

func newTestRouter(t *testing.T) (*telakit.Dispatcher, http.Handler) {
	t.Helper()
	state, err := telakit.NewDrawingState(64, 64, 8)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := telakit.NewMetrics(registry)
	c := canvas.New(64, 64)
	d := telakit.NewDispatcher(state, c, metrics)
	d.Reset()

	return d, NewRouter(Options{
		State:       d,
		Snapshot:    canvas.NewSurface(d, c).WritePNG,
		Connections: fixedCount(2),
		Gatherer:    registry,
	})
}

func TestState(t *testing.T) {
	d, router := newTestRouter(t)
	d.Apply(telakit.SetColor{Color: telakit.RGB{R: 1, G: 2, B: 3}})
	d.Apply(telakit.Clear{GridSize: 4})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.GridSize)
	assert.Equal(t, [3]int{1, 2, 3}, resp.ActiveColor)
	assert.InDelta(t, 16.0, resp.CellSize, 1e-9)
	assert.InDelta(t, 8.0, resp.Radius, 1e-9)
	assert.Equal(t, 64, resp.Width)
	assert.Equal(t, int64(2), resp.Connections)
}

func TestSnapshot(t *testing.T) {
	_, router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestMetrics(t *testing.T) {
	d, router := newTestRouter(t)
	d.Apply(telakit.Point{X: 1, Y: 1})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tela_commands_total{opcode="PO"} 1`)
}

// TestDisabledRoutes проверяет, что nil зависимости отключают маршруты
func TestDisabledRoutes(t *testing.T) {
	router := NewRouter(Options{})

	for _, path := range []string{"/metrics", "/snapshot.png", "/state"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSnapshotPanicRecovered(t *testing.T) {
	router := NewRouter(Options{
		Snapshot: func(io.Writer) error { panic("boom") },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSnapshotError(t *testing.T) {
	router := NewRouter(Options{
		Snapshot: func(io.Writer) error { return errors.New("encode failed") },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestServe проверяет запуск и остановку HTTP сервера по контексту
func TestServe(t *testing.T) {
	_, router := newTestRouter(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, listener, router, nil) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/state")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `"grid_size":8`))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

// TestServeClosedListener проверяет, что ошибка listener возвращается сразу
func TestServeClosedListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	listener.Close()

	err = Serve(context.Background(), listener, http.NotFoundHandler(), nil)
	assert.Error(t, err)
}
