package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/example/tela/pkg/canvas"
	"github.com/example/tela/pkg/status"
	"github.com/example/tela/pkg/telakit"
	"github.com/example/tela/pkg/window"
)

// options параметры командной строки сервера.
type options struct {
	host       string
	port       int
	gridSize   int
	width      int
	height     int
	title      string
	verbose    bool
	logLevel   int
	maxConn    int
	maxLine    int
	shutdown   time.Duration
	headless   bool
	snapshot   string
	saveOnExit bool
	statusAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "tela",
		Short: "Remote drawing server",
		Long: `Tela keeps a pixel surface with an N×N grid and draws on it
according to newline-delimited commands received over TCP:

  PO x,y          point at grid cell (x,y) with the active color
  PC x,y,r,g,b    point at grid cell (x,y) with color (r,g,b)
  CL n            clear the surface and draw an n×n grid
  CO r,g,b        set the active color

Press S in the window to save the surface, Q or Esc to quit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, newLogger(opts.verbose))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", telakit.DefaultHost, "Bind address")
	f.IntVar(&opts.port, "port", telakit.DefaultPort, "Bind port")
	f.IntVar(&opts.gridSize, "grid-size", telakit.DefaultGridSize, "Grid dimension (N x N)")
	f.IntVar(&opts.width, "width", 640, "Window width in pixels")
	f.IntVar(&opts.height, "height", 640, "Window height in pixels")
	f.StringVar(&opts.title, "title", "Tela", "Window title")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.IntVar(&opts.logLevel, "log-level", 0, "Connection debug detail: 0=Info, 1=Debug1, 2=Debug2, 3=Debug3")
	f.IntVar(&opts.maxConn, "max-conn", 0, "Maximum number of connections (0 = unlimited)")
	f.IntVar(&opts.maxLine, "max-line", telakit.DefaultMaxLineLength, "Maximum command line length in bytes")
	f.DurationVar(&opts.shutdown, "shutdown", telakit.DefaultGracefulTimeout, "Graceful shutdown timeout")
	f.BoolVar(&opts.headless, "headless", false, "Run without a window until interrupted")
	f.StringVar(&opts.snapshot, "snapshot", "tela.png", "PNG file written when saving the surface")
	f.BoolVar(&opts.saveOnExit, "save-on-exit", false, "Save the surface to --snapshot on shutdown")
	f.StringVar(&opts.statusAddr, "status-addr", "", "Serve /metrics, /snapshot.png and /state on this address (disabled if empty)")

	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runWindow открывает окно. Подменяется в тестах.
var runWindow = window.Run

// run поднимает сервер и работает до отмены ctx или закрытия окна.
// Ошибки конфигурации и привязки к адресам возвращаются до приёма подключений.
func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.width <= 0 || opts.height <= 0 {
		return fmt.Errorf("invalid configuration: %w: %dx%d", telakit.ErrInvalidSurface, opts.width, opts.height)
	}

	config := telakit.Config{
		MaxConnections: opts.maxConn,
		MaxLineLength:  opts.maxLine,
		Logger:         telakit.NewSlogLogger(logger),
		LogLevel:       telakit.LogLevel(opts.logLevel),
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	surfaceCanvas := canvas.New(opts.width, opts.height)
	state, err := telakit.NewDrawingStateFor(surfaceCanvas, opts.gridSize)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	config.Metrics = telakit.NewMetrics(registry)

	dispatcher := telakit.NewDispatcher(state, surfaceCanvas, config.Metrics)
	dispatcher.Reset()
	surface := canvas.NewSurface(dispatcher, surfaceCanvas)

	address := net.JoinHostPort(opts.host, strconv.Itoa(opts.port))
	server := telakit.NewServer(address, dispatcher, config)
	server.SetGracefulTimeout(opts.shutdown)

	logger.Info("Configuration",
		"address", address,
		"grid_size", opts.gridSize,
		"surface", fmt.Sprintf("%dx%d", opts.width, opts.height),
		"max_connections", opts.maxConn,
		"shutdown_timeout", opts.shutdown,
		"log_level", config.LogLevel.String())

	// Адрес статуса занимается до старта сервера: ошибка привязки фатальна
	var statusListener net.Listener
	if opts.statusAddr != "" {
		statusListener, err = net.Listen("tcp", opts.statusAddr)
		if err != nil {
			return fmt.Errorf("failed to start status listener: %w", err)
		}
	}

	done, err := server.Start(ctx)
	if err != nil {
		if statusListener != nil {
			statusListener.Close()
		}
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusDone := make(chan error, 1)
	if statusListener != nil {
		router := status.NewRouter(status.Options{
			State:       dispatcher,
			Snapshot:    surface.WritePNG,
			Connections: server,
			Gatherer:    registry,
			Logger:      config.Logger,
		})
		go func() {
			statusDone <- status.Serve(ctx, statusListener, router, config.Logger)
		}()
	} else {
		statusDone <- nil
	}

	var windowErr error
	if opts.headless {
		logger.Info("Running headless. Press Ctrl+C to stop.")
		<-ctx.Done()
	} else {
		windowErr = runWindow(ctx, surface, window.Options{
			Title:        opts.title,
			Width:        opts.width,
			Height:       opts.height,
			SnapshotPath: opts.snapshot,
			Logger:       config.Logger,
		})
		if windowErr != nil {
			logger.Error("Window failed", "error", windowErr)
		}
	}

	// Сбрасываем флаг жизни: accept loop и все соединения завершаются
	cancel()
	if err := server.Stop(); err != nil && !errors.Is(err, telakit.ErrServerNotStarted) {
		logger.Error("Error during shutdown", "error", err)
	}
	<-done

	if err := <-statusDone; err != nil {
		logger.Error("Status HTTP failed", "error", err)
	}

	if opts.saveOnExit {
		if err := surface.SavePNG(opts.snapshot); err != nil {
			return err
		}
		logger.Info("Surface saved", "path", opts.snapshot)
	}

	if windowErr != nil {
		return fmt.Errorf("window: %w", windowErr)
	}

	logger.Info("Server stopped successfully")
	return nil
}
