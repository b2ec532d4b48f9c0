package telakit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrServerNotStarted возвращается при попытке остановить незапущенный сервер
	ErrServerNotStarted = errors.New("server not started")

	// ErrServerAlreadyStarted возвращается при попытке запустить уже работающий сервер
	ErrServerAlreadyStarted = errors.New("server already started")
)

// DefaultDrainTimeout время, в течение которого соединение дочитывает
// уже пришедшие данные после сигнала остановки.
const DefaultDrainTimeout = 100 * time.Millisecond

// Server TCP сервер протокола рисования Tela.
//
// Для каждого принятого подключения запускается отдельный Connection.
// Ошибка или медленный клиент одного соединения не блокирует другие
// соединения и цикл отрисовки: общий ресурс только Dispatcher.
type Server struct {
	// Конфигурация
	address    string
	config     Config
	dispatcher *Dispatcher

	// Состояние сервера. running - флаг жизни, который видят accept loop
	// и все соединения (через контекст).
	listener        net.Listener
	running         atomic.Bool
	ctx             context.Context
	cancel          context.CancelFunc
	connCtx         context.Context
	connCancel      context.CancelFunc
	startOnce       sync.Once
	stopOnce        sync.Once
	gracefulTimeout time.Duration
	drainTimeout    time.Duration
	done            chan struct{}

	// Управление соединениями
	connections sync.Map       // map[*Connection]struct{}
	acceptWg    sync.WaitGroup // для ожидания завершения acceptLoop
	connWg      sync.WaitGroup // для ожидания завершения всех соединений
	connCount   atomic.Int64   // счётчик для GetConnectionCount()

	logger  Logger
	debug   debugLogger
	metrics *Metrics
}

// NewServer создает сервер, который будет слушать address и применять
// команды через dispatcher.
//
// Пример:
//
//	server := NewServer("127.0.0.1:8800", dispatcher, Config{
//	    MaxConnections: 100,
//	    Logger:         NewSlogLogger(slog.Default()),
//	})
func NewServer(address string, dispatcher *Dispatcher, config Config) *Server {
	if config.Logger == nil {
		config.Logger = NewNoopLogger()
	}
	if config.MaxLineLength <= 0 {
		config.MaxLineLength = DefaultMaxLineLength
	}

	return &Server{
		address:         address,
		config:          config,
		dispatcher:      dispatcher,
		gracefulTimeout: DefaultGracefulTimeout,
		drainTimeout:    DefaultDrainTimeout,
		logger:          config.Logger,
		debug:           debugLogger{logger: config.Logger, level: config.LogLevel},
		metrics:         config.Metrics,
	}
}

// SetGracefulTimeout устанавливает таймаут для graceful shutdown.
//
//   - > 0: при остановке соединения получают сигнал shutdown, дочитывают
//     принятые данные, и сервер ждёт их не дольше timeout
//   - == 0: соединения закрываются немедленно
//
// Вызывается до Start.
func (s *Server) SetGracefulTimeout(timeout time.Duration) {
	s.gracefulTimeout = timeout
}

// SetDrainTimeout устанавливает, сколько соединение дочитывает данные
// из сокета после сигнала shutdown. Вызывается до Start.
func (s *Server) SetDrainTimeout(timeout time.Duration) {
	s.drainTimeout = timeout
}

// Start открывает listener и начинает принимать подключения.
//
// Возвращает канал, который закрывается после полной остановки сервера.
// Ошибка привязки к адресу возвращается сразу, до приёма подключений.
// Отмена ctx останавливает сервер так же, как Stop.
func (s *Server) Start(ctx context.Context) (<-chan struct{}, error) {
	if s.running.Load() {
		return nil, ErrServerAlreadyStarted
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	startErr := ErrServerAlreadyStarted
	s.startOnce.Do(func() {
		listener, err := net.Listen("tcp", s.address)
		if err != nil {
			startErr = fmt.Errorf("failed to start listener: %w", err)
			return
		}
		startErr = nil

		s.ctx, s.cancel = context.WithCancel(ctx)
		// Соединения получают отдельный контекст: при graceful shutdown
		// он отменяется только после того, как они дочитали данные.
		s.connCtx, s.connCancel = context.WithCancel(context.WithoutCancel(ctx))
		s.done = make(chan struct{})
		s.listener = listener
		s.running.Store(true)

		s.logger.Info("Tela server listening on %s", listener.Addr())

		s.acceptWg.Add(1)
		go s.acceptLoop()

		go s.contextMonitor()
	})

	if startErr != nil {
		return nil, startErr
	}
	return s.done, nil
}

// acceptLoop принимает новые подключения в отдельной горутине.
func (s *Server) acceptLoop() {
	defer s.acceptWg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Accept error: %v", err)
				continue
			}
		}

		if !s.running.Load() {
			conn.Close()
			return
		}

		if s.config.MaxConnections > 0 && s.connCount.Load() >= int64(s.config.MaxConnections) {
			s.logger.Warn("Max connections reached, rejecting connection from %s", conn.RemoteAddr())
			s.metrics.connectionRejected()
			conn.Close()
			continue
		}

		s.handleConnection(conn)
	}
}

// contextMonitor отслеживает завершение контекста и останавливает сервер.
func (s *Server) contextMonitor() {
	<-s.ctx.Done()
	_ = s.Stop()
}

// handleConnection регистрирует и запускает обработчик нового подключения.
func (s *Server) handleConnection(conn net.Conn) {
	s.connWg.Add(1)
	s.connCount.Add(1)
	s.metrics.connectionOpened()

	var connection *Connection
	cleanupFunc := func() {
		s.connections.Delete(connection)
		s.connCount.Add(-1)
		s.metrics.connectionClosed()
		s.logger.Info("Connection #%d closed from %s (%d commands)", connection.id, conn.RemoteAddr(), connection.Applied())
		s.connWg.Done()
	}

	connection = newConnection(s.connCtx, conn, s.dispatcher, s.config, s.drainTimeout, cleanupFunc)
	s.connections.Store(connection, struct{}{})

	s.logger.Info("Connection #%d accepted from %s", connection.id, conn.RemoteAddr())
	connection.start()
}

// Stop останавливает сервер.
//
// Процесс остановки:
//  1. Сбрасывает флаг жизни и закрывает listener (новые подключения не принимаются)
//  2. Если gracefulTimeout > 0: отправляет сигнал shutdown всем соединениям
//     и ждёт их завершения не дольше gracefulTimeout
//  3. Принудительно закрывает оставшиеся соединения
//  4. Ждёт, пока все соединения освободят сокеты, и закрывает канал done
//
// Метод потокобезопасен и может быть вызван многократно.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return ErrServerNotStarted
	}

	var stopErr error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping Tela server...")

		s.running.Store(false)
		s.cancel()

		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("Error closing listener: %v", err)
			stopErr = err
		}
		s.acceptWg.Wait()

		if s.gracefulTimeout > 0 {
			s.debug.debugf(LogLevelDebug1, "Starting graceful shutdown with timeout %v", s.gracefulTimeout)

			s.ForEachConnection(func(c *Connection) bool {
				c.NotifyShutdown()
				return true
			})

			done := make(chan struct{})
			go func() {
				s.connWg.Wait()
				close(done)
			}()

			select {
			case <-done:
				s.logger.Info("All connections closed gracefully")
			case <-time.After(s.gracefulTimeout):
				s.logger.Warn("Graceful shutdown timeout, forcefully closing remaining connections")
			}
		}

		s.connCancel()
		s.ForEachConnection(func(c *Connection) bool {
			_ = c.Close(true)
			return true
		})

		s.connWg.Wait()
		s.logger.Info("Tela server stopped")

		close(s.done)
	})

	return stopErr
}

// GetConnectionCount возвращает текущее количество активных подключений.
func (s *Server) GetConnectionCount() int64 {
	return s.connCount.Load()
}

// IsRunning возвращает значение флага жизни сервера.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// GetAddress возвращает адрес, на котором работает сервер.
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

// Dispatcher возвращает Dispatcher сервера.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// ForEachConnection выполняет fn для каждого активного соединения.
// Если fn возвращает false, обход прерывается.
func (s *Server) ForEachConnection(fn func(*Connection) bool) {
	s.connections.Range(func(key, value interface{}) bool {
		if conn, ok := key.(*Connection); ok {
			return fn(conn)
		}
		return true
	})
}
