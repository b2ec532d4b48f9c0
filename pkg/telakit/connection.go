package telakit

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName имя tracer'а, под которым создаются span'ы соединений.
const TracerName = "github.com/example/tela/pkg/telakit"

// connectionIDCounter - глобальный счетчик для генерации уникальных ID соединений
var connectionIDCounter atomic.Uint64

// Connection обработчик одного TCP соединения.
//
// Соединение читает строки через собственный LineReader, разбирает их Decode
// и применяет через общий Dispatcher в порядке поступления. Ответы клиенту
// не отправляются: протокол работает в режиме fire-and-forget.
//
// Внутри работают две горутины: readGoroutine читает строки из сокета,
// eventLoop разбирает и применяет их, а также обрабатывает сигнал остановки.
type Connection struct {
	// id - уникальный идентификатор соединения
	id uint64

	conn       net.Conn
	reader     *LineReader
	dispatcher *Dispatcher

	// readChan - полностью принятые строки в порядке поступления.
	// Закрывается readGoroutine при завершении чтения.
	readChan chan []byte

	// errorChan - ошибка чтения, из-за которой завершилась readGoroutine.
	// Записывается до закрытия readChan.
	errorChan chan error

	// Управление жизненным циклом
	ctx          context.Context
	cancel       context.CancelFunc
	closed       atomic.Bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	drainTimeout time.Duration

	// applied - количество применённых команд
	applied atomic.Int64

	// cleanupFunc вызывается когда соединение завершается (из eventLoop)
	cleanupFunc func()

	logger  Logger
	debug   debugLogger
	metrics *Metrics
}

// newConnection создает обработчик соединения. Горутины запускаются методом start.
func newConnection(
	parentCtx context.Context,
	conn net.Conn,
	dispatcher *Dispatcher,
	config Config,
	drainTimeout time.Duration,
	cleanupFunc func(),
) *Connection {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Connection{
		id:           connectionIDCounter.Add(1),
		conn:         conn,
		reader:       NewLineReader(conn, config.MaxLineLength),
		dispatcher:   dispatcher,
		readChan:     make(chan []byte, 100),
		errorChan:    make(chan error, 1),
		ctx:          ctx,
		cancel:       cancel,
		shutdownCh:   make(chan struct{}),
		drainTimeout: drainTimeout,
		cleanupFunc:  cleanupFunc,
		logger:       config.Logger,
		debug:        debugLogger{logger: config.Logger, level: config.LogLevel},
		metrics:      config.Metrics,
	}
}

// start запускает eventLoop соединения.
func (c *Connection) start() {
	go c.eventLoop()
}

// readGoroutine читает строки из сокета и отправляет их в readChan.
// Завершается при EOF, ошибке чтения или после сигнала остановки.
func (c *Connection) readGoroutine() {
	defer close(c.readChan)

	for {
		// После отмены контекста дочитываем только то, что уже в буфере
		if c.reader.Buffered() == 0 {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
		}

		line, err := c.reader.ReadLine()
		if err != nil {
			// EOF - нормальное завершение соединения со стороны клиента
			if errors.Is(err, io.EOF) {
				c.debug.debugf(LogLevelDebug1, "Socket of connection #%d closed by remote peer (EOF)", c.id)
				return
			}
			// Таймаут или закрытый сокет после сигнала остановки ожидаемы
			if c.IsShuttingDown() || c.ctx.Err() != nil {
				var netErr net.Error
				if errors.Is(err, net.ErrClosed) || (errors.As(err, &netErr) && netErr.Timeout()) {
					c.debug.debugf(LogLevelDebug1, "Connection #%d read loop stopped by shutdown", c.id)
					return
				}
			}

			c.errorChan <- err
			return
		}

		c.readChan <- line
	}
}

// eventLoop - главная горутина соединения. Применяет строки из readChan
// и обрабатывает сигнал graceful shutdown. Завершается только когда
// readChan закрыт, поэтому все полностью принятые строки будут применены.
func (c *Connection) eventLoop() {
	_, span := otel.Tracer(TracerName).Start(c.ctx, "tela.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int64("tela.connection_id", int64(c.id)),
			attribute.String("net.peer.addr", c.RemoteAddr().String()),
		),
	)

	var readWg sync.WaitGroup
	readWg.Add(1)
	go func() {
		defer readWg.Done()
		c.readGoroutine()
	}()

	defer func() {
		c.cancel()
		readWg.Wait()
		c.conn.Close()

		span.SetAttributes(attribute.Int64("tela.commands_applied", c.applied.Load()))
		span.End()

		if c.cleanupFunc != nil {
			c.cleanupFunc()
		}

		// Устанавливаем флаг closed в самом конце, когда всё действительно завершено
		c.closed.Store(true)
		c.debug.debugf(LogLevelDebug1, "Connection #%d event loop closed %s", c.id, c.RemoteAddr())
	}()

	shutdownCh := c.shutdownCh // локальная копия, обнуляется после первого сигнала

	for {
		select {
		case line, ok := <-c.readChan:
			if !ok {
				select {
				case err := <-c.errorChan:
					c.logger.Error("Connection #%d read error: %v", c.id, err)
					c.metrics.transportError()
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				default:
				}
				return
			}
			c.handleLine(line)

		case <-shutdownCh:
			c.debug.debugf(LogLevelDebug1, "Connection #%d received shutdown signal", c.id)
			if err := c.Close(false); err != nil {
				c.debug.debugf(LogLevelDebug1, "Connection #%d soft close: %v", c.id, err)
			}
			shutdownCh = nil
		}
	}
}

// handleLine разбирает и применяет одну строку.
// Ошибка разбора не закрывает соединение: строка отбрасывается.
func (c *Connection) handleLine(line []byte) {
	c.debug.debugf(LogLevelDebug3, "Connection #%d line %q", c.id, line)

	if len(line) < minLineLength {
		c.debug.debugf(LogLevelDebug3, "Connection #%d skipping short line", c.id)
		c.metrics.lineSkipped()
		return
	}

	cmd, err := Decode(line)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			c.metrics.decodeFailed(decodeErr.Opcode)
		}
		c.logger.Warn("Connection #%d dropped line %q: %v", c.id, line, err)
		return
	}

	c.debug.debugf(LogLevelDebug2, "Connection #%d command %s %+v", c.id, cmd.Opcode(), cmd)
	c.dispatcher.Apply(cmd)
	c.applied.Add(1)
}

// GetID возвращает уникальный идентификатор соединения.
func (c *Connection) GetID() uint64 {
	return c.id
}

// RemoteAddr возвращает удаленный адрес соединения.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Applied возвращает количество команд, применённых этим соединением.
func (c *Connection) Applied() int64 {
	return c.applied.Load()
}

// NotifyShutdown уведомляет соединение о начале graceful shutdown.
// Соединение дочитывает уже принятые данные и завершается.
func (c *Connection) NotifyShutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
	})
}

// IsShuttingDown возвращает true после вызова NotifyShutdown.
func (c *Connection) IsShuttingDown() bool {
	select {
	case <-c.shutdownCh:
		return true
	default:
		return false
	}
}

// Close закрывает соединение. Метод идемпотентен.
//
// Параметры:
//   - force: если true, сокет закрывается немедленно; строки, уже лежащие
//     в буфере LineReader, всё равно будут применены.
//     Если false, устанавливается read deadline через drainTimeout: данные,
//     уже пришедшие в сокет, успевают дочитаться, после чего чтение завершается.
func (c *Connection) Close(force bool) error {
	if force {
		c.cancel()
		return c.conn.Close()
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.drainTimeout))
}

// IsClosed возвращает true, если соединение полностью завершено.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}
