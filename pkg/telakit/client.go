package telakit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"sync"
	"time"
)

var (
	// ErrClientNotConnected возвращается любой командой рисования до успешного Connect.
	ErrClientNotConnected = errors.New("not connected to server; call Connect first")

	// ErrConnectionFailed возвращается при неудачной попытке подключения к серверу
	ErrConnectionFailed = errors.New("connection failed")

	// ErrReconnectFailed возвращается когда исчерпаны все попытки переподключения
	ErrReconnectFailed = errors.New("reconnect failed: max attempts reached")
)

// DefaultMaxReconnectAttempts используется, если MaxReconnectAttempts == 0.
const DefaultMaxReconnectAttempts = 5

// ClientConfig содержит параметры конфигурации клиента Tela.
type ClientConfig struct {
	// ConnectTimeout таймаут для установки соединения.
	// Если 0, используется таймаут по умолчанию (10 секунд).
	ConnectTimeout time.Duration

	// WriteTimeout таймаут записи одной команды. 0 означает без таймаута.
	WriteTimeout time.Duration

	// ReconnectEnabled включает переподключение, если запись в сокет не удалась.
	// Неотправленная команда отправляется повторно после переподключения.
	ReconnectEnabled bool

	// MaxReconnectAttempts максимальное количество попыток переподключения.
	// Если 0, используется DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int

	// ReconnectBaseDelay базовая задержка перед первой попыткой переподключения.
	// Задержка увеличивается экспоненциально: baseDelay * 2^(attempt-1).
	// Если 0, используется значение по умолчанию (1 секунда).
	ReconnectBaseDelay time.Duration

	// ReconnectMaxDelay максимальная задержка между попытками переподключения.
	// Если 0, используется значение по умолчанию (30 секунд).
	ReconnectMaxDelay time.Duration

	// Logger используется для логгирования событий клиента.
	// Если nil, используется NoopLogger (без логгирования).
	Logger Logger
}

// Client соединение с сервером Tela.
//
// Client записывает каждую отправленную команду в историю, которую можно
// сохранить в файл и позже воспроизвести. Сервер ничего не отвечает,
// поэтому успешная отправка не означает, что команда была применена.
type Client struct {
	config ClientConfig

	mu      sync.Mutex
	conn    net.Conn
	address string
	history [][]byte

	logger Logger
}

// NewClient создает клиент. Подключение выполняется методом Connect.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = NewNoopLogger()
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.MaxReconnectAttempts == 0 {
		config.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if config.ReconnectBaseDelay == 0 {
		config.ReconnectBaseDelay = 1 * time.Second
	}
	if config.ReconnectMaxDelay == 0 {
		config.ReconnectMaxDelay = 30 * time.Second
	}

	return &Client{
		config: config,
		logger: config.Logger,
	}
}

// Connect подключается к серверу address ("host:port").
// Предыдущее соединение закрывается, история команд очищается.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	conn, err := c.dial(ctx, address)
	if err != nil {
		return err
	}

	c.conn = conn
	c.address = address
	c.logger.Info("Connected to %s", address)
	return nil
}

// dial устанавливает TCP соединение с таймаутом ConnectTimeout.
func (c *Client) dial(ctx context.Context, address string) (net.Conn, error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(connectCtx, "tcp", address)
	if err != nil {
		c.logger.Error("Failed to connect to %s: %v", address, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, address, err)
	}
	return conn, nil
}

// IsConnected возвращает true, если клиент подключен.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Address возвращает адрес сервера последнего успешного подключения.
func (c *Client) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Point отправляет PO x,y.
func (c *Client) Point(x, y int) error {
	return c.Send(Point{X: x, Y: y})
}

// PointColored отправляет PC x,y,r,g,b.
func (c *Client) PointColored(x, y int, color RGB) error {
	return c.Send(PointColored{X: x, Y: y, Color: color})
}

// SetColor отправляет CO r,g,b.
func (c *Client) SetColor(r, g, b int) error {
	return c.Send(SetColor{Color: RGB{R: r, G: g, B: b}})
}

// Clear отправляет CL n. Поверхность на сервере очищается, поэтому
// история команд клиента тоже очищается, и сама команда CL в неё не попадает.
func (c *Client) Clear(gridSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeLocked(Clear{GridSize: gridSize}.Encode()); err != nil {
		return err
	}
	c.history = nil
	return nil
}

// Send отправляет команду и добавляет её в историю.
func (c *Client) Send(cmd Command) error {
	return c.SendLine(cmd.Encode())
}

// SendLine отправляет одну строку протокола как есть (добавляя '\n', если его нет)
// и добавляет её в историю.
func (c *Client) SendLine(line []byte) error {
	line = bytes.TrimRight(line, "\r\n")
	out := make([]byte, len(line)+1)
	copy(out, line)
	out[len(line)] = '\n'

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeLocked(out); err != nil {
		return err
	}
	c.history = append(c.history, out)
	return nil
}

// writeLocked пишет строку в сокет, при необходимости переподключаясь.
func (c *Client) writeLocked(line []byte) error {
	if c.conn == nil {
		return ErrClientNotConnected
	}

	err := c.writeConnLocked(line)
	if err == nil {
		return nil
	}

	c.logger.Error("Send to %s failed: %v", c.address, err)
	if !c.config.ReconnectEnabled {
		return fmt.Errorf("send failed: server unreachable or connection closed: %w", err)
	}

	if err := c.reconnectLocked(); err != nil {
		return err
	}
	return c.writeConnLocked(line)
}

func (c *Client) writeConnLocked(line []byte) error {
	if c.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(line)
	return err
}

// reconnectLocked переподключается к последнему адресу с экспоненциальной задержкой.
func (c *Client) reconnectLocked() error {
	c.conn.Close()
	c.conn = nil

	for attempt := 1; attempt <= c.config.MaxReconnectAttempts; attempt++ {
		delay := c.calculateReconnectDelay(attempt)
		c.logger.Info("Reconnecting to %s (attempt %d) after %v...", c.address, attempt, delay)
		time.Sleep(delay)

		conn, err := c.dial(context.Background(), c.address)
		if err != nil {
			continue
		}

		c.conn = conn
		c.logger.Info("Reconnected successfully after %d attempts", attempt)
		return nil
	}

	c.logger.Error("Max reconnect attempts (%d) reached", c.config.MaxReconnectAttempts)
	return ErrReconnectFailed
}

// calculateReconnectDelay вычисляет задержку для попытки переподключения.
func (c *Client) calculateReconnectDelay(attempt int) time.Duration {
	// Экспоненциальный backoff: baseDelay * 2^(attempt-1)
	delay := float64(c.config.ReconnectBaseDelay) * math.Pow(2, float64(attempt-1))

	if delay > float64(c.config.ReconnectMaxDelay) {
		delay = float64(c.config.ReconnectMaxDelay)
	}

	return time.Duration(delay)
}

// History возвращает копию строк, отправленных с последнего Connect или Clear.
func (c *Client) History() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.history))
	for i, line := range c.history {
		out[i] = append([]byte(nil), line...)
	}
	return out
}

// SaveHistory записывает историю команд в w, по одной строке протокола.
func (c *Client) SaveHistory(w io.Writer) error {
	for _, line := range c.History() {
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}
	return nil
}

// SaveHistoryFile сохраняет историю команд в файл path.
func (c *Client) SaveHistoryFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	if err := c.SaveHistory(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Replay читает строки из r и отправляет их на сервер.
// Пустые строки и строки короче 3 байт пропускаются.
// Возвращает количество отправленных строк.
func (c *Client) Replay(r io.Reader) (int, error) {
	if !c.IsConnected() {
		return 0, ErrClientNotConnected
	}

	sent := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) < minLineLength {
			continue
		}
		if err := c.SendLine(line); err != nil {
			return sent, err
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		return sent, fmt.Errorf("read commands: %w", err)
	}
	return sent, nil
}

// ReplayFile воспроизводит команды из файла path.
func (c *Client) ReplayFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open commands file: %w", err)
	}
	defer f.Close()

	return c.Replay(f)
}

// Close закрывает соединение и очищает историю команд.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	c.history = nil
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
