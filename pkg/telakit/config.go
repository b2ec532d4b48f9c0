package telakit

import (
	"errors"
	"fmt"
	"time"
)

// LogLevel определяет уровень детализации debug логов.
// Info, Warn и Error логи выводятся всегда.
type LogLevel int

const (
	// LogLevelInfo отключает все debug логи.
	LogLevelInfo LogLevel = 0

	// LogLevelDebug1 включает события жизненного цикла соединений:
	// закрытие, EOF, отмена контекста.
	LogLevelDebug1 LogLevel = 1

	// LogLevelDebug2 дополнительно логгирует каждую принятую команду.
	LogLevelDebug2 LogLevel = 2

	// LogLevelDebug3 дополнительно логгирует сырые строки и пропущенные короткие строки.
	// ВНИМАНИЕ: генерирует большой объем логов!
	LogLevelDebug3 LogLevel = 3
)

// String возвращает строковое представление уровня логирования.
func (l LogLevel) String() string {
	switch l {
	case LogLevelInfo:
		return "Info"
	case LogLevelDebug1:
		return "Debug1"
	case LogLevelDebug2:
		return "Debug2"
	case LogLevelDebug3:
		return "Debug3"
	default:
		return "Unknown"
	}
}

const (
	// DefaultHost адрес, на котором сервер слушает по умолчанию.
	DefaultHost = "127.0.0.1"

	// DefaultPort порт сервера по умолчанию.
	DefaultPort = 8800

	// DefaultGridSize размер сетки N×N при запуске сервера.
	DefaultGridSize = 64

	// DefaultClearGridSize размер сетки, который клиент отправляет в CL без аргумента.
	DefaultClearGridSize = 16

	// DefaultMaxLineLength максимальная длина одной строки протокола в байтах.
	DefaultMaxLineLength = 4096

	// MaxLineLengthLimit верхняя граница Config.MaxLineLength: буфер такого
	// размера выделяется на каждое соединение.
	MaxLineLengthLimit = 1 << 20

	// DefaultGracefulTimeout время ожидания закрытия соединений при остановке.
	DefaultGracefulTimeout = 5 * time.Second
)

var (
	// ErrInvalidGridSize возвращается, если размер сетки не положительный.
	ErrInvalidGridSize = errors.New("grid size must be positive")

	// ErrInvalidSurface возвращается, если размер поверхности не положительный.
	ErrInvalidSurface = errors.New("surface size must be positive")
)

// Config содержит параметры конфигурации сервера Tela.
type Config struct {
	// MaxConnections ограничивает количество одновременных подключений.
	// 0 или отрицательное значение означает отсутствие ограничения.
	MaxConnections int

	// MaxLineLength максимальная длина строки команды.
	// Если 0, используется DefaultMaxLineLength.
	MaxLineLength int

	// Logger используется для логгирования событий сервера.
	// Если nil, используется NoopLogger.
	Logger Logger

	// LogLevel определяет детализацию debug логов соединений.
	LogLevel LogLevel

	// Metrics собирает счетчики сервера. Если nil, метрики не собираются.
	Metrics *Metrics
}

// Validate проверяет конфигурацию сервера.
func (c Config) Validate() error {
	if c.MaxLineLength < 0 || c.MaxLineLength > MaxLineLengthLimit {
		return fmt.Errorf("invalid max line length %d (allowed 0..%d)", c.MaxLineLength, MaxLineLengthLimit)
	}
	if c.LogLevel < LogLevelInfo || c.LogLevel > LogLevelDebug3 {
		return fmt.Errorf("invalid log level %d", c.LogLevel)
	}
	return nil
}
