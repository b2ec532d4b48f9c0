package telakit

import (
	"fmt"
	"log/slog"
)

// Logger определяет интерфейс для логгирования событий сервера и клиента Tela.
// Сообщения форматируются в стиле fmt.Printf; для slog есть адаптер NewSlogLogger.
type Logger interface {
	// Info логгирует информационное сообщение с опциональными аргументами.
	Info(msg string, args ...interface{})

	// Warn логгирует предупреждение. Используется, например, для отброшенных
	// некорректных строк протокола.
	Warn(msg string, args ...interface{})

	// Error логгирует ошибку: ошибки сокета, ошибки запуска и т.д.
	Error(msg string, args ...interface{})
}

// noopLogger реализует Logger, но ничего не делает.
type noopLogger struct{}

func (n *noopLogger) Info(msg string, args ...interface{})  {}
func (n *noopLogger) Warn(msg string, args ...interface{})  {}
func (n *noopLogger) Error(msg string, args ...interface{}) {}

// NewNoopLogger создает логгер, который игнорирует все сообщения.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

// debugLogger пропускает сообщения только если настроенный уровень
// не ниже требуемого. Info/Warn/Error при этом не фильтруются.
type debugLogger struct {
	logger Logger
	level  LogLevel
}

// debugf логгирует сообщение уровня Info, если текущий LogLevel >= need.
func (d debugLogger) debugf(need LogLevel, msg string, args ...interface{}) {
	if d.level >= need {
		d.logger.Info(msg, args...)
	}
}

// SlogLogger адаптирует *slog.Logger к Logger: сообщение форматируется
// в стиле fmt.Printf и передаётся в slog без атрибутов.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger создает Logger поверх l. Если l nil, используется slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (s *SlogLogger) Info(msg string, args ...interface{}) {
	s.logger.Info(fmt.Sprintf(msg, args...))
}

func (s *SlogLogger) Warn(msg string, args ...interface{}) {
	s.logger.Warn(fmt.Sprintf(msg, args...))
}

func (s *SlogLogger) Error(msg string, args ...interface{}) {
	s.logger.Error(fmt.Sprintf(msg, args...))
}
