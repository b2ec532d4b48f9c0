package telakit

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrLineTooLong возвращается LineReader, если строка превышает лимит.
var ErrLineTooLong = errors.New("line too long")

// LineReader читает строки протокола, разделённые '\n', из одного соединения.
//
// Байты после последнего '\n' остаются в буфере до следующего чтения,
// поэтому команда, разбитая на несколько TCP сегментов, собирается целиком.
// Для каждого соединения создаётся свой LineReader.
type LineReader struct {
	r       *bufio.Reader
	maxLine int
}

// NewLineReader создает LineReader поверх r.
//
// Параметры:
//   - r: источник данных (обычно net.Conn)
//   - maxLine: максимальная длина строки в байтах; если <= 0, используется DefaultMaxLineLength
func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &LineReader{
		r:       bufio.NewReaderSize(r, maxLine+1),
		maxLine: maxLine,
	}
}

// ReadLine возвращает следующую строку без завершающего '\n'.
//
// Возвращаемый срез является копией и остаётся валидным после следующего вызова.
// Если поток закончился посреди строки, неполная строка отбрасывается
// и возвращается io.EOF: команда без '\n' не считается принятой.
func (l *LineReader) ReadLine() ([]byte, error) {
	line, err := l.r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, l.maxLine)
		}
		return nil, err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	// bufio не создаёт буфер меньше 16 байт, поэтому лимит проверяется явно
	if len(line) > l.maxLine {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, l.maxLine)
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out, nil
}

// Buffered возвращает количество байт, уже прочитанных из сокета, но ещё не разобранных.
func (l *LineReader) Buffered() int {
	return l.r.Buffered()
}
