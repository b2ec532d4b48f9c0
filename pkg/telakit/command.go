package telakit

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"strconv"
)

// Opcode двухбайтовый код команды протокола.
type Opcode string

const (
	OpPoint        Opcode = "PO"
	OpPointColored Opcode = "PC"
	OpClear        Opcode = "CL"
	OpSetColor     Opcode = "CO"
)

// minLineLength строки короче этого значения пропускаются без разбора.
const minLineLength = 3

var (
	// ErrShortLine возвращается Decode для пустых строк и строк короче 3 байт.
	// Это не ошибка разбора: строку нужно просто пропустить.
	ErrShortLine = errors.New("line too short")

	// ErrDecode базовая ошибка разбора команды. Все *DecodeError оборачивают её.
	ErrDecode = errors.New("decode error")
)

// DecodeError описывает строку, которую не удалось разобрать.
// Соединение при такой ошибке не закрывается, строка отбрасывается.
type DecodeError struct {
	Opcode Opcode
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", string(e.Opcode), e.Reason)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrDecode).
func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// RGB цвет в том виде, в котором он пришёл по сети.
// Значения каналов не проверяются на диапазон [0,255].
type RGB struct {
	R, G, B int
}

// Red цвет по умолчанию для команд PO.
var Red = RGB{R: 255}

// RGBA переводит цвет в color.RGBA, оставляя от каждого канала младшие 8 бит.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 0xff}
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Command одна команда протокола рисования.
type Command interface {
	// Opcode возвращает код команды.
	Opcode() Opcode

	// Encode возвращает строку протокола вместе с завершающим '\n'.
	Encode() []byte
}

// Point рисует точку в клетке (X, Y) активным цветом.
type Point struct {
	X, Y int
}

// PointColored рисует точку в клетке (X, Y) явно заданным цветом.
// Активный цвет не меняется.
type PointColored struct {
	X, Y  int
	Color RGB
}

// Clear очищает поверхность и рисует новую сетку GridSize×GridSize.
type Clear struct {
	GridSize int
}

// SetColor меняет активный цвет для последующих команд Point.
type SetColor struct {
	Color RGB
}

func (Point) Opcode() Opcode        { return OpPoint }
func (PointColored) Opcode() Opcode { return OpPointColored }
func (Clear) Opcode() Opcode        { return OpClear }
func (SetColor) Opcode() Opcode     { return OpSetColor }

func (p Point) Encode() []byte {
	return []byte(fmt.Sprintf("PO %d,%d\n", p.X, p.Y))
}

func (p PointColored) Encode() []byte {
	return []byte(fmt.Sprintf("PC %d,%d,%d,%d,%d\n", p.X, p.Y, p.Color.R, p.Color.G, p.Color.B))
}

func (c Clear) Encode() []byte {
	return []byte(fmt.Sprintf("CL %d\n", c.GridSize))
}

func (c SetColor) Encode() []byte {
	return []byte(fmt.Sprintf("CO %d,%d,%d\n", c.Color.R, c.Color.G, c.Color.B))
}

// arity количество параметров каждой команды.
var arity = map[Opcode]int{
	OpPoint:        2,
	OpPointColored: 5,
	OpClear:        1,
	OpSetColor:     3,
}

// Decode разбирает одну строку протокола (без завершающего '\n').
//
// Формат строки: два байта кода команды, один байт разделителя (не проверяется),
// затем список целых параметров через запятую. Пробелы вокруг параметров игнорируются.
//
// Возвращает:
//   - ErrShortLine для строк короче 3 байт (строку нужно пропустить)
//   - *DecodeError для неизвестной команды, неверного числа параметров
//     или параметров, которые не являются целыми числами
func Decode(line []byte) (Command, error) {
	if len(line) < minLineLength {
		return nil, ErrShortLine
	}

	op := Opcode(line[:2])
	want, ok := arity[op]
	if !ok {
		return nil, &DecodeError{Opcode: op, Reason: "unknown opcode"}
	}

	fields := bytes.Split(line[3:], []byte(","))
	if len(fields) != want {
		return nil, &DecodeError{
			Opcode: op,
			Reason: fmt.Sprintf("expected %d parameters, got %d", want, len(fields)),
		}
	}

	params := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(string(bytes.TrimSpace(f)))
		if err != nil {
			return nil, &DecodeError{
				Opcode: op,
				Reason: fmt.Sprintf("parameter %d is not an integer: %q", i+1, bytes.TrimSpace(f)),
			}
		}
		params[i] = v
	}

	switch op {
	case OpPoint:
		if err := checkCell(op, params[0], params[1]); err != nil {
			return nil, err
		}
		return Point{X: params[0], Y: params[1]}, nil

	case OpPointColored:
		if err := checkCell(op, params[0], params[1]); err != nil {
			return nil, err
		}
		return PointColored{
			X:     params[0],
			Y:     params[1],
			Color: RGB{R: params[2], G: params[3], B: params[4]},
		}, nil

	case OpClear:
		if params[0] <= 0 {
			return nil, &DecodeError{Opcode: op, Reason: fmt.Sprintf("grid size must be positive, got %d", params[0])}
		}
		return Clear{GridSize: params[0]}, nil

	default: // OpSetColor
		return SetColor{Color: RGB{R: params[0], G: params[1], B: params[2]}}, nil
	}
}

// checkCell проверяет, что координаты клетки неотрицательные.
func checkCell(op Opcode, x, y int) error {
	if x < 0 || y < 0 {
		return &DecodeError{Opcode: op, Reason: fmt.Sprintf("negative grid cell (%d,%d)", x, y)}
	}
	return nil
}
